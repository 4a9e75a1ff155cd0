package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/cavegen/internal/auth"
	"github.com/annel0/cavegen/internal/layout"
	"github.com/annel0/cavegen/internal/search"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/dustin/go-humanize"
)

const defaultSublevels = "assets/sublevels"

func usage() {
	fmt.Println("Usage: cavegen <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  gen     построить раскладку для сида")
	fmt.Println("  search  перебрать диапазон сидов с фильтрами")
	fmt.Println("  share   расшифровать или создать код раскладки")
	fmt.Println("  token   выпустить JWT токен оператора")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "gen":
		err = runGen(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "share":
		err = runShare(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Printf("❌ Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %s: %v", os.Args[1], err)
	}
}

func loadSpec(dir, name string) (*sublevel.Spec, error) {
	catalog, err := sublevel.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	spec, ok := catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("подуровень %q не найден в %s (есть: %s)", name, dir, strings.Join(catalog.Names(), ", "))
	}
	return spec, nil
}

func parseSeed(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("неверный сид %q", s)
	}
	return uint32(v), nil
}

// runGen строит одну раскладку
func runGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	var (
		dir      = fs.String("sublevels", defaultSublevels, "каталог описаний подуровней")
		name     = fs.String("sublevel", "", "имя подуровня")
		seedStr  = fs.String("seed", "0", "сид (десятичный или 0x...)")
		asJSON   = fs.Bool("json", false, "вывести раскладку в JSON")
		noEntity = fs.Bool("no-entities", false, "пропустить расстановку сущностей")
	)
	_ = fs.Parse(args)

	seed, err := parseSeed(*seedStr)
	if err != nil {
		return err
	}
	spec, err := loadSpec(*dir, *name)
	if err != nil {
		return err
	}

	var opts []layout.Option
	if *noEntity {
		opts = append(opts, layout.WithoutEntities())
	}

	l, err := layout.Generate(seed, spec, opts...)
	var failure *layout.GenerationFailure
	if errors.As(err, &failure) {
		fmt.Printf("💥 %v\n", failure)
		for reason, n := range failure.Reasons {
			fmt.Printf("   %-18s %d\n", reason, n)
		}
		os.Exit(1)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	}

	fmt.Printf("🕳️ %s seed 0x%08X\n", l.Sublevel, l.Seed)
	fmt.Printf("Units (%d):\n", len(l.Units))
	for i, u := range l.Units {
		fmt.Printf("  %2d %-24s rot=%d at (%d,%d) %dx%d\n", i, u.Name, u.Rotation, u.Pos[0], u.Pos[1], u.Width, u.Height)
	}
	fmt.Printf("Entities (%d):\n", len(l.Entities))
	for _, e := range l.Entities {
		count := ""
		if e.Count > 1 {
			count = fmt.Sprintf(" x%d", e.Count)
		}
		fmt.Printf("  %-8s %-20s %s%s\n", e.Kind, e.Name, e.Pos, count)
	}
	fmt.Printf("Open doors: %d\n", len(l.OpenDoors()))
	fmt.Printf("Slug:  %s\n", l.Slug())
	fmt.Printf("Share: %s\n", l.ShareCode())
	return nil
}

// runSearch перебирает сиды и печатает совпадения
func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	var (
		dir          = fs.String("sublevels", defaultSublevels, "каталог описаний подуровней")
		name         = fs.String("sublevel", "", "имя подуровня")
		fromStr      = fs.String("from", "0", "первый сид")
		count        = fs.Uint("count", search.DefaultCount, "сколько сидов проверить")
		limit        = fs.Int("limit", 0, "остановиться после N совпадений")
		workers      = fs.Int("workers", 0, "число воркеров (0: все ядра)")
		units        = fs.String("require-units", "", "обязательные юниты (через запятую)")
		entities     = fs.String("require-entities", "", "обязательные сущности (через запятую)")
		exclude      = fs.String("exclude-entities", "", "запрещённые сущности (через запятую)")
		minEnemies   = fs.Int("min-enemies", 0, "минимум врагов")
		maxEnemies   = fs.Int("max-enemies", 0, "максимум врагов")
		maxOpenDoors = fs.Int("max-open-doors", -1, "максимум открытых дверей (-1: без ограничения)")
		quiet        = fs.Bool("quiet", false, "печатать только итог")
	)
	_ = fs.Parse(args)

	from, err := parseSeed(*fromStr)
	if err != nil {
		return err
	}
	spec, err := loadSpec(*dir, *name)
	if err != nil {
		return err
	}

	q := search.Query{
		Sublevel:        spec.Name,
		From:            from,
		Count:           uint32(*count),
		RequireUnits:    parseStringList(*units),
		RequireEntities: parseStringList(*entities),
		ExcludeEntities: parseStringList(*exclude),
		MinEnemies:      *minEnemies,
		MaxEnemies:      *maxEnemies,
		Limit:           *limit,
		Workers:         *workers,
	}
	if *maxOpenDoors >= 0 {
		q.MaxOpenDoors = maxOpenDoors
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := search.Run(ctx, spec, q)
	if err != nil && res == nil {
		return err
	}

	if !*quiet {
		for _, h := range res.Hits {
			fmt.Printf("0x%08X  %s\n", h.Seed, h.ShareCode)
		}
	}
	printSummary(res)
	if res.Cancelled {
		fmt.Println("⏹️  Поиск прерван, результат неполный")
	}
	return nil
}

func printSummary(res *search.Result) {
	rate := 0.0
	if res.Elapsed > 0 {
		rate = float64(res.Scanned) / res.Elapsed.Seconds()
	}
	fmt.Printf("\n📊 %s: проверено %s сидов за %s (%s/s)\n",
		res.Sublevel,
		humanize.Comma(int64(res.Scanned)),
		res.Elapsed.Round(time.Millisecond),
		humanize.Comma(int64(rate)))
	fmt.Printf("   совпадений: %s, без раскладки: %s\n",
		humanize.Comma(int64(len(res.Hits))),
		humanize.Comma(int64(res.Failed)))
	for reason, n := range res.Failures {
		fmt.Printf("   %-18s %s\n", reason, humanize.Comma(int64(n)))
	}
}

// runShare расшифровывает код или кодирует слаг
func runShare(args []string) error {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	var (
		dir    = fs.String("sublevels", defaultSublevels, "каталог описаний подуровней")
		slug   = fs.String("encode", "", "закодировать этот слаг вместо расшифровки")
		verify = fs.Bool("verify", false, "перегенерировать раскладку и сравнить слаги")
	)
	_ = fs.Parse(args)

	if *slug != "" {
		fmt.Println(layout.EncodeShareCode(*slug))
		return nil
	}
	if fs.NArg() != 1 {
		return errors.New("нужен ровно один код")
	}

	decoded, err := layout.ParseShareCode(fs.Arg(0))
	if err != nil {
		return err
	}
	name, seed, err := layout.ParseSlugHeader(decoded)
	if err != nil {
		return err
	}
	fmt.Printf("Sublevel: %s\nSeed:     0x%08X (%d)\nSlug:     %s\n", name, seed, seed, decoded)

	if !*verify {
		return nil
	}
	spec, err := loadSpec(*dir, name)
	if err != nil {
		return err
	}
	l, err := layout.Generate(seed, spec)
	if err != nil {
		return err
	}
	if l.Slug() != decoded {
		fmt.Println("❌ Слаг не совпадает с текущей генерацией")
		os.Exit(1)
	}
	fmt.Println("✅ Слаг совпадает")
	return nil
}

// runToken выпускает токен оператора
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	var (
		secret    = fs.String("secret", os.Getenv("CAVEGEN_JWT_SECRET"), "секрет в base64 (по умолчанию $CAVEGEN_JWT_SECRET)")
		operator  = fs.String("operator", "", "имя оператора")
		scopes    = fs.String("scopes", auth.ScopeSearch, "права через запятую: search, admin")
		ttl       = fs.Duration("ttl", auth.DefaultTTL, "срок жизни токена")
		newSecret = fs.Bool("new-secret", false, "сгенерировать новый секрет и выйти")
	)
	_ = fs.Parse(args)

	if *newSecret {
		s, err := auth.GenerateSecureSecret()
		if err != nil {
			return err
		}
		fmt.Println(s)
		return nil
	}

	signer, err := auth.NewSignerFromBase64(*secret, *ttl)
	if err != nil {
		return err
	}
	token, err := signer.Issue(*operator, parseStringList(*scopes)...)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
