package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/cavegen/internal/layout"
)

// ErrNotReady возвращается после закрытия хранилища
var ErrNotReady = errors.New("хранилище не готово")

// Record сохранённая раскладка. Ключ — пара (Sublevel, Seed).
// Раскладка хранится в JSON, чтобы повторно отдавать её без генерации.
type Record struct {
	Sublevel    string          `json:"sublevel"`
	Seed        uint32          `json:"seed"`
	Slug        string          `json:"slug"`
	ShareCode   string          `json:"share_code"`
	Fingerprint uint64          `json:"fingerprint"`
	Layout      json.RawMessage `json:"layout"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewRecord упаковывает раскладку для сохранения
func NewRecord(l *layout.Layout) (*Record, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации раскладки: %w", err)
	}
	slug := l.Slug()
	return &Record{
		Sublevel:    l.Sublevel,
		Seed:        l.Seed,
		Slug:        slug,
		ShareCode:   layout.EncodeShareCode(slug),
		Fingerprint: l.Fingerprint(),
		Layout:      data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// DecodeLayout восстанавливает раскладку из записи
func (r *Record) DecodeLayout() (*layout.Layout, error) {
	var l layout.Layout
	if err := json.Unmarshal(r.Layout, &l); err != nil {
		return nil, fmt.Errorf("ошибка десериализации раскладки %s: %w", r.Key(), err)
	}
	return &l, nil
}

// Key возвращает строковый ключ записи
func (r *Record) Key() string {
	return RecordKey(r.Sublevel, r.Seed)
}

// FingerprintHex отпечаток в виде 16 шестнадцатеричных символов.
// Используется там, где бэкенд не хранит uint64 целиком.
func (r *Record) FingerprintHex() string {
	return fmt.Sprintf("%016x", r.Fingerprint)
}

// RecordKey строит ключ layout:<подуровень>:<сид в hex>. Сид печатается
// фиксированной ширины, поэтому лексикографический порядок ключей
// совпадает с порядком сидов.
func RecordKey(sublevel string, seed uint32) string {
	return fmt.Sprintf("layout:%s:%08x", sublevel, seed)
}

// ParseRecordKey разбирает ключ, построенный RecordKey
func ParseRecordKey(key string) (string, uint32, error) {
	rest, ok := strings.CutPrefix(key, "layout:")
	idx := strings.LastIndexByte(rest, ':')
	if !ok || idx <= 0 || len(rest)-idx-1 != 8 {
		return "", 0, fmt.Errorf("некорректный ключ %q", key)
	}
	seed, err := strconv.ParseUint(rest[idx+1:], 16, 32)
	if err != nil {
		return "", 0, fmt.Errorf("некорректный сид в ключе %q: %w", key, err)
	}
	return rest[:idx], uint32(seed), nil
}

func parseFingerprintHex(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

// ResultRepo хранит найденные раскладки
type ResultRepo interface {
	// Save сохраняет или перезаписывает запись
	Save(ctx context.Context, rec *Record) error

	// Load загружает запись. Второй результат false, если записи нет.
	Load(ctx context.Context, sublevel string, seed uint32) (*Record, bool, error)

	// Delete удаляет запись. Отсутствие записи: ошибка.
	Delete(ctx context.Context, sublevel string, seed uint32) error

	// BatchSave сохраняет несколько записей (результаты поиска)
	BatchSave(ctx context.Context, recs []*Record) error

	// List возвращает записи подуровня по возрастанию сида, не больше limit (0: все)
	List(ctx context.Context, sublevel string, limit int) ([]*Record, error)

	Close() error
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("пустая запись")
	}
	if rec.Sublevel == "" {
		return fmt.Errorf("недействительная запись: не указан подуровень")
	}
	if len(rec.Layout) == 0 {
		return fmt.Errorf("недействительная запись %s: нет раскладки", rec.Key())
	}
	return nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
