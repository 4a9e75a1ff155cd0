package layout

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// Слаг: каноническая строка раскладки:
//
//	name:0xSEED|unit;unit;...|entity;entity;...
//
// юнит:     name/rot@x,z[l0,l1,...], где l: "u.d" или "_" для открытой двери
// сущность: kind:name@x,z с суффиксом *n при count > 1
//
// Две раскладки равны тогда и только тогда, когда равны их слаги.

// Slug возвращает канонический слаг раскладки
func (l *Layout) Slug() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:0x%08X|", l.Sublevel, l.Seed)

	for i := range l.Units {
		if i > 0 {
			sb.WriteByte(';')
		}
		u := &l.Units[i]
		fmt.Fprintf(&sb, "%s/%d@%d,%d[", u.Name, u.Rotation, u.Pos[0], u.Pos[1])
		for di, d := range u.Doors {
			if di > 0 {
				sb.WriteByte(',')
			}
			if d.Link == nil {
				sb.WriteByte('_')
				continue
			}
			fmt.Fprintf(&sb, "%d.%d", d.Link.Unit, d.Link.Door)
		}
		sb.WriteByte(']')
	}

	sb.WriteByte('|')
	for i, e := range l.Entities {
		if i > 0 {
			sb.WriteByte(';')
		}
		fmt.Fprintf(&sb, "%s:%s@%s,%s", e.Kind, e.Name, formatCoord(e.Pos[0]), formatCoord(e.Pos[2]))
		if e.Count > 1 {
			fmt.Fprintf(&sb, "*%d", e.Count)
		}
	}
	return sb.String()
}

// formatCoord печатает float32 кратчайшей записью, однозначно задающей число
func formatCoord(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

// Fingerprint 64-битный отпечаток слага, ключ хранилища результатов
func (l *Layout) Fingerprint() uint64 {
	return xxhash.Sum64String(l.Slug())
}

var (
	shareEncoder *zstd.Encoder
	shareDecoder *zstd.Decoder
)

func init() {
	var err error
	shareEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		panic(fmt.Sprintf("zstd encoder: %v", err))
	}
	shareDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(1<<20))
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %v", err))
	}
}

// ShareCode возвращает компактный код раскладки: сжатый zstd слаг в base64url
func (l *Layout) ShareCode() string {
	return EncodeShareCode(l.Slug())
}

// EncodeShareCode упаковывает произвольный слаг в код
func EncodeShareCode(slug string) string {
	compressed := shareEncoder.EncodeAll([]byte(slug), nil)
	return base64.RawURLEncoding.EncodeToString(compressed)
}

// ParseShareCode распаковывает код обратно в слаг
func ParseShareCode(code string) (string, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return "", fmt.Errorf("некорректный код: %w", err)
	}
	raw, err := shareDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return "", fmt.Errorf("ошибка распаковки кода: %w", err)
	}
	return string(raw), nil
}

// ParseSlugHeader извлекает имя подуровня и сид из заголовка слага
func ParseSlugHeader(slug string) (string, uint32, error) {
	header, _, _ := strings.Cut(slug, "|")
	idx := strings.LastIndex(header, ":0x")
	if idx <= 0 {
		return "", 0, fmt.Errorf("некорректный заголовок слага: %q", header)
	}
	seed, err := strconv.ParseUint(header[idx+3:], 16, 32)
	if err != nil {
		return "", 0, fmt.Errorf("некорректный сид в слаге: %w", err)
	}
	return header[:idx], uint32(seed), nil
}
