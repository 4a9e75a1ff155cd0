package sublevel

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/annel0/cavegen/internal/logging"
	"gopkg.in/yaml.v3"
)

// Parse разбирает YAML-описание подуровня, подставляет значения по
// умолчанию и проверяет результат. source используется только в ошибках.
func Parse(data []byte, source string) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", source, err)
	}

	spec.applyDefaults()
	if err := Validate(&spec); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &spec, nil
}

// LoadFile читает и проверяет один файл подуровня
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return Parse(data, path)
}

// LoadDir загружает все *.yaml/*.yml файлы каталога (рекурсивно) в новый каталог
// подуровней. Первый некорректный файл прерывает загрузку.
func LoadDir(dir string) (*Catalog, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода %s: %w", dir, err)
	}
	sort.Strings(paths)

	catalog := NewCatalog()
	for _, path := range paths {
		spec, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := catalog.Add(spec); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		logging.Debug("Загружен подуровень %s (%d шаблонов)", spec.Name, len(spec.Units))
	}

	logging.Info("📂 Загружено подуровней: %d из %s", catalog.Len(), dir)
	return catalog, nil
}
