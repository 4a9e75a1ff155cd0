package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// BadgerResultRepo встраиваемое хранилище результатов на BadgerDB
type BadgerResultRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerResultRepo открывает (или создает) базу в dataPath/layouts
func NewBadgerResultRepo(dataPath string) (*BadgerResultRepo, error) {
	dbPath := filepath.Join(dataPath, "layouts")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerResultRepo{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище
func (br *BadgerResultRepo) Close() error {
	br.mutex.Lock()
	defer br.mutex.Unlock()

	if !br.isReady {
		return nil
	}

	br.isReady = false
	return br.db.Close()
}

// Save сохраняет запись
func (br *BadgerResultRepo) Save(ctx context.Context, rec *Record) error {
	return br.BatchSave(ctx, []*Record{rec})
}

// BatchSave сохраняет записи одной транзакцией
func (br *BadgerResultRepo) BatchSave(ctx context.Context, recs []*Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()

	if !br.isReady {
		return ErrNotReady
	}

	err := br.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			if err := validateRecord(rec); err != nil {
				return err
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("ошибка сериализации записи: %w", err)
			}
			if err := txn.Set([]byte(rec.Key()), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load загружает запись
func (br *BadgerResultRepo) Load(ctx context.Context, sublevel string, seed uint32) (*Record, bool, error) {
	if err := checkContext(ctx); err != nil {
		return nil, false, err
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()

	if !br.isReady {
		return nil, false, ErrNotReady
	}

	var data []byte
	err := br.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(RecordKey(sublevel, seed)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("ошибка десериализации записи: %w", err)
	}
	return &rec, true, nil
}

// Delete удаляет запись
func (br *BadgerResultRepo) Delete(ctx context.Context, sublevel string, seed uint32) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()

	if !br.isReady {
		return ErrNotReady
	}

	key := []byte(RecordKey(sublevel, seed))
	return br.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("запись %s не найдена", key)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// List обходит ключи подуровня по префиксу. Ключи содержат сид
// фиксированной ширины, поэтому порядок обхода: порядок сидов.
func (br *BadgerResultRepo) List(ctx context.Context, sublevel string, limit int) ([]*Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	br.mutex.RLock()
	defer br.mutex.RUnlock()

	if !br.isReady {
		return nil, ErrNotReady
	}

	prefix := []byte(fmt.Sprintf("layout:%s:", sublevel))
	result := make([]*Record, 0)

	err := br.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(result) >= limit {
				break
			}
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("ошибка десериализации %s: %w", it.Item().Key(), err)
			}
			result = append(result, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
