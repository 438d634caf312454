package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/annel0/burrow/internal/field"
	"github.com/dgraph-io/badger/v3"
)

var badgerPrefix = []byte("field:")

// BadgerStateRepo хранит снимки полей в BadgerDB на диске хоста
type BadgerStateRepo struct {
	db     *badger.DB
	dbPath string
	mutex  sync.RWMutex
	ready  bool
}

// NewBadgerStateRepo открывает (или создаёт) базу в каталоге dataPath
func NewBadgerStateRepo(dataPath string) (*BadgerStateRepo, error) {
	opts := badger.DefaultOptions(dataPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &BadgerStateRepo{db: db, dbPath: dataPath, ready: true}, nil
}

// badgerKey ключ field:<id big-endian>, чтобы итерация шла по возрастанию ID
func badgerKey(id uint64) []byte {
	key := make([]byte, len(badgerPrefix)+8)
	copy(key, badgerPrefix)
	binary.BigEndian.PutUint64(key[len(badgerPrefix):], id)
	return key
}

func (s *BadgerStateRepo) Save(ctx context.Context, rows []field.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(rows); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.ready {
		return fmt.Errorf("хранилище не готово")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("ошибка сериализации %d: %w", row.ID, err)
			}
			if err := txn.Set(badgerKey(row.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения снимка в BadgerDB: %w", err)
	}
	return nil
}

func (s *BadgerStateRepo) Load(ctx context.Context, id uint64) (field.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return field.Snapshot{}, false, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.ready {
		return field.Snapshot{}, false, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return field.Snapshot{}, false, nil
	}
	if err != nil {
		return field.Snapshot{}, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var row field.Snapshot
	if err := json.Unmarshal(data, &row); err != nil {
		return field.Snapshot{}, false, fmt.Errorf("ошибка десериализации: %w", err)
	}
	return row, true, nil
}

func (s *BadgerStateRepo) LoadAll(ctx context.Context) ([]field.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.ready {
		return nil, fmt.Errorf("хранилище не готово")
	}

	rows := make([]field.Snapshot, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var row field.Snapshot
				if err := json.Unmarshal(val, &row); err != nil {
					return err
				}
				rows = append(rows, row)
				return nil
			})
			if err != nil {
				return fmt.Errorf("ошибка десериализации: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return rows, nil
}

func (s *BadgerStateRepo) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.ready {
		return fmt.Errorf("хранилище не готово")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(id)); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(badgerKey(id))
	})
}

// Close закрывает хранилище
func (s *BadgerStateRepo) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.ready {
		return nil
	}
	s.ready = false
	return s.db.Close()
}
