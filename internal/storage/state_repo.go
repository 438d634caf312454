package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/burrow/internal/config"
	"github.com/annel0/burrow/internal/field"
)

// ErrNotFound запись отсутствует в хранилище
var ErrNotFound = errors.New("snapshot not found")

// StateRepo определяет интерфейс сохранения снимков полей между сессиями.
// Записи привязаны к ID сущности, который детерминирован раскладкой поля.
type StateRepo interface {
	// Save сохраняет или перезаписывает строки снимка.
	Save(ctx context.Context, rows []field.Snapshot) error

	// Load загружает строку по ID; false, если записи нет.
	Load(ctx context.Context, id uint64) (field.Snapshot, bool, error)

	// LoadAll загружает все строки по возрастанию ID.
	LoadAll(ctx context.Context) ([]field.Snapshot, error)

	// Delete удаляет строку; ErrNotFound, если её не было.
	Delete(ctx context.Context, id uint64) error

	Close() error
}

// Open создаёт репозиторий по секции storage конфигурации
func Open(cfg config.StorageConfig) (StateRepo, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStateRepo(), nil
	case "redis":
		return NewRedisStateRepo(&RedisConfig{
			Addr:      cfg.Addr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.Prefix,
			TTL:       cfg.TTL,
		})
	case "badger":
		return NewBadgerStateRepo(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func validate(rows []field.Snapshot) error {
	for _, row := range rows {
		if row.ID == 0 {
			return fmt.Errorf("недействительный ID сущности: %d", row.ID)
		}
		if row.State == "" {
			return fmt.Errorf("пустое состояние у сущности %d", row.ID)
		}
	}
	return nil
}
