package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/annel0/burrow/internal/field"
	"github.com/annel0/burrow/internal/logging"
)

// SnapshotSource отдаёт текущий снимок сессии (field.Registry)
type SnapshotSource interface {
	Snapshot() []field.Snapshot
}

// Autosaver периодически сохраняет снимок поля, пропуская неизменившиеся
type Autosaver struct {
	repo   StateRepo
	source SnapshotSource
	every  time.Duration

	mu   sync.Mutex
	last []field.Snapshot

	quit chan struct{}
	done chan struct{}
}

// NewAutosaver создаёт автосохранение с периодом every
func NewAutosaver(repo StateRepo, source SnapshotSource, every time.Duration) *Autosaver {
	if every <= 0 {
		every = 30 * time.Second
	}
	return &Autosaver{
		repo:   repo,
		source: source,
		every:  every,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SaveNow сохраняет снимок, если он изменился с прошлого сохранения.
// Возвращает true, если запись была.
func (a *Autosaver) SaveNow(ctx context.Context) (bool, error) {
	rows := a.source.Snapshot()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last != nil && slices.Equal(a.last, rows) {
		return false, nil
	}
	if err := a.repo.Save(ctx, rows); err != nil {
		return false, fmt.Errorf("autosave: %w", err)
	}
	a.last = rows
	logging.GetStorageLogger().Debug("💾 Autosave: сохранено %d строк", len(rows))
	return true, nil
}

// Start запускает фоновое сохранение
func (a *Autosaver) Start(ctx context.Context) {
	go a.loop(ctx)
}

// Stop останавливает цикл и делает финальное сохранение
func (a *Autosaver) Stop(ctx context.Context) error {
	close(a.quit)
	<-a.done
	_, err := a.SaveNow(ctx)
	return err
}

func (a *Autosaver) loop(ctx context.Context) {
	ticker := time.NewTicker(a.every)
	defer ticker.Stop()
	defer close(a.done)

	for {
		select {
		case <-ticker.C:
			if _, err := a.SaveNow(ctx); err != nil {
				logging.GetStorageLogger().Error("❌ %v", err)
			}
		case <-ctx.Done():
			return
		case <-a.quit:
			return
		}
	}
}

// Restore возвращает поле в сохранённое состояние через обычный путь переходов.
// Строки с ID, которых нет в текущей раскладке, пропускаются.
func Restore(ctx context.Context, repo StateRepo, reg *field.Registry) (int, error) {
	rows, err := repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}

	known := rows[:0]
	for _, row := range rows {
		if _, ok := reg.Interactable(row.ID); ok {
			known = append(known, row)
		} else {
			logging.GetStorageLogger().Warn("Restore: сущность %d отсутствует в раскладке, пропуск", row.ID)
		}
	}
	if err := reg.Restore(known); err != nil {
		return 0, err
	}

	logging.GetStorageLogger().Info("💾 Restore: восстановлено %d строк", len(known))
	return len(known), nil
}
