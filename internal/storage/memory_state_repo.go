package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/annel0/burrow/internal/field"
)

// MemoryStateRepo реализует StateRepo в памяти.
// Используется для одиночной игры и тестов.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryStateRepo struct {
	mu   sync.RWMutex
	data map[uint64]field.Snapshot
}

// NewMemoryStateRepo создает новый репозиторий в памяти.
func NewMemoryStateRepo() *MemoryStateRepo {
	return &MemoryStateRepo{data: make(map[uint64]field.Snapshot)}
}

func (r *MemoryStateRepo) Save(ctx context.Context, rows []field.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(rows); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.data[row.ID] = row
	}
	return nil
}

func (r *MemoryStateRepo) Load(ctx context.Context, id uint64) (field.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return field.Snapshot{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.data[id]
	return row, ok, nil
}

func (r *MemoryStateRepo) LoadAll(ctx context.Context) ([]field.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	rows := make([]field.Snapshot, 0, len(r.data))
	for _, row := range r.data {
		rows = append(rows, row)
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (r *MemoryStateRepo) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return ErrNotFound
	}
	delete(r.data, id)
	return nil
}

// Count количество сохранённых строк (для отладки)
func (r *MemoryStateRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *MemoryStateRepo) Close() error { return nil }
