package field

import (
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/logging"
)

// KindStorage тип строки снимка для хранилищ
const KindStorage = "storage"

// Snapshot строка снимка сессии: для API, автосохранения и восстановления
type Snapshot struct {
	ID       uint64 `json:"id"`
	Kind     string `json:"kind"`
	State    string `json:"state"`
	Priority int    `json:"priority"`
	Active   bool   `json:"active"`
	Linked   uint64 `json:"linked,omitempty"`
}

// Registry владеет всеми сущностями и хранилищами сессии
type Registry struct {
	env *Env

	mu       sync.RWMutex
	entities map[uint64]*Entity
	storages map[uint64]*Storage
	nextID   uint64
}

// NewRegistry создаёт пустой реестр
func NewRegistry(env *Env) *Registry {
	return &Registry{
		env:      env,
		entities: make(map[uint64]*Entity),
		storages: make(map[uint64]*Storage),
		nextID:   1,
	}
}

// Env окружение, общее для всех сущностей реестра
func (r *Registry) Env() *Env { return r.env }

func (r *Registry) allocID() uint64 {
	id := r.nextID
	r.nextID++
	return id
}

// AddPlotPair создаёт грядку и подземную клетку под ней, связанные между собой.
// ID выдаются последовательно, поэтому одинаковая конфигурация даёт одинаковые ID на хосте и клиенте.
func (r *Registry) AddPlotPair() (*Entity, *Entity) {
	r.mu.Lock()
	farm := NewEntity(r.allocID(), KindFarm, r.env, NewFarmEmpty)
	under := NewEntity(r.allocID(), KindUnderground, r.env, NewUndergroundSolid)
	r.entities[farm.ID()] = farm
	r.entities[under.ID()] = under
	r.mu.Unlock()

	Link(farm, under)
	logging.Debug("Registry: грядка %d связана с клеткой %d", farm.ID(), under.ID())
	return farm, under
}

// AddStorage создаёт хранилище владельца owner
func (r *Registry) AddStorage(owner action.Role, stock int) *Storage {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := NewStorage(r.allocID(), owner, r.env, stock)
	r.storages[s.ID()] = s
	return s
}

// Entity сущность по ID
func (r *Registry) Entity(id uint64) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// Storage хранилище по ID
func (r *Registry) Storage(id uint64) (*Storage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.storages[id]
	return s, ok
}

// Interactable поле или хранилище по ID
func (r *Registry) Interactable(id uint64) (Interactable, bool) {
	if e, ok := r.Entity(id); ok {
		return e, true
	}
	if s, ok := r.Storage(id); ok {
		return s, true
	}
	return nil, false
}

// Apply применяет ретранслированное или сохранённое состояние к объекту id
func (r *Registry) Apply(id uint64, state string) (bool, error) {
	if e, ok := r.Entity(id); ok {
		return e.Apply(state)
	}
	if s, ok := r.Storage(id); ok {
		return s.Apply(state)
	}
	return false, fmt.Errorf("%w: %d", ErrUnknownEntity, id)
}

// Snapshot снимок всех объектов по возрастанию ID
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	rows := make([]Snapshot, 0, len(r.entities)+len(r.storages))
	for _, e := range r.entities {
		row := Snapshot{
			ID:     e.ID(),
			Kind:   e.Kind().String(),
			Active: e.Active(),
		}
		st := e.State()
		row.State = st.Name()
		row.Priority = st.Priority()
		if l := e.Linked(); l != nil {
			row.Linked = l.ID()
		}
		rows = append(rows, row)
	}
	for _, s := range r.storages {
		rows = append(rows, Snapshot{
			ID:     s.ID(),
			Kind:   KindStorage,
			State:  s.StateName(),
			Active: true,
		})
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// Ranked поля по убыванию приоритета, при равенстве по ID. Хранилища не участвуют.
func (r *Registry) Ranked() []Snapshot {
	all := r.Snapshot()
	rows := all[:0]
	for _, row := range all {
		if row.Kind != KindStorage && row.Active {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Priority != rows[j].Priority {
			return rows[i].Priority > rows[j].Priority
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

// Restore возвращает объекты в сохранённые состояния. Совпадающие строки пропускаются.
func (r *Registry) Restore(rows []Snapshot) error {
	for _, row := range rows {
		if e, ok := r.Entity(row.ID); ok {
			if e.State().Name() != row.State {
				if _, err := e.Apply(row.State); err != nil {
					return fmt.Errorf("restore %d: %w", row.ID, err)
				}
			}
			e.SetActive(row.Active)
			continue
		}
		if s, ok := r.Storage(row.ID); ok {
			if s.StateName() != row.State {
				if _, err := s.Apply(row.State); err != nil {
					return fmt.Errorf("restore %d: %w", row.ID, err)
				}
			}
			continue
		}
		return fmt.Errorf("restore: %w: %d", ErrUnknownEntity, row.ID)
	}
	return nil
}
