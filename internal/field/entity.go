package field

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/burrow/internal/logging"
)

var (
	// ErrUnknownState имя состояния не зарегистрировано
	ErrUnknownState = errors.New("unknown field state")
	// ErrWrongKind состояние не подходит к типу сущности
	ErrWrongKind = errors.New("state does not match entity kind")
	// ErrUnknownEntity сущность с таким ID не найдена
	ErrUnknownEntity = errors.New("unknown entity")
)

// EntityKind тип постоянного объекта мира
type EntityKind uint8

const (
	KindFarm        EntityKind = iota + 1 // грядка на поверхности
	KindUnderground                       // подземная клетка под грядкой
)

// String возвращает имя типа
func (k EntityKind) String() string {
	switch k {
	case KindFarm:
		return "farm"
	case KindUnderground:
		return "underground"
	default:
		return "unknown"
	}
}

// Entity постоянный объект мира, управляемый конечным автоматом.
// У сущности всегда ровно одно текущее состояние, не разделяемое с другими.
type Entity struct {
	id   uint64
	kind EntityKind
	env  *Env

	mu            sync.RWMutex
	state         State
	linked        *Entity
	active        bool
	transitioning bool
	enters        int
	exits         int
}

// NewEntity создаёт сущность в начальном состоянии initial
func NewEntity(id uint64, kind EntityKind, env *Env, initial StateFactory) *Entity {
	e := &Entity{
		id:     id,
		kind:   kind,
		env:    env,
		active: true,
	}
	e.state = initial(e)
	return e
}

// Link связывает две сущности симметрично, разрывая их прежние пары
func Link(a, b *Entity) {
	for _, e := range []*Entity{a, b} {
		if old := e.Linked(); old != nil {
			old.mu.Lock()
			old.linked = nil
			old.mu.Unlock()
		}
	}
	a.mu.Lock()
	a.linked = b
	a.mu.Unlock()
	b.mu.Lock()
	b.linked = a
	b.mu.Unlock()

	a.syncPriority()
	b.syncPriority()
}

func (e *Entity) ID() uint64       { return e.id }
func (e *Entity) Kind() EntityKind { return e.kind }

// State текущее состояние сущности
func (e *Entity) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Linked связанная сущность или nil
func (e *Entity) Linked() *Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.linked
}

// Active сообщает, принимает ли сущность взаимодействия
func (e *Entity) Active() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// SetActive включает или выключает сущность
func (e *Entity) SetActive(active bool) {
	e.mu.Lock()
	e.active = active
	e.mu.Unlock()
}

// Lifecycle возвращает число вызовов on-enter и on-exit за время жизни сущности
func (e *Entity) Lifecycle() (enters, exits int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enters, e.exits
}

func (e *Entity) recordEnter() {
	e.mu.Lock()
	e.enters++
	e.mu.Unlock()
}

func (e *Entity) recordExit() {
	e.mu.Lock()
	e.exits++
	e.mu.Unlock()
}

// Eligible реализует Interactable через текущее состояние
func (e *Entity) Eligible(c Caller) bool {
	if !e.Active() {
		return false
	}
	return e.State().Eligible(c)
}

// Interact реализует Interactable через текущее состояние
func (e *Entity) Interact(c Caller, duration DurationFunc, done CompletionFunc) (bool, CancelFunc) {
	if !e.Active() {
		return false, nil
	}
	return e.State().Interact(c, duration, done)
}

// Transition заменяет текущее состояние, если шлюз полномочий разрешает мутацию.
// Отказ шлюза молча отбрасывает переход: клиент ждёт решения хоста.
func (e *Entity) Transition(next StateFactory) bool {
	if next == nil {
		return false
	}

	e.mu.Lock()
	if e.transitioning {
		e.mu.Unlock()
		logging.Warn("Field %d: вложенный переход отклонён", e.id)
		return false
	}
	e.transitioning = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.transitioning = false
		e.mu.Unlock()
	}()

	if !e.env.Gate.CanMutate(e.id) {
		e.env.countTransition("dropped")
		logging.GetFieldLogger().Debug("Field %d: переход отброшен, нет полномочий", e.id)
		return false
	}

	old := e.State()
	old.exit()
	ns := next(e)

	e.mu.Lock()
	e.state = ns
	e.mu.Unlock()

	e.env.countTransition("committed")
	logging.LogTransition(e.id, old.Name(), ns.Name())

	e.syncPriority()
	if l := e.Linked(); l != nil {
		l.syncPriority()
	}

	e.env.Gate.NotifyCommitted(e.id, ns.Name())
	return true
}

// TransitionPair переводит сущность в self, а связанную: в mirror.
// Каждая сторона проверяется шлюзом независимо: успех одной не даёт права другой.
func (e *Entity) TransitionPair(self, mirror StateFactory) (bool, bool) {
	ok := e.Transition(self)

	var linkedOK bool
	if l := e.Linked(); l != nil && mirror != nil {
		linkedOK = l.Transition(mirror)
	}
	return ok, linkedOK
}

// Apply переводит сущность в состояние по имени (ретрансляция, восстановление)
func (e *Entity) Apply(name string) (bool, error) {
	spec, ok := stateSpecs[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownState, name)
	}
	if spec.kind != e.kind {
		return false, fmt.Errorf("%w: %s on %s", ErrWrongKind, name, e.kind)
	}
	return e.Transition(spec.factory), nil
}

// syncPriority пересчитывает сигналы приоритета из состояния связанной сущности
func (e *Entity) syncPriority() {
	st := e.State()
	l := e.Linked()
	if l == nil {
		st.Escalate(0)
		st.SetConditional(false)
		return
	}
	other := l.State().Name()

	switch e.kind {
	case KindFarm:
		// Угроза снизу: ход или открытая нора под грядкой
		switch other {
		case StateUndergroundTunnel:
			st.Escalate(1)
		case StateUndergroundOpen:
			st.Escalate(2)
		default:
			st.Escalate(0)
		}
	case KindUnderground:
		// Ход без урожая наверху менее ценен
		st.SetConditional(other != StateFarmRipe)
	}
}
