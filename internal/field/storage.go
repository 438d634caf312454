package field

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/schedule"
)

// Хранилище не имеет конечного автомата: его меню зависит только от роли владельца
// и запаса. Запас ретранслируется как состояние вида "stock:N".
const storageStatePrefix = "stock:"

// Storage амбар фермера или нора-склад крота
type Storage struct {
	plumbing

	id    uint64
	owner action.Role

	stockMu sync.RWMutex
	stock   int

	highlight *Highlight
}

// NewStorage создаёт хранилище владельца owner с начальным запасом моркови
func NewStorage(id uint64, owner action.Role, env *Env, stock int) *Storage {
	s := &Storage{
		id:        id,
		owner:     owner,
		stock:     stock,
		highlight: NewHighlight(env.Scheduler, 300*time.Millisecond, 6),
	}
	s.env = env
	return s
}

func (s *Storage) ID() uint64            { return s.id }
func (s *Storage) Owner() action.Role    { return s.owner }
func (s *Storage) Busy() bool            { return s.busy() }
func (s *Storage) Highlight() *Highlight { return s.highlight }

// Stock текущий запас моркови
func (s *Storage) Stock() int {
	s.stockMu.RLock()
	defer s.stockMu.RUnlock()
	return s.stock
}

// StateName запас в виде имени состояния для ретрансляции
func (s *Storage) StateName() string {
	return storageStatePrefix + strconv.Itoa(s.Stock())
}

// canUse сообщает, есть ли у роли хоть одно действие с этим хранилищем
func (s *Storage) canUse(role action.Role) bool {
	switch s.owner {
	case action.RoleFarmer:
		return role == action.RoleFarmer || role == action.RoleMole
	case action.RoleMole:
		return role == action.RoleMole
	default:
		return false
	}
}

// Eligible проверяет, может ли участник что-то сделать с хранилищем
func (s *Storage) Eligible(c Caller) bool {
	if c == nil || s.busy() || !s.canUse(c.Role()) {
		return false
	}
	h := holdingsOf(c)
	switch {
	case c.Role() == s.owner && s.owner == action.RoleFarmer:
		return h.Count(ItemCarrot) > 0 || (h.Count(ItemSeed) == 0 && h.CanCarry(ItemSeed, 1))
	case c.Role() == s.owner:
		return h.Count(ItemCarrot) > 0
	default:
		return s.Stock() > 0 && h.CanCarry(ItemCarrot, 1)
	}
}

// Interact тот же контракт, что и у полей
func (s *Storage) Interact(c Caller, duration DurationFunc, done CompletionFunc) (bool, CancelFunc) {
	return s.interact(c, duration, done, s.Eligible, s.dispatch)
}

func (s *Storage) dispatch(a *Action) bool {
	h := holdingsOf(a.Caller)
	role := a.Caller.Role()

	if role != s.owner {
		return a.Start(action.KindSteal, func(completed bool) {
			if completed && s.Stock() > 0 && h.CanCarry(ItemCarrot, 1) && s.commit(-1) {
				h.Give(ItemCarrot, 1)
			}
		})
	}

	if h.Count(ItemCarrot) > 0 {
		return a.Start(action.KindDeposit, func(completed bool) {
			if !completed {
				return
			}
			n := h.Count(ItemCarrot)
			if n > 0 && s.commit(n) {
				h.Take(ItemCarrot, n)
			}
		})
	}

	return a.Start(action.KindPickUp, func(completed bool) {
		if completed {
			h.Give(ItemSeed, 1)
		}
	})
}

// commit меняет запас по тем же правилам полномочий, что и переходы полей
func (s *Storage) commit(delta int) bool {
	if !s.env.Gate.CanMutate(s.id) {
		s.env.countTransition("dropped")
		return false
	}
	s.stockMu.Lock()
	s.stock += delta
	if s.stock < 0 {
		s.stock = 0
	}
	s.stockMu.Unlock()

	s.env.countTransition("committed")
	s.env.Gate.NotifyCommitted(s.id, s.StateName())
	return true
}

// Apply принимает ретранслированный запас "stock:N"
func (s *Storage) Apply(name string) (bool, error) {
	if !strings.HasPrefix(name, storageStatePrefix) {
		return false, fmt.Errorf("%w: %s", ErrUnknownState, name)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, storageStatePrefix))
	if err != nil || n < 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownState, name)
	}
	return s.commit(n - s.Stock()), nil
}

// LightUp подсвечивает хранилище для роли, которая может с ним взаимодействовать
func (s *Storage) LightUp(role action.Role) {
	if s.canUse(role) {
		s.highlight.To(1)
	}
}

// LightDown гасит подсветку
func (s *Storage) LightDown(role action.Role) {
	if s.canUse(role) {
		s.highlight.To(0)
	}
}

// Highlight косметическая подсветка с плавным переходом по тикам планировщика.
// Повторный вызов с той же целью ничего не делает, новая цель прерывает анимацию.
type Highlight struct {
	sched *schedule.Scheduler
	step  time.Duration
	delta float64

	mu     sync.Mutex
	level  float64
	target float64
	anim   *schedule.Task
}

// NewHighlight создаёт подсветку, проходящую диапазон [0, 1] за fade в steps шагов
func NewHighlight(sched *schedule.Scheduler, fade time.Duration, steps int) *Highlight {
	if steps < 1 {
		steps = 1
	}
	return &Highlight{
		sched: sched,
		step:  fade / time.Duration(steps),
		delta: 1 / float64(steps),
	}
}

// Level текущая яркость
func (h *Highlight) Level() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

// Animating идёт ли анимация
func (h *Highlight) Animating() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.anim != nil
}

// To направляет яркость к target с текущего уровня
func (h *Highlight) To(target float64) {
	h.mu.Lock()
	if h.target == target && (h.anim != nil || h.level == target) {
		h.mu.Unlock()
		return
	}
	h.target = target
	anim := h.anim
	h.anim = nil
	h.mu.Unlock()

	if anim != nil {
		anim.Cancel()
	}
	h.next()
}

func (h *Highlight) next() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.level == h.target {
		return
	}

	var t *schedule.Task
	t = h.sched.After(h.step, func(completed bool) {
		if !completed {
			return
		}
		h.mu.Lock()
		if h.anim != t {
			h.mu.Unlock()
			return
		}
		h.anim = nil
		switch {
		case h.level < h.target:
			h.level += h.delta
			if h.level >= h.target-1e-9 {
				h.level = h.target
			}
		case h.level > h.target:
			h.level -= h.delta
			if h.level <= h.target+1e-9 {
				h.level = h.target
			}
		}
		h.mu.Unlock()
		h.next()
	})
	h.anim = t
}
