package field

import (
	"sync"
	"time"

	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/logging"
	"github.com/annel0/burrow/internal/schedule"
)

// State текущее поведение сущности: что можно сделать, что произойдёт и как это прервать.
// Экземпляр принадлежит ровно одной сущности от создания до замены.
type State interface {
	Interactable

	Name() string
	Entity() *Entity
	// Busy true, пока принятое действие ждёт завершения или отмены
	Busy() bool

	Priority() int
	PriorityConfig() Priority
	SetPriority(p Priority)
	Escalate(level int)
	SetConditional(on bool)

	exit()
}

// StateFactory создаёт новое состояние для сущности. Конструктор сам выполняет on-enter.
type StateFactory func(e *Entity) State

// RoleHooks поведение конкретного состояния по ролям.
// Листовые состояния встраивают NoHooks и переопределяют только нужное.
type RoleHooks interface {
	FarmerEligible(c Caller) bool
	MoleEligible(c Caller) bool
	FarmerAction(a *Action) bool
	MoleAction(a *Action) bool
}

// NoHooks запрещает всё: необработанная пара роль x состояние просто недоступна
type NoHooks struct{}

func (NoHooks) FarmerEligible(Caller) bool { return false }
func (NoHooks) MoleEligible(Caller) bool   { return false }
func (NoHooks) FarmerAction(*Action) bool  { return false }
func (NoHooks) MoleAction(*Action) bool    { return false }

type enterHook interface{ OnEnter() }
type exitHook interface{ OnExit() }

// plumbing общая механика взаимодействия для полей и хранилищ:
// проверки аргументов, отклик на отказ, обёртка длительности, флаг занятости, отмена.
type plumbing struct {
	env    *Env
	mu     sync.Mutex
	task   *schedule.Task
	closed bool
}

func (p *plumbing) busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.task != nil
}

func (p *plumbing) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *plumbing) interact(
	c Caller,
	duration DurationFunc,
	done CompletionFunc,
	eligible func(Caller) bool,
	dispatch func(*Action) bool,
) (bool, CancelFunc) {
	if c == nil || duration == nil || done == nil {
		return false, nil
	}

	env := p.env
	role := c.Role()
	if !eligible(c) {
		if !c.BotControlled() {
			env.Feedback.Trigger(action.KindNone, role)
		}
		env.countInteraction(role, "rejected")
		return false, nil
	}

	a := &Action{
		Caller: c,
		owner:  p,
		done:   done,
		duration: func(kind action.Kind) time.Duration {
			env.Feedback.Trigger(kind, role)
			return duration(kind)
		},
	}

	accepted := dispatch(a)
	switch {
	case accepted && a.task == nil:
		logging.Warn("Field: действие принято без запуска задачи (role=%s)", role)
		accepted = false
	case !accepted && a.task != nil:
		a.silent = true
		a.task.Cancel()
	}
	if !accepted {
		env.countInteraction(role, "rejected")
		return false, nil
	}

	env.countInteraction(role, "accepted")
	task := a.task
	return true, func() { p.cancel(task) }
}

// cancel прерывает задачу; колбэк завершения срабатывает синхронно с completed=false
func (p *plumbing) cancel(task *schedule.Task) {
	if task.Cancel() {
		p.env.countCancel()
	}
}

// close прерывает действие в полёте и запрещает новые
func (p *plumbing) close() {
	p.mu.Lock()
	p.closed = true
	task := p.task
	p.mu.Unlock()

	if task != nil {
		p.cancel(task)
	}
}

func (p *plumbing) release(task *schedule.Task) {
	p.mu.Lock()
	if p.task == task {
		p.task = nil
	}
	p.mu.Unlock()
}

// Action дескриптор одного принятого взаимодействия, передаётся обработчикам ролей
type Action struct {
	Caller Caller
	Kind   action.Kind

	owner    *plumbing
	duration DurationFunc
	done     CompletionFunc
	task     *schedule.Task
	silent   bool
}

// Start запускает действие kind на полную длительность
func (a *Action) Start(kind action.Kind, effect func(completed bool)) bool {
	return a.StartFor(kind, 1, effect)
}

// StartFor запускает действие на долю fraction от длительности.
// effect получает результат до колбэка вызывающего. Одно действие на взаимодействие.
func (a *Action) StartFor(kind action.Kind, fraction float64, effect func(completed bool)) bool {
	p := a.owner
	p.mu.Lock()
	if a.task != nil || p.task != nil || p.closed {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	if fraction <= 0 {
		fraction = 0
	}
	d := time.Duration(float64(a.duration(kind)) * fraction)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.task != nil || p.closed {
		return false
	}

	a.Kind = kind
	var task *schedule.Task
	task = p.env.Scheduler.After(d, func(completed bool) {
		// Состояние уже покинуто: результат устарел и не применяется
		if completed && p.isClosed() {
			completed = false
		}
		p.release(task)
		if effect != nil {
			effect(completed)
		}
		if !a.silent {
			a.done(completed)
		}
	})
	a.task = task
	p.task = task
	return true
}

// Progress доля выполненного действия; после отмены: доля на момент отмены
func (a *Action) Progress() float64 {
	if a.task == nil {
		return 0
	}
	return a.task.Progress()
}

// base общая часть всех состояний полей: диспетчеризация по роли и жизненный цикл
type base struct {
	plumbing

	name   string
	entity *Entity
	hooks  RoleHooks

	prioMu      sync.RWMutex
	priority    Priority
	level       int
	conditional bool
}

// init связывает состояние с сущностью и выполняет on-enter
func (b *base) init(e *Entity, name string, hooks RoleHooks) {
	b.env = e.env
	b.name = name
	b.entity = e
	b.hooks = hooks
	b.priority = e.env.priorityFor(name)

	e.recordEnter()
	if h, ok := hooks.(enterHook); ok {
		h.OnEnter()
	}
}

func (b *base) Name() string    { return b.name }
func (b *base) Entity() *Entity { return b.entity }
func (b *base) Busy() bool      { return b.busy() }

// Eligible диспетчеризует проверку по роли вызывающего. Без побочных эффектов.
func (b *base) Eligible(c Caller) bool {
	if c == nil || b.isClosed() || b.busy() {
		return false
	}
	switch c.Role() {
	case action.RoleFarmer:
		return b.hooks.FarmerEligible(c)
	case action.RoleMole:
		return b.hooks.MoleEligible(c)
	default:
		return false
	}
}

// Interact принимает или отклоняет взаимодействие
func (b *base) Interact(c Caller, duration DurationFunc, done CompletionFunc) (bool, CancelFunc) {
	return b.interact(c, duration, done, b.Eligible, func(a *Action) bool {
		switch a.Caller.Role() {
		case action.RoleFarmer:
			return b.hooks.FarmerAction(a)
		case action.RoleMole:
			return b.hooks.MoleAction(a)
		default:
			return false
		}
	})
}

func (b *base) Priority() int {
	b.prioMu.RLock()
	defer b.prioMu.RUnlock()
	return b.priority.Value(b.level, b.conditional)
}

func (b *base) PriorityConfig() Priority {
	b.prioMu.RLock()
	defer b.prioMu.RUnlock()
	return b.priority
}

func (b *base) SetPriority(p Priority) {
	b.prioMu.Lock()
	b.priority = p
	b.prioMu.Unlock()
}

// Escalate задаёт уровень угрозы для критической эскалации
func (b *base) Escalate(level int) {
	b.prioMu.Lock()
	b.level = level
	b.prioMu.Unlock()
}

// SetConditional включает условный делитель приоритета
func (b *base) SetConditional(on bool) {
	b.prioMu.Lock()
	b.conditional = on
	b.prioMu.Unlock()
}

// exit выполняет on-exit ровно один раз: прерывает действие в полёте и вызывает хук
func (b *base) exit() {
	if b.isClosed() {
		return
	}
	b.close()
	if h, ok := b.hooks.(exitHook); ok {
		h.OnExit()
	}
	b.entity.recordExit()
}
