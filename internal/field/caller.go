package field

import (
	"sync"
	"time"

	"github.com/annel0/burrow/internal/action"
)

// Item предмет, которым может владеть участник
type Item string

const (
	ItemSeed        Item = "seed"
	ItemCarrot      Item = "carrot"
	ItemWateringCan Item = "watering_can"
	ItemShovel      Item = "shovel"
)

// Holdings доступ к ресурсам участника. Учёт рюкзака живёт вне ядра,
// поля только проверяют и меняют количество через этот интерфейс.
type Holdings interface {
	Count(item Item) int
	CanCarry(item Item, n int) bool
	Give(item Item, n int) bool
	Take(item Item, n int) bool
}

// Caller участник, запросивший взаимодействие (контроллер аватара)
type Caller interface {
	ID() uint64
	Role() action.Role
	// BotControlled true, если ролью сейчас управляет бот: ему не нужен звуковой отклик
	BotControlled() bool
	Holdings() Holdings
}

// DurationFunc сообщает, сколько логического времени занимает действие
type DurationFunc func(kind action.Kind) time.Duration

// CompletionFunc вызывается один раз по завершении принятого действия.
// completed=false означает отмену.
type CompletionFunc func(completed bool)

// CancelFunc прерывает действие. Повторный вызов ничего не делает.
type CancelFunc func()

// Interactable общий контракт полей и хранилищ для контроллеров аватаров
type Interactable interface {
	Eligible(caller Caller) bool
	Interact(caller Caller, duration DurationFunc, done CompletionFunc) (bool, CancelFunc)
}

// Bag простой рюкзак в памяти. Capacity ограничивает суммарное число предметов (0: без ограничений).
type Bag struct {
	mu       sync.Mutex
	items    map[Item]int
	Capacity int
}

// NewBag создаёт рюкзак с начальным содержимым
func NewBag(capacity int, items map[Item]int) *Bag {
	b := &Bag{items: make(map[Item]int), Capacity: capacity}
	for item, n := range items {
		if n > 0 {
			b.items[item] = n
		}
	}
	return b
}

func (b *Bag) Count(item Item) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items[item]
}

func (b *Bag) CanCarry(item Item, n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canCarry(n)
}

func (b *Bag) canCarry(n int) bool {
	if b.Capacity <= 0 {
		return true
	}
	total := 0
	for _, c := range b.items {
		total += c
	}
	return total+n <= b.Capacity
}

func (b *Bag) Give(item Item, n int) bool {
	if n <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.canCarry(n) {
		return false
	}
	if b.items == nil {
		b.items = make(map[Item]int)
	}
	b.items[item] += n
	return true
}

func (b *Bag) Take(item Item, n int) bool {
	if n <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items[item] < n {
		return false
	}
	b.items[item] -= n
	if b.items[item] == 0 {
		delete(b.items, item)
	}
	return true
}

// Avatar простая реализация Caller для ботов и тестов
type Avatar struct {
	AvatarID uint64
	AsRole   action.Role
	Bot      bool
	Bag      *Bag
}

func (a *Avatar) ID() uint64          { return a.AvatarID }
func (a *Avatar) Role() action.Role   { return a.AsRole }
func (a *Avatar) BotControlled() bool { return a.Bot }

func (a *Avatar) Holdings() Holdings {
	if a.Bag == nil {
		return nil
	}
	return a.Bag
}

// holdingsOf возвращает ресурсы участника; отсутствие рюкзака равно пустому рюкзаку
func holdingsOf(c Caller) Holdings {
	if h := c.Holdings(); h != nil {
		return h
	}
	return emptyHoldings{}
}

type emptyHoldings struct{}

func (emptyHoldings) Count(Item) int          { return 0 }
func (emptyHoldings) CanCarry(Item, int) bool { return false }
func (emptyHoldings) Give(Item, int) bool     { return false }
func (emptyHoldings) Take(Item, int) bool     { return false }
