package field

import (
	"sync"
	"time"

	"github.com/annel0/burrow/internal/logging"
	"github.com/annel0/burrow/internal/schedule"
)

// Step один шаг сценария: кто и с каким объектом взаимодействует
type Step struct {
	Caller Caller
	Target uint64
}

// BotStats итоги проигранного сценария
type BotStats struct {
	Completed int
	Cancelled int
	Skipped   int
}

// Bot проигрывает сценарий шагов на хосте. Длительность каждого действия
// берётся из durations, поэтому темп партии задаётся конфигурацией.
type Bot struct {
	reg       *Registry
	durations DurationFunc
	steps     []Step

	mu    sync.Mutex
	next  int
	busy  bool
	stats BotStats
}

// NewBot создаёт бота для реестра reg
func NewBot(reg *Registry, durations DurationFunc, steps []Step) *Bot {
	return &Bot{reg: reg, durations: durations, steps: steps}
}

// Tick запускает следующий шаг, если предыдущий уже завершился.
// Вызывается после каждого Advance. Возвращает false, когда сценарий исчерпан.
func (b *Bot) Tick() bool {
	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		return true
	}
	if b.next >= len(b.steps) {
		b.mu.Unlock()
		return false
	}
	step := b.steps[b.next]
	b.next++
	b.mu.Unlock()

	target, ok := b.reg.Interactable(step.Target)
	if !ok || !target.Eligible(step.Caller) {
		logging.GetFieldLogger().Warn("🤖 Bot: %s пропускает #%d", step.Caller.Role(), step.Target)
		b.mu.Lock()
		b.stats.Skipped++
		b.mu.Unlock()
		return true
	}

	b.mu.Lock()
	b.busy = true
	b.mu.Unlock()

	accepted, _ := target.Interact(step.Caller, b.durations, func(completed bool) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.busy = false
		if completed {
			b.stats.Completed++
		} else {
			b.stats.Cancelled++
		}
		logging.GetFieldLogger().Debug("🤖 Bot: %s закончил с #%d (completed=%v)", step.Caller.Role(), step.Target, completed)
	})
	if !accepted {
		b.mu.Lock()
		b.busy = false
		b.stats.Skipped++
		b.mu.Unlock()
	}
	return true
}

// Stats итоги на текущий момент
func (b *Bot) Stats() BotStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Run прокручивает планировщик шагами tick, пока сценарий не закончится
// или не истечёт maxTicks. Возвращает число сделанных тиков.
func (b *Bot) Run(sched *schedule.Scheduler, tick time.Duration, maxTicks int) int {
	ticks := 0
	for b.Tick() && ticks < maxTicks {
		sched.Advance(tick)
		ticks++
	}
	return ticks
}
