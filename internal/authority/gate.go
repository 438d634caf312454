// Package authority решает, может ли текущий процесс менять состояние сущности.
//
// Вне сети и на хосте мутации разрешены всегда. Клиент применяет переход
// только по одноразовому разрешению, которое выдаёт транспорт по команде хоста.
package authority

import (
	"sync"

	"github.com/annel0/burrow/internal/logging"
)

// Mode режим сессии, в котором находится шлюз
type Mode int

const (
	ModeOffline Mode = iota
	ModeHost
	ModeClient
)

// String возвращает имя режима
func (m Mode) String() string {
	switch m {
	case ModeHost:
		return "host"
	case ModeClient:
		return "client"
	default:
		return "offline"
	}
}

// Notifier получает каждый переход, зафиксированный хостом
type Notifier func(entityID uint64, state string)

// Gate общий для всех сущностей сессии арбитр полномочий.
// Один экземпляр на сессию; сущности получают его при создании.
type Gate struct {
	mu       sync.Mutex
	online   bool
	host     bool
	grants   map[uint64]struct{}
	notifier Notifier
	metrics  *Metrics
}

// NewGate создаёт шлюз в офлайн-режиме. metrics может быть nil.
func NewGate(metrics *Metrics) *Gate {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Gate{
		grants:  make(map[uint64]struct{}),
		metrics: metrics,
	}
}

// Configure включает сетевой режим и сбрасывает прежние разрешения
func (g *Gate) Configure(isHost bool) {
	g.mu.Lock()
	g.online = true
	g.host = isHost
	g.grants = make(map[uint64]struct{})
	g.mu.Unlock()

	logging.GetAuthorityLogger().Info("🔐 Authority: сетевой режим включён (%s)", g.Mode())
}

// Disable выключает сетевой режим, сбрасывает разрешения и нотификатор. Идемпотентен.
func (g *Gate) Disable() {
	g.mu.Lock()
	wasOnline := g.online
	g.online = false
	g.host = false
	g.grants = make(map[uint64]struct{})
	g.notifier = nil
	g.mu.Unlock()

	if wasOnline {
		logging.GetAuthorityLogger().Info("🔐 Authority: сетевой режим выключен")
	}
}

// RegisterRemoteNotifier заменяет нотификатор, вызываемый при фиксации перехода хостом
func (g *Gate) RegisterRemoteNotifier(fn Notifier) {
	g.mu.Lock()
	g.notifier = fn
	g.mu.Unlock()
}

// Authorize выдаёт клиенту одноразовое разрешение на мутацию сущности.
// На хосте и вне сети ничего не делает: там разрешения не нужны.
// Повторный вызов до расходования не добавляет второго разрешения.
func (g *Gate) Authorize(entityID uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.online || g.host {
		return
	}
	g.grants[entityID] = struct{}{}
	g.metrics.GrantsIssued.Inc()
}

// Revoke отзывает неизрасходованное разрешение, если оно есть
func (g *Gate) Revoke(entityID uint64) {
	g.mu.Lock()
	delete(g.grants, entityID)
	g.mu.Unlock()
}

// CanMutate отвечает, можно ли сейчас менять сущность.
// На клиенте успешный ответ расходует разрешение.
func (g *Gate) CanMutate(entityID uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.online || g.host {
		return true
	}
	if _, ok := g.grants[entityID]; !ok {
		g.metrics.Denied.Inc()
		return false
	}
	delete(g.grants, entityID)
	g.metrics.GrantsConsumed.Inc()
	return true
}

// NotifyCommitted передаёт зафиксированный переход нотификатору. Только на хосте.
func (g *Gate) NotifyCommitted(entityID uint64, state string) {
	g.mu.Lock()
	if !g.online || !g.host {
		g.mu.Unlock()
		return
	}
	fn := g.notifier
	g.mu.Unlock()

	if fn == nil {
		return
	}
	g.metrics.Relayed.Inc()
	fn(entityID, state)
}

// Online сообщает, включён ли сетевой режим
func (g *Gate) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

// IsHost сообщает, является ли процесс хостом сетевой сессии
func (g *Gate) IsHost() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online && g.host
}

// Mode возвращает текущий режим
func (g *Gate) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case !g.online:
		return ModeOffline
	case g.host:
		return ModeHost
	default:
		return ModeClient
	}
}

// PendingGrants количество ещё не израсходованных разрешений
func (g *Gate) PendingGrants() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.grants)
}
