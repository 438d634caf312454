package authority

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateOfflineAlwaysMutates(t *testing.T) {
	g := NewGate(nil)
	assert.Equal(t, ModeOffline, g.Mode())

	for id := uint64(0); id < 16; id++ {
		assert.True(t, g.CanMutate(id))
		assert.True(t, g.CanMutate(id))
	}

	// Authorize вне сети ничего не копит
	g.Authorize(3)
	assert.Equal(t, 0, g.PendingGrants())
}

func TestGateHostIgnoresGrants(t *testing.T) {
	g := NewGate(nil)
	g.Configure(true)
	require.True(t, g.IsHost())

	g.Authorize(7)
	assert.Equal(t, 0, g.PendingGrants())
	assert.True(t, g.CanMutate(7))
	assert.True(t, g.CanMutate(8))
}

func TestGateClientGrantIsSingleUse(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	g := NewGate(m)
	g.Configure(false)
	assert.Equal(t, ModeClient, g.Mode())

	assert.False(t, g.CanMutate(5), "без разрешения клиент не мутирует")

	g.Authorize(5)
	assert.Equal(t, 1, g.PendingGrants())
	assert.True(t, g.CanMutate(5))
	assert.False(t, g.CanMutate(5), "разрешение одноразовое")

	// Разрешение привязано к сущности
	g.Authorize(5)
	assert.False(t, g.CanMutate(6))
	assert.True(t, g.CanMutate(5))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.GrantsIssued))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.GrantsConsumed))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Denied))
}

func TestGateDuplicateAuthorizeCollapses(t *testing.T) {
	g := NewGate(nil)
	g.Configure(false)

	g.Authorize(1)
	g.Authorize(1)
	assert.Equal(t, 1, g.PendingGrants())
	assert.True(t, g.CanMutate(1))
	assert.False(t, g.CanMutate(1))
}

func TestGateConfigureClearsGrants(t *testing.T) {
	g := NewGate(nil)
	g.Configure(false)
	g.Authorize(1)

	g.Configure(false)
	assert.Equal(t, 0, g.PendingGrants())
	assert.False(t, g.CanMutate(1))
}

func TestGateNotifyCommitted(t *testing.T) {
	g := NewGate(nil)

	type call struct {
		id    uint64
		state string
	}
	var calls []call
	g.RegisterRemoteNotifier(func(id uint64, state string) {
		calls = append(calls, call{id, state})
	})

	// Офлайн: не вызывается
	g.NotifyCommitted(1, "farm_ripe")
	assert.Empty(t, calls)

	g.Configure(false)
	g.NotifyCommitted(1, "farm_ripe")
	assert.Empty(t, calls, "клиент не ретранслирует")

	g.Configure(true)
	g.NotifyCommitted(2, "farm_mound")
	require.Len(t, calls, 1)
	assert.Equal(t, call{2, "farm_mound"}, calls[0])

	// Перерегистрация заменяет прежний нотификатор
	var second int
	g.RegisterRemoteNotifier(func(uint64, string) { second++ })
	g.NotifyCommitted(3, "farm_empty")
	assert.Len(t, calls, 1)
	assert.Equal(t, 1, second)
}

func TestGateDisableIsIdempotent(t *testing.T) {
	g := NewGate(nil)
	g.Configure(false)
	g.Authorize(9)
	called := false
	g.RegisterRemoteNotifier(func(uint64, string) { called = true })

	g.Disable()
	g.Disable()

	assert.False(t, g.Online())
	assert.Equal(t, 0, g.PendingGrants())
	assert.True(t, g.CanMutate(9))

	g.Configure(true)
	g.NotifyCommitted(9, "farm_empty")
	assert.False(t, called, "Disable сбрасывает нотификатор")
}

func TestGateRevokeDropsUnusedGrant(t *testing.T) {
	g := NewGate(nil)
	g.Configure(false)

	g.Authorize(5)
	g.Revoke(5)
	g.Revoke(6)
	assert.Equal(t, 0, g.PendingGrants())
	assert.False(t, g.CanMutate(5))
}
