package relay

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/authority"
	"github.com/annel0/burrow/internal/eventbus"
	"github.com/annel0/burrow/internal/field"
	"github.com/annel0/burrow/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type side struct {
	gate  *authority.Gate
	reg   *field.Registry
	relay *Relay
}

func newSide(t *testing.T, bus eventbus.EventBus, node string, host bool) *side {
	t.Helper()
	gate := authority.NewGate(nil)
	gate.Configure(host)

	reg := field.NewRegistry(field.NewEnv(gate, schedule.NewScheduler()))
	reg.AddPlotPair()
	reg.AddStorage(action.RoleFarmer, 0)

	codec, err := NewZstdCodec()
	require.NoError(t, err)
	r := New(bus, gate, reg, Options{NodeID: node, Codec: codec})
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Stop)

	return &side{gate: gate, reg: reg, relay: r}
}

func (s *side) state(t *testing.T, id uint64) string {
	t.Helper()
	for _, row := range s.reg.Snapshot() {
		if row.ID == id {
			return row.State
		}
	}
	t.Fatalf("entity %d not found", id)
	return ""
}

func waitPending(t *testing.T, r *Relay, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Pending() == n }, time.Second, 5*time.Millisecond)
}

func TestRelay_HostToClientRoundTrip(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	t.Cleanup(func() { _ = bus.Close() })
	host := newSide(t, bus, "host", true)
	client := newSide(t, bus, "client", false)

	_, err := host.reg.Apply(1, field.StateFarmPlanted)
	require.NoError(t, err)

	waitPending(t, client.relay, 1)
	assert.Equal(t, 1, client.relay.Pump())
	assert.Equal(t, field.StateFarmPlanted, client.state(t, 1))
	assert.Equal(t, 0, client.gate.PendingGrants())
}

func TestRelay_LinkedPairAndStorage(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	t.Cleanup(func() { _ = bus.Close() })
	host := newSide(t, bus, "host", true)
	client := newSide(t, bus, "client", false)

	under, ok := host.reg.Entity(2)
	require.True(t, ok)
	_, err := under.Apply(field.StateUndergroundTunnel)
	require.NoError(t, err)
	self, mirror := under.TransitionPair(field.NewUndergroundOpen, field.NewFarmMound)
	require.True(t, self)
	require.True(t, mirror)

	_, err = host.reg.Apply(3, "stock:4")
	require.NoError(t, err)

	// tunnel, open, mound, stock
	waitPending(t, client.relay, 4)
	assert.Equal(t, 4, client.relay.Pump())
	assert.Equal(t, host.reg.Snapshot(), client.reg.Snapshot())
}

func TestRelay_ClientCannotMutateLocally(t *testing.T) {
	bus := eventbus.NewMemoryBus(8)
	t.Cleanup(func() { _ = bus.Close() })
	client := newSide(t, bus, "client", false)

	applied, err := client.reg.Apply(1, field.StateFarmRipe)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, field.StateFarmEmpty, client.state(t, 1))
}

func TestRelay_HandleDropsOwnStaleAndInvalid(t *testing.T) {
	bus := eventbus.NewMemoryBus(8)
	t.Cleanup(func() { _ = bus.Close() })
	client := newSide(t, bus, "client", false)
	r := client.relay

	envelope := func(tr Transition) *eventbus.Envelope {
		payload, err := r.codec.Encode(tr)
		require.NoError(t, err)
		return &eventbus.Envelope{
			ID:        tr.State,
			EventType: EventFieldTransition,
			Payload:   payload,
			Metadata:  map[string]string{metaEncoding: r.codec.Name()},
		}
	}

	r.handle(context.Background(), envelope(Transition{EntityID: 1, State: field.StateFarmRipe, Seq: 10, Origin: "host"}))
	r.handle(context.Background(), envelope(Transition{EntityID: 1, State: field.StateFarmPlanted, Seq: 9, Origin: "host"}))
	r.handle(context.Background(), envelope(Transition{EntityID: 1, State: field.StateFarmPlanted, Seq: 11, Origin: "client"}))
	r.handle(context.Background(), &eventbus.Envelope{ID: "junk", Payload: []byte("{"), Metadata: map[string]string{metaEncoding: "brotli"}})

	assert.Equal(t, 1, r.Pending())
	assert.Equal(t, 1, r.Pump())
	assert.Equal(t, field.StateFarmRipe, client.state(t, 1))
}

func TestRelay_PumpRevokesGrantOnError(t *testing.T) {
	bus := eventbus.NewMemoryBus(8)
	t.Cleanup(func() { _ = bus.Close() })
	client := newSide(t, bus, "client", false)
	r := client.relay

	payload, err := NewJSONCodec().Encode(Transition{EntityID: 1, State: "farm_flooded", Seq: 1, Origin: "host"})
	require.NoError(t, err)
	r.handle(context.Background(), &eventbus.Envelope{ID: "bad", Payload: payload})

	assert.Equal(t, 0, r.Pump())
	assert.Equal(t, 0, client.gate.PendingGrants())
	assert.Equal(t, field.StateFarmEmpty, client.state(t, 1))
}

func TestCodecs_RoundTrip(t *testing.T) {
	z, err := NewZstdCodec()
	require.NoError(t, err)
	tr := Transition{EntityID: 7, State: field.StateUndergroundOpen, Seq: 3, Origin: "host"}

	for _, c := range []Codec{NewJSONCodec(), z} {
		payload, err := c.Encode(tr)
		require.NoError(t, err, c.Name())
		got, err := c.Decode(payload)
		require.NoError(t, err, c.Name())
		assert.Equal(t, tr, got)
	}

	_, err = z.Decode([]byte("not zstd"))
	assert.Error(t, err)
}
