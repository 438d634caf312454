// Package relay связывает шлюз полномочий с шиной событий.
//
// Хост публикует каждый зафиксированный переход. Клиент складывает
// полученные переходы во входящую очередь, а Pump на тике сессии
// выдаёт одноразовое разрешение и применяет состояние к сущности.
package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/burrow/internal/authority"
	"github.com/annel0/burrow/internal/eventbus"
	"github.com/annel0/burrow/internal/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// EventFieldTransition тип события в шине
const EventFieldTransition = "FieldTransition"

const (
	metaEncoding       = "encoding"
	publishTimeout     = 2 * time.Second
	transitionPriority = 7 // не дропается при переполнении буфера шины
)

// Applier принимает ретранслированное состояние по ID сущности
type Applier interface {
	Apply(id uint64, state string) (bool, error)
}

// Options параметры ретранслятора
type Options struct {
	NodeID   string
	Codec    Codec
	Registry prometheus.Registerer
}

// Metrics счётчики ретранслятора
type Metrics struct {
	Published prometheus.Counter
	Received  *prometheus.CounterVec // result: queued, own, stale, invalid
	Applied   *prometheus.CounterVec // result: applied, rejected, error
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "published_total",
			Help:      "Переходы, опубликованные хостом.",
		}),
		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "received_total",
			Help:      "Полученные клиентом переходы по результату разбора.",
		}, []string{"result"}),
		Applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "applied_total",
			Help:      "Переходы из входящей очереди по результату применения.",
		}, []string{"result"}),
	}
	if reg == nil {
		return m
	}
	for _, c := range []prometheus.Collector{m.Published, m.Received, m.Applied} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logging.Warn("Не удалось зарегистрировать метрику relay: %v", err)
			}
		}
	}
	return m
}

type inbound struct {
	t    Transition
	meta map[string]string
}

// Relay ретранслятор переходов между хостом и клиентами
type Relay struct {
	seq uint64 // счётчик хоста; стартует со времени запуска, чтобы переживать рестарт

	bus     eventbus.EventBus
	gate    *authority.Gate
	target  Applier
	node    string
	codec   Codec
	codecs  codecSet
	tracer  trace.Tracer
	prop    propagation.TextMapPropagator
	metrics *Metrics

	mu      sync.Mutex
	ctx     context.Context
	lastSeq map[uint64]uint64
	inbox   []inbound
	sub     eventbus.Subscription
}

// New создаёт ретранслятор. Режим берётся из шлюза при Start.
func New(bus eventbus.EventBus, gate *authority.Gate, target Applier, opts Options) *Relay {
	if opts.NodeID == "" {
		opts.NodeID = uuid.NewString()
	}
	if opts.Codec == nil {
		opts.Codec = NewJSONCodec()
	}
	codecs := codecSet{EncodingJSON: NewJSONCodec(), opts.Codec.Name(): opts.Codec}
	if _, ok := codecs[EncodingZstd]; !ok {
		if z, err := NewZstdCodec(); err == nil {
			codecs[EncodingZstd] = z
		}
	}

	return &Relay{
		bus:     bus,
		gate:    gate,
		target:  target,
		node:    opts.NodeID,
		codec:   opts.Codec,
		codecs:  codecs,
		tracer:  otel.Tracer("github.com/annel0/burrow/internal/relay"),
		prop:    propagation.TraceContext{},
		metrics: newMetrics(opts.Registry),
		seq:     uint64(time.Now().UnixNano()),
		ctx:     context.Background(),
		lastSeq: make(map[uint64]uint64),
	}
}

// NodeID идентификатор узла в поле Origin
func (r *Relay) NodeID() string { return r.node }

// Start подключает ретранслятор в соответствии с режимом шлюза
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	switch r.gate.Mode() {
	case authority.ModeHost:
		r.gate.RegisterRemoteNotifier(r.publish)
		logging.GetRelayLogger().Info("📡 Relay: хост %s публикует переходы", r.node)
	case authority.ModeClient:
		sub, err := r.bus.Subscribe(ctx, eventbus.Filter{Types: []string{EventFieldTransition}}, r.handle)
		if err != nil {
			return fmt.Errorf("relay subscribe: %w", err)
		}
		r.mu.Lock()
		r.sub = sub
		r.mu.Unlock()
		logging.GetRelayLogger().Info("📡 Relay: клиент %s слушает переходы", r.node)
	default:
		logging.GetRelayLogger().Debug("Relay: офлайн, ретрансляция не нужна")
	}
	return nil
}

// Stop отключает ретранслятор от шлюза и шины
func (r *Relay) Stop() {
	r.gate.RegisterRemoteNotifier(nil)

	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// publish нотификатор шлюза на хосте
func (r *Relay) publish(entityID uint64, state string) {
	r.mu.Lock()
	parent := r.ctx
	r.mu.Unlock()

	ctx, span := r.tracer.Start(parent, "relay.publish", trace.WithAttributes(
		attribute.Int64("field.entity_id", int64(entityID)),
		attribute.String("field.state", state),
	))
	defer span.End()

	t := Transition{
		EntityID: entityID,
		State:    state,
		Seq:      atomic.AddUint64(&r.seq, 1),
		Origin:   r.node,
	}
	payload, err := r.codec.Encode(t)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode")
		logging.GetRelayLogger().Error("Relay: не удалось закодировать переход %d: %v", entityID, err)
		return
	}

	meta := map[string]string{metaEncoding: r.codec.Name()}
	r.prop.Inject(ctx, propagation.MapCarrier(meta))

	ev := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    r.node,
		EventType: EventFieldTransition,
		Version:   1,
		Priority:  transitionPriority,
		Payload:   payload,
		Metadata:  meta,
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.bus.Publish(pctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		logging.GetRelayLogger().Error("Relay: публикация перехода %d -> %s не удалась: %v", entityID, state, err)
		return
	}
	r.metrics.Published.Inc()
	logging.GetRelayLogger().Trace("Relay: %d -> %s seq=%d", entityID, state, t.Seq)
}

// handle обработчик шины на клиенте. Только ставит переход в очередь.
func (r *Relay) handle(_ context.Context, ev *eventbus.Envelope) {
	t, err := r.codecs.decode(ev.Metadata[metaEncoding], ev.Payload)
	if err != nil {
		r.metrics.Received.WithLabelValues("invalid").Inc()
		logging.GetRelayLogger().Warn("Relay: событие %s отброшено: %v", ev.ID, err)
		return
	}
	if t.Origin == r.node {
		r.metrics.Received.WithLabelValues("own").Inc()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Seq <= r.lastSeq[t.EntityID] {
		r.metrics.Received.WithLabelValues("stale").Inc()
		return
	}
	r.lastSeq[t.EntityID] = t.Seq
	r.inbox = append(r.inbox, inbound{t: t, meta: ev.Metadata})
	r.metrics.Received.WithLabelValues("queued").Inc()
}

// Pending количество переходов во входящей очереди
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inbox)
}

// Pump применяет накопленные переходы. Вызывается на тике сессии,
// в том же потоке, что и взаимодействия. Возвращает число применённых.
func (r *Relay) Pump() int {
	r.mu.Lock()
	batch := r.inbox
	r.inbox = nil
	parent := r.ctx
	r.mu.Unlock()

	applied := 0
	for _, in := range batch {
		ctx := r.prop.Extract(parent, propagation.MapCarrier(in.meta))
		_, span := r.tracer.Start(ctx, "relay.apply", trace.WithAttributes(
			attribute.Int64("field.entity_id", int64(in.t.EntityID)),
			attribute.String("field.state", in.t.State),
		))

		r.gate.Authorize(in.t.EntityID)
		ok, err := r.target.Apply(in.t.EntityID, in.t.State)
		if err != nil || !ok {
			r.gate.Revoke(in.t.EntityID)
		}
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "apply")
			r.metrics.Applied.WithLabelValues("error").Inc()
			logging.GetRelayLogger().Warn("Relay: переход %d -> %s не применён: %v", in.t.EntityID, in.t.State, err)
		case !ok:
			r.metrics.Applied.WithLabelValues("rejected").Inc()
			logging.GetRelayLogger().Debug("Relay: переход %d -> %s отклонён", in.t.EntityID, in.t.State)
		default:
			applied++
			r.metrics.Applied.WithLabelValues("applied").Inc()
		}
		span.End()
	}
	return applied
}
