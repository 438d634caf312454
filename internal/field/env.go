package field

import (
	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/authority"
	"github.com/annel0/burrow/internal/logging"
	"github.com/annel0/burrow/internal/schedule"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит Prometheus-метрики полей
type Metrics struct {
	Interactions  *prometheus.CounterVec // role, result
	Transitions   *prometheus.CounterVec // result
	Cancellations prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil: без регистрации)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field",
			Name:      "interactions_total",
			Help:      "Запросы на взаимодействие по ролям и результату.",
		}, []string{"role", "result"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "field",
			Name:      "transitions_total",
			Help:      "Переходы состояний: committed или dropped шлюзом.",
		}, []string{"result"}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "field",
			Name:      "cancellations_total",
			Help:      "Прерванные действия.",
		}),
	}

	if reg == nil {
		return m
	}
	for _, c := range []prometheus.Collector{m.Interactions, m.Transitions, m.Cancellations} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logging.Warn("Не удалось зарегистрировать метрику field: %v", err)
			}
		}
	}
	return m
}

// Env общие сервисы сессии, которые получает каждая сущность при создании
type Env struct {
	Gate       *authority.Gate
	Scheduler  *schedule.Scheduler
	Feedback   action.Feedback
	Priorities map[string]Priority
	Metrics    *Metrics
}

// NewEnv создаёт окружение с пресетами приоритетов по умолчанию
func NewEnv(gate *authority.Gate, scheduler *schedule.Scheduler) *Env {
	if gate == nil {
		gate = authority.NewGate(nil)
	}
	if scheduler == nil {
		scheduler = schedule.NewScheduler()
	}
	return &Env{
		Gate:       gate,
		Scheduler:  scheduler,
		Priorities: DefaultPriorities(),
		Metrics:    NewMetrics(nil),
	}
}

func (env *Env) priorityFor(state string) Priority {
	if p, ok := env.Priorities[state]; ok {
		return p
	}
	return DefaultPriorities()[state]
}

func (env *Env) countInteraction(role action.Role, result string) {
	if env.Metrics != nil {
		env.Metrics.Interactions.WithLabelValues(role.String(), result).Inc()
	}
}

func (env *Env) countTransition(result string) {
	if env.Metrics != nil {
		env.Metrics.Transitions.WithLabelValues(result).Inc()
	}
}

func (env *Env) countCancel() {
	if env.Metrics != nil {
		env.Metrics.Cancellations.Inc()
	}
}
