package authority

import (
	"github.com/annel0/burrow/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит Prometheus-счётчики шлюза полномочий
type Metrics struct {
	GrantsIssued   prometheus.Counter
	GrantsConsumed prometheus.Counter
	Denied         prometheus.Counter
	Relayed        prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil: без регистрации).
// Повторная регистрация тех же имён игнорируется.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GrantsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "grants_issued_total",
			Help:      "Количество выданных одноразовых разрешений на мутацию.",
		}),
		GrantsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "grants_consumed_total",
			Help:      "Количество разрешений, израсходованных на переход состояния.",
		}),
		Denied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "mutations_denied_total",
			Help:      "Попытки мутации без разрешения на клиенте.",
		}),
		Relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "transitions_relayed_total",
			Help:      "Переходы, переданные хостом в удалённый нотификатор.",
		}),
	}

	if reg == nil {
		return m
	}
	for _, c := range []prometheus.Collector{m.GrantsIssued, m.GrantsConsumed, m.Denied, m.Relayed} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logging.Warn("Не удалось зарегистрировать метрику authority: %v", err)
			}
		}
	}
	return m
}
