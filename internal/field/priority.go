package field

// Priority весовой сигнал состояния для автоматических агентов.
// Значение не зависит от роли того, кто его читает.
type Priority struct {
	Baseline  int `yaml:"baseline" json:"baseline"`
	Critical  int `yaml:"critical" json:"critical,omitempty"`   // 0: эскалации нет
	Threshold int `yaml:"threshold" json:"threshold,omitempty"` // уровень, с которого действует Critical; <=0: эскалации нет
	Divisor   int `yaml:"divisor" json:"divisor,omitempty"`     // делитель при выполненном условии; <=1: не применяется
}

// Value вычисляет приоритет для уровня угрозы и флага условия
func (p Priority) Value(level int, conditional bool) int {
	if p.Critical > 0 && p.Threshold > 0 && level >= p.Threshold {
		return p.Critical
	}
	if conditional && p.Divisor > 1 {
		return p.Baseline / p.Divisor
	}
	return p.Baseline
}

// DefaultPriorities пресеты приоритетов по именам состояний
func DefaultPriorities() map[string]Priority {
	return map[string]Priority{
		StateFarmEmpty:         {Baseline: 10},
		StateFarmPlanted:       {Baseline: 20},
		StateFarmRipe:          {Baseline: 50, Critical: 100, Threshold: 1},
		StateFarmMound:         {Baseline: 40, Critical: 90, Threshold: 2},
		StateUndergroundSolid:  {Baseline: 10},
		StateUndergroundTunnel: {Baseline: 60, Divisor: 3},
		StateUndergroundOpen:   {Baseline: 30},
	}
}
