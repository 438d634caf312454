package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/authority"
	"github.com/annel0/burrow/internal/field"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера сессии.
// Незаданные поля берутся из Defaults.
type Config struct {
	Session   SessionConfig     `yaml:"session"`
	EventBus  EventBusConfig    `yaml:"eventbus"`
	Server    ServerConfig      `yaml:"server"`
	Storage   StorageConfig     `yaml:"storage"`
	Field     FieldConfig       `yaml:"field"`
	Logging   LoggingConfig     `yaml:"logging"`
	Telemetry TelemetryConfig   `yaml:"telemetry"`
	Cues      []action.CueEntry `yaml:"cues"`
}

// SessionConfig роль процесса в сетевой сессии
type SessionConfig struct {
	Mode   string `yaml:"mode"`    // offline | host | client
	NodeID string `yaml:"node_id"` // пусто: сгенерировать при старте
}

// EventBusConfig шина для ретрансляции переходов. Пустой URL: шина в памяти.
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// StorageConfig хранилище снимков полей
type StorageConfig struct {
	Backend  string        `yaml:"backend"` // memory | redis | badger
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Path     string        `yaml:"path"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	Autosave time.Duration `yaml:"autosave"`
	Restore  bool          `yaml:"restore"`
}

// FieldConfig раскладка и настройка игрового поля
type FieldConfig struct {
	Tick            time.Duration             `yaml:"tick"`
	Plots           int                       `yaml:"plots"`
	BarnStock       int                       `yaml:"barn_stock"`
	DefaultDuration time.Duration             `yaml:"default_duration"`
	Durations       map[string]time.Duration  `yaml:"durations"`
	Priorities      map[string]field.Priority `yaml:"priorities"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`     // host:port OTLP/HTTP; пусто: OTEL_EXPORTER_OTLP_ENDPOINT или localhost:4318
	SampleRatio float64 `yaml:"sample_ratio"` // 0: трассировать всё
}

// Defaults конфигурация одиночной игры без внешних сервисов
func Defaults() *Config {
	return &Config{
		Session:  SessionConfig{Mode: "offline"},
		EventBus: EventBusConfig{Stream: "BURROW", Retention: 1, Buffer: 1024},
		Storage: StorageConfig{
			Backend:  "memory",
			Prefix:   "burrow:field:",
			Path:     "data/fields",
			Autosave: 30 * time.Second,
			Restore:  true,
		},
		Field: FieldConfig{
			Tick:            50 * time.Millisecond,
			Plots:           6,
			BarnStock:       0,
			DefaultDuration: 2 * time.Second,
			Durations: map[string]time.Duration{
				"plant":    2 * time.Second,
				"water":    3 * time.Second,
				"harvest":  time.Second,
				"dig":      4 * time.Second,
				"steal":    2 * time.Second,
				"collapse": 3 * time.Second,
				"enter":    500 * time.Millisecond,
				"exit":     time.Second,
				"pick_up":  500 * time.Millisecond,
				"deposit":  time.Second,
			},
			Priorities: field.DefaultPriorities(),
		},
		Logging:   LoggingConfig{Level: "INFO"},
		Telemetry: TelemetryConfig{ServiceName: "burrow"},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BURROW_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "BURROW_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// GateMode режим шлюза полномочий из строки конфигурации
func (s SessionConfig) GateMode() (authority.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s.Mode)) {
	case "", "offline":
		return authority.ModeOffline, nil
	case "host":
		return authority.ModeHost, nil
	case "client":
		return authority.ModeClient, nil
	default:
		return authority.ModeOffline, fmt.Errorf("unknown session mode %q", s.Mode)
	}
}

// RetentionDuration срок хранения стрима JetStream
func (e EventBusConfig) RetentionDuration() time.Duration {
	if e.Retention <= 0 {
		return time.Hour
	}
	return time.Duration(e.Retention) * time.Hour
}

// DurationFunc длительности действий для контроллеров аватаров
func (f FieldConfig) DurationFunc() field.DurationFunc {
	byKind := make(map[action.Kind]time.Duration, len(f.Durations))
	for name, d := range f.Durations {
		if kind, err := action.ParseKind(name); err == nil {
			byKind[kind] = d
		}
	}
	def := f.DefaultDuration
	return func(kind action.Kind) time.Duration {
		if d, ok := byKind[kind]; ok {
			return d
		}
		return def
	}
}

// CueTable таблица откликов из секции cues
func (c *Config) CueTable() (*action.CueTable, error) {
	return action.NewCueTable(c.Cues)
}

// Validate проверяет согласованность значений после загрузки
func (c *Config) Validate() error {
	if _, err := c.Session.GateMode(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "memory", "redis", "badger":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Field.Tick <= 0 {
		return fmt.Errorf("field.tick must be positive, got %s", c.Field.Tick)
	}
	if c.Field.Plots < 0 {
		return fmt.Errorf("field.plots must not be negative, got %d", c.Field.Plots)
	}
	for name := range c.Field.Durations {
		if _, err := action.ParseKind(name); err != nil {
			return fmt.Errorf("field.durations: %w", err)
		}
	}
	for name, p := range c.Field.Priorities {
		if _, _, ok := field.FactoryFor(name); !ok {
			return fmt.Errorf("field.priorities: unknown state %q", name)
		}
		if p.Critical > 0 && p.Threshold <= 0 {
			return fmt.Errorf("field.priorities.%s: critical requires threshold >= 1", name)
		}
	}
	if _, err := c.CueTable(); err != nil {
		return fmt.Errorf("cues: %w", err)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх Defaults.
// Если path == "", пытается прочитать путь из ENV BURROW_CONFIG; без него возвращает Defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("BURROW_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
