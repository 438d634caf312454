package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/burrow/internal/action"
	"github.com/annel0/burrow/internal/api"
	"github.com/annel0/burrow/internal/authority"
	"github.com/annel0/burrow/internal/config"
	"github.com/annel0/burrow/internal/eventbus"
	"github.com/annel0/burrow/internal/field"
	"github.com/annel0/burrow/internal/logging"
	"github.com/annel0/burrow/internal/observability"
	"github.com/annel0/burrow/internal/relay"
	"github.com/annel0/burrow/internal/schedule"
	"github.com/annel0/burrow/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $BURROW_CONFIG)")
	scripted := flag.Bool("bot", false, "сыграть на хосте сценарную партию ботами на первой грядке")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Logging.File {
		if err := logging.InitDefaultLogger("server"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
	}
	defer logging.CloseDefaultLogger()
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	level := logging.ParseLevel(cfg.Logging.Level)
	logging.SetDefaultLevel(level)
	logging.GetLoggerManager().SetLevelAll(level, logging.TRACE)

	if err := run(cfg, level, *scripted); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(cfg *config.Config, level logging.LogLevel, scripted bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mode, err := cfg.Session.GateMode()
	if err != nil {
		return err
	}
	logging.Info("🐹 Запуск Burrow: режим %s", mode)

	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			NodeID:      cfg.Session.NodeID,
			Mode:        mode.String(),
			Endpoint:    cfg.Telemetry.Endpoint,
			SampleRatio: cfg.Telemetry.SampleRatio,
			Insecure:    true,
		})
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry не инициализирован: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("⚠️ Ошибка остановки OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === ШЛЮЗ ПОЛНОМОЧИЙ ===
	gate := authority.NewGate(authority.NewMetrics(prometheus.DefaultRegisterer))
	switch mode {
	case authority.ModeHost:
		gate.Configure(true)
	case authority.ModeClient:
		gate.Configure(false)
	}
	defer gate.Disable()

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus, mode)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	busMetrics := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	busMetrics.Start(5 * time.Second)
	defer busMetrics.Stop()

	if level <= logging.DEBUG {
		if sub, err := eventbus.StartLoggingListener(ctx, bus); err == nil {
			defer sub.Unsubscribe()
		}
	}

	// === ПОЛЕ ===
	cues, err := cfg.CueTable()
	if err != nil {
		return err
	}
	sched := schedule.NewScheduler()
	env := field.NewEnv(gate, sched)
	env.Priorities = cfg.Field.Priorities
	env.Metrics = field.NewMetrics(prometheus.DefaultRegisterer)
	env.Feedback = action.Feedback{
		Lookup: cues.Lookup,
		Sink:   func(cue action.Cue) { logging.Debug("🔊 Cue: %s", cue) },
	}

	registry := field.NewRegistry(env)
	var firstFarm, firstUnder *field.Entity
	for i := 0; i < cfg.Field.Plots; i++ {
		farm, under := registry.AddPlotPair()
		if i == 0 {
			firstFarm, firstUnder = farm, under
		}
	}
	barn := registry.AddStorage(action.RoleFarmer, cfg.Field.BarnStock)
	den := registry.AddStorage(action.RoleMole, 0)
	logging.Info("🌱 Поле: %d грядок, амбар #%d, нора #%d, откликов %d", cfg.Field.Plots, barn.ID(), den.ID(), cues.Len())

	var bot *field.Bot
	if scripted && mode != authority.ModeClient && firstFarm != nil {
		bot = field.NewBot(registry, cfg.Field.DurationFunc(), scriptedRound(firstFarm.ID(), firstUnder.ID(), den.ID()))
		logging.Info("🤖 Сценарная партия на грядке #%d", firstFarm.ID())
	}

	// === РЕТРАНСЛЯЦИЯ ===
	var codec relay.Codec = relay.NewJSONCodec()
	if z, err := relay.NewZstdCodec(); err == nil {
		codec = z
	} else {
		logging.Warn("⚠️ zstd недоступен, переходы идут без сжатия: %v", err)
	}
	rel := relay.New(bus, gate, registry, relay.Options{
		NodeID:   cfg.Session.NodeID,
		Codec:    codec,
		Registry: prometheus.DefaultRegisterer,
	})
	if err := rel.Start(ctx); err != nil {
		return err
	}
	defer rel.Stop()

	// === ХРАНИЛИЩЕ ===
	repo, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() { _ = repo.Close() }()

	// Клиент получает состояние от хоста, своё не сохраняет
	var saver *storage.Autosaver
	if mode != authority.ModeClient {
		if cfg.Storage.Restore {
			if _, err := storage.Restore(ctx, repo, registry); err != nil {
				return err
			}
		}
		saver = storage.NewAutosaver(repo, registry, cfg.Storage.Autosave)
		saver.Start(ctx)
	}

	// === REST API и метрики ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	rest := api.NewRestServer(api.Config{
		Port:     restPort,
		Registry: registry,
		Relay:    rel,
		Metrics:  prometheus.DefaultRegisterer,
		Gatherer: prometheus.DefaultGatherer,
	})
	go func() {
		if err := rest.Start(); err != nil {
			logging.Error("❌ REST API: %v", err)
			cancel()
		}
	}()

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("📊 Prometheus метрики на %s/metrics", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Сервер метрик: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s/api/fields", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)

	// === ИГРОВОЙ ЦИКЛ ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	tick := cfg.Field.Tick
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			sched.Advance(tick)
			if bot != nil && !bot.Tick() {
				stats := bot.Stats()
				logging.Info("🤖 Партия сыграна: завершено %d, отменено %d, пропущено %d",
					stats.Completed, stats.Cancelled, stats.Skipped)
				bot = nil
			}
			rel.Pump()
		case sig := <-sigCh:
			logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	if saver != nil {
		if err := saver.Stop(shutdownCtx); err != nil {
			logging.Error("❌ Финальное сохранение: %v", err)
		}
	}
	return nil
}

// scriptedRound партия ботов: фермер выращивает морковь, крот роет ход, ворует и прячет её
func scriptedRound(farm, under, den uint64) []field.Step {
	farmer := &field.Avatar{AvatarID: 1, AsRole: action.RoleFarmer, Bot: true, Bag: field.NewBag(4, map[field.Item]int{
		field.ItemSeed:        1,
		field.ItemWateringCan: 1,
	})}
	mole := &field.Avatar{AvatarID: 2, AsRole: action.RoleMole, Bot: true, Bag: field.NewBag(2, nil)}
	return []field.Step{
		{Caller: farmer, Target: farm},
		{Caller: farmer, Target: farm},
		{Caller: mole, Target: under},
		{Caller: mole, Target: under},
		{Caller: mole, Target: den},
		{Caller: mole, Target: under},
	}
}

// openBus выбирает шину: JetStream, если задан URL, иначе in-memory
func openBus(cfg config.EventBusConfig, mode authority.Mode) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		if mode == authority.ModeClient {
			logging.Warn("⚠️ Клиент на in-memory шине не получит переходы хоста; задайте event_bus.url")
		}
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}

	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return bus, nil
}
