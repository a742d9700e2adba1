// AlarmBridge - alarm panel event distribution
//
// AlarmBridge connects to an AlarmDecoder-compatible alarm panel
// interface, decodes the wire protocol into typed events, and fans
// them out to configured notification channels (email, SMS, push,
// webhooks, chat, UPnP subscribers) and to the MQTT broadcast bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/asterhall/alarmbridge/migrations"

	"github.com/asterhall/alarmbridge/internal/infrastructure/config"
	"github.com/asterhall/alarmbridge/internal/infrastructure/database"
	"github.com/asterhall/alarmbridge/internal/infrastructure/influxdb"
	"github.com/asterhall/alarmbridge/internal/infrastructure/logging"
	"github.com/asterhall/alarmbridge/internal/infrastructure/mqtt"
	"github.com/asterhall/alarmbridge/internal/notify"
	"github.com/asterhall/alarmbridge/internal/panel"
	"github.com/asterhall/alarmbridge/internal/scheduler"
	"github.com/asterhall/alarmbridge/internal/settings"
	"github.com/asterhall/alarmbridge/internal/zones"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// shutdownGrace bounds how long shutdown waits for background loops
// and in-flight deliveries.
const shutdownGrace = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Infrastructure closes through the defer chain; the
// dispatch pipeline is torn down explicitly in dependency order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting AlarmBridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// Open database and migrate
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	settingsStore := settings.NewSQLiteStore(db.DB)
	zoneResolver := zones.NewResolver(zones.NewSQLiteRepository(db.DB))
	if err := zoneResolver.Refresh(ctx); err != nil {
		return fmt.Errorf("loading zone directory: %w", err)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Notification pipeline
	notifyRepo := notify.NewSQLiteRepository(db.DB)
	if err := notify.SeedDefaultTemplates(ctx, notifyRepo); err != nil {
		return fmt.Errorf("seeding message templates: %w", err)
	}

	// The log notifier mirrors events into InfluxDB when it is enabled.
	var mirror notify.EventMirror
	if influxClient != nil {
		mirror = influxClient
	}

	subscribers := notify.NewSubscriberStore()
	registry := notify.NewRegistry(notifyRepo, subscribers, zoneResolver, mirror)
	registry.SetLogger(log)
	if err := registry.Refresh(ctx); err != nil {
		// Broken notifier definitions are skipped, not fatal.
		log.Warn("some notifiers failed to load", "error", err)
	}

	renderer := notify.NewRenderer(zoneResolver)
	if err := renderer.Refresh(ctx, notifyRepo); err != nil {
		return fmt.Errorf("loading message templates: %w", err)
	}

	pool := notify.NewWorkerPool(cfg.Dispatch.Workers, log)
	queue := notify.NewDelayQueue(cfg.DrainInterval(), log)
	engine := notify.NewEngine(registry, renderer, pool, queue,
		notify.WithPublisher(mqttClient),
		notify.WithEngineLogger(log),
	)
	queue.Start(engine)
	log.Info("dispatch engine ready",
		"notifiers", len(registry.List()),
		"workers", cfg.Dispatch.Workers,
	)

	// Panel connection
	manager := panel.NewManager(settingsStore, engine,
		panel.WithBroadcaster(&mqttBroadcaster{client: mqttClient, log: log}),
		panel.WithCertificateProvider(panel.NewStoreCertificates(settingsStore)),
		panel.WithManagerLogger(log),
	)
	if err := manager.Open(ctx); err != nil {
		// The supervisor retries; a panel that is offline at boot is
		// not fatal.
		log.Warn("initial panel connection failed", "error", err)
	}

	supervisor := panel.NewSupervisor(manager, cfg.ReconnectPoll(), log)
	supervisor.Start(ctx)

	// Operator commands over the bus: refresh configuration, force a
	// panel reconnect.
	commands := &commandHandler{
		registry:  registry,
		templates: func(ctx context.Context) error { return renderer.Refresh(ctx, notifyRepo) },
		panel:     manager,
		log:       log,
	}
	if err := subscribeCommands(mqttClient, commands); err != nil {
		log.Warn("command topic subscription failed", "error", err)
	}

	// Maintenance loops
	sched := scheduler.New(log)
	sched.Add(scheduler.NewUpdateChecker(settingsStore, version,
		scheduler.WithUpdateLogger(log)))
	sched.Add(scheduler.NewSettingsExporter(db.DB, settingsStore, log))
	sched.Add(scheduler.NewFrameCapture(settingsStore, log))
	sched.Start(ctx)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Stop producers before consumers: maintenance loops, then the
	// panel side, then the dispatch pipeline. Infrastructure closes
	// via the defer chain afterwards.
	if err := sched.Stop(shutdownGrace); err != nil {
		log.Warn("scheduler did not stop cleanly", "error", err)
	}
	supervisor.Stop()
	manager.Close()
	queue.Stop()
	if err := pool.Drain(shutdownGrace); err != nil {
		log.Warn("deliveries still in flight at shutdown", "error", err)
	}
	pool.Stop()

	log.Info("AlarmBridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the ALARMBRIDGE_CONFIG environment variable if set.
func getConfigPath() string {
	if path := os.Getenv("ALARMBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// mqttBroadcaster adapts the MQTT client to the panel Broadcaster
// interface. Raw frame publishing is best-effort.
type mqttBroadcaster struct {
	client *mqtt.Client
	log    *logging.Logger
	topics mqtt.Topics
}

// BroadcastMessage implements panel.Broadcaster.
func (b *mqttBroadcaster) BroadcastMessage(messageType string, raw string) {
	topic := b.topics.Message(messageType)
	if err := b.client.PublishEvent(topic, []byte(raw)); err != nil {
		b.log.Debug("raw frame publish failed", "topic", topic, "error", err)
	}
}
