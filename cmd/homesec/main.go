// Homesec - doorway occupancy and home security node.
//
// This is the main entry point for the homesec service. One process hosts:
//   - the doorway counter (two distance sensors, capacity alarm, display)
//   - the actuator node (lights, humidifier, door servo)
//   - the HTTP control panel and live WebSocket feed
//
// The nodes talk to each other and to the outside world over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/homesec-core/internal/ambient"
	"github.com/nerrad567/homesec-core/internal/api"
	"github.com/nerrad567/homesec-core/internal/audit"
	"github.com/nerrad567/homesec-core/internal/controller"
	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
	"github.com/nerrad567/homesec-core/internal/infrastructure/database"
	"github.com/nerrad567/homesec-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/homesec-core/internal/infrastructure/logging"
	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homesec-core/internal/metrics"
	"github.com/nerrad567/homesec-core/internal/otp"
	"github.com/nerrad567/homesec-core/internal/simulator"
	"github.com/nerrad567/homesec-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// ambientPeriod is the cycle length of the simulated ambient sensor.
const ambientPeriod = 10 * time.Minute

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the homesec command tree.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "homesec",
		Short: "Run the doorway occupancy counter and home security node.",
		Long: `Runs the doorway counter, the actuator node and the HTTP control panel.

Configuration is read from --config, then $HOMESEC_CONFIG, then
configs/config.yaml. When none of those exist the built-in defaults are used.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newMigrateCmd(&configPath))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "homesec %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// getConfigPath resolves the configuration file path. An empty result means
// no file was found and the defaults apply.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("HOMESEC_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// loadConfig loads the file at the resolved path, or the defaults.
func loadConfig(flag string) (*config.Config, string, error) {
	path := getConfigPath(flag)
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, "", fmt.Errorf("validating default config: %w", err)
		}
		return cfg, "defaults", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled or a background component fails.
func run(ctx context.Context, configPath string) error {
	cfg, source, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting homesec",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", source,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "migrations_applied", applied)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	influxClient := connectInflux(cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collectorSet := metrics.New()
	if regErr := collectorSet.Register(reg); regErr != nil {
		return fmt.Errorf("registering metrics: %w", regErr)
	}

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	outbox := mqtt.NewOutbox(mqttClient, cfg.MQTT, log.Component("outbox"))
	outbox.SetOnDrop(func(string, error) { collectorSet.PublishesDropped.Inc() })
	supervisor := mqtt.NewSupervisor(mqttClient, cfg.MQTT.Reconnect, log.Component("mqtt"))

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	hw := newSimulatedHardware(cfg, log.Component("simulator"))

	loop := controller.New(controller.Deps{
		Occupancy:  cfg.Occupancy,
		Alarm:      cfg.Alarm,
		Actuators:  cfg.Actuators,
		Sensor:     hw.doorway,
		Display:    api.NewHubDisplay(hub),
		Lights:     hw.actuators,
		Humidifier: hw.actuators,
		Door:       hw.actuators,
		Publisher:  outbox,
		Notifier:   hub,
		Audit:      auditRepo,
		Metrics:    collectorSet,
		Logger:     log.Component("controller"),
	})

	supervisor.OnStateChange(func(state mqtt.LinkState) {
		log.Info("mqtt link state changed", "state", state.String())
		collectorSet.MQTTConnected.Set(metrics.BoolValue(state == mqtt.StateConnected))
		if state == mqtt.StateConnected {
			loop.Resync()
		}
	})

	sender := controller.NewSender(outbox, mqttClient, loop)
	codes := otp.NewService(cfg.OTP.TTL, sender, log.Component("otp"))

	var writer ambient.Writer
	if influxClient != nil {
		writer = influxClient
	}
	recorder := ambient.NewRecorder(writer, cfg.Site.ID, log.Component("ambient"))

	if subErr := subscribe(mqttClient, byte(cfg.MQTT.QoS), loop, recorder, codes); subErr != nil {
		return fmt.Errorf("subscribing: %w", subErr)
	}

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.Component("api"),
		State:    loop,
		Commands: sender,
		Link:     supervisor,
		Ambient:  recorder,
		Audit:    auditRepo,
		Codes:    codes,
		DB:       db,
		Gatherer: reg,
		Hub:      hub,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		failErr  error
	)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if runErr := fn(ctx); runErr != nil {
				failOnce.Do(func() { failErr = fmt.Errorf("%s: %w", name, runErr) })
				cancel()
			}
		}()
	}

	spawn("websocket hub", func(ctx context.Context) error { hub.Run(ctx); return nil })
	spawn("mqtt outbox", func(ctx context.Context) error { outbox.Run(ctx); return nil })
	spawn("mqtt supervisor", supervisor.Run)
	spawn("control loop", loop.Run)
	spawn("ambient recorder", func(ctx context.Context) error { recorder.Run(ctx); return nil })
	if cfg.Ambient.Enabled {
		reporter := ambient.NewReporter(hw.ambient, outbox, cfg.Ambient.Interval, log.Component("ambient"))
		spawn("ambient reporter", func(ctx context.Context) error { reporter.Run(ctx); return nil })
	}

	if startErr := server.Start(ctx); startErr != nil {
		cancel()
		wg.Wait()
		return fmt.Errorf("starting API server: %w", startErr)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutting down")

	if closeErr := server.Close(); closeErr != nil {
		log.Error("error closing API server", "error", closeErr)
	}
	wg.Wait()

	if failErr != nil {
		return failErr
	}
	log.Info("homesec stopped")
	return nil
}

// connectInflux returns nil when InfluxDB is disabled or unreachable; the
// ambient recorder then keeps only the latest reading.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(cfg)
	switch {
	case err == nil:
		log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
		return client
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	default:
		log.Warn("InfluxDB unavailable, ambient history disabled", "url", cfg.URL, "error", err)
	}
	return nil
}

// subscribe routes inbound topics to their consumers. Subscriptions are
// remembered by the client and applied on every connect.
func subscribe(client *mqtt.Client, qos byte, loop *controller.Controller, recorder *ambient.Recorder, codes *otp.Service) error {
	for _, topic := range mqtt.CommandTopics() {
		if err := client.Subscribe(topic, qos, loop.HandleMessage); err != nil {
			return fmt.Errorf("%s: %w", topic, err)
		}
	}
	if err := client.Subscribe(mqtt.TopicSensorData, qos, recorder.HandleMessage); err != nil {
		return fmt.Errorf("%s: %w", mqtt.TopicSensorData, err)
	}
	if err := client.Subscribe(mqtt.TopicOTP, qos, codes.HandleMessage); err != nil {
		return fmt.Errorf("%s: %w", mqtt.TopicOTP, err)
	}
	return nil
}

// simulatedHardware is the driver set for hardware.driver "simulated".
type simulatedHardware struct {
	doorway   *simulator.Doorway
	actuators *simulator.Actuators
	ambient   *simulator.Ambient
}

func newSimulatedHardware(cfg *config.Config, log *logging.Logger) simulatedHardware {
	return simulatedHardware{
		doorway:   simulator.NewDoorway(cfg.Hardware.CrossingEvery, simulator.DefaultPattern),
		actuators: simulator.NewActuators(cfg.Actuators.LightCount, cfg.Actuators.DoorClosedAngle, log),
		ambient:   simulator.NewAmbient(ambientPeriod),
	}
}
