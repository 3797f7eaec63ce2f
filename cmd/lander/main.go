package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kenanunal/lander/internal/api"
	"github.com/kenanunal/lander/internal/commander"
	"github.com/kenanunal/lander/internal/config"
	"github.com/kenanunal/lander/internal/guidance"
	"github.com/kenanunal/lander/internal/simulation"
	"github.com/kenanunal/lander/internal/storage/sqlite"
	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/internal/vehicle"
	"github.com/kenanunal/lander/internal/websocket"
	"github.com/kenanunal/lander/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting lander",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Generate today's database filename
	today := time.Now().Format("2006-01-02")
	dbFilename := fmt.Sprintf("lander-%s.db", today)
	dbPath := filepath.Join(cfg.Storage.SQLiteBasePath, dbFilename)

	// Ensure the directory exists
	if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.SQLiteBasePath))
		os.Exit(1)
	}

	log.Info("Using daily database", logger.String("path", dbPath))

	flightLog, err := sqlite.NewFlightStorage(dbPath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer flightLog.Close()

	telemetry := sqlite.NewTelemetryStorage(flightLog.GetDB(), log)

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run()
	publisher := websocket.NewPublisher(wsServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The vehicle and track bridges, or the loopback simulator in place
	// of both.
	var (
		veh         vehicle.Interface
		setModeFn   func(vehicle.ModeHandler)
		setTrackFn  func(track.Handler)
		bridgeStart func(context.Context)
		bridgeWait  func()
	)
	if cfg.Simulation.Enabled {
		log.Info("Simulation enabled, using loopback simulator")
		sim := simulation.NewService(cfg.Simulation, log)
		veh = sim
		setModeFn = sim.SetModeHandler
		setTrackFn = sim.SetTrackHandler
		bridgeStart = sim.Start
		bridgeWait = sim.Wait
	} else {
		vehClient := vehicle.NewClient(
			cfg.Vehicle.BridgeURL,
			time.Duration(cfg.Vehicle.ReconnectIntervalSecs)*time.Second,
			time.Duration(cfg.Vehicle.CommandTimeoutSecs)*time.Second,
			log,
		)
		trackSource := track.NewSource(
			cfg.Tracking.SourceURL,
			time.Duration(cfg.Tracking.ReconnectIntervalSecs)*time.Second,
			log,
		)
		veh = vehClient
		setModeFn = vehClient.SetModeHandler
		setTrackFn = trackSource.SetHandler
		bridgeStart = func(ctx context.Context) {
			vehClient.Start(ctx)
			trackSource.Start(ctx)
		}
		bridgeWait = func() {
			vehClient.Wait()
			trackSource.Wait()
		}
	}

	// Tracks the current flight state outside the commander's lock so
	// setpoint observers can tag records without re-entering it.
	var currentState atomic.Value
	currentState.Store(string(commander.StatePending))

	instrumented := vehicle.NewInstrumented(veh,
		func(sp vehicle.Setpoint) {
			state := currentState.Load().(string)
			if err := telemetry.RecordSetpoint(state, sp, time.Now()); err != nil {
				log.Error("Failed to record setpoint", logger.Error(err))
			}
			publisher.PublishSetpoint(state, sp)
		},
	)

	loopPeriod := time.Duration(float64(time.Second) / cfg.Control.LoopRateHz)
	cmdr, err := commander.New(instrumented, commander.Config{
		LoopPeriod:  loopPeriod,
		GuidedModes: cfg.Vehicle.GuidedModes,
		HoldMode:    cfg.Vehicle.HoldMode,
	}, func(c *commander.Commander) commander.Registry {
		return guidance.NewRegistry(c, instrumented, cfg.Guidance, cfg.Station, log)
	}, log)
	if err != nil {
		log.Error("Failed to create commander", logger.Error(err))
		os.Exit(1)
	}

	cmdr.AddTransitionSink(flightLog)
	cmdr.AddTransitionSink(publisher)
	cmdr.AddTransitionSink(commander.TransitionSinkFunc(func(old, new commander.FlightState, at time.Time) {
		currentState.Store(string(new))
	}))

	// Wire bridge events into the commander.
	setModeFn(func(mode string) {
		publisher.PublishMode(mode)
		cmdr.OnFcuMode(mode)
	})
	setTrackFn(func(obs track.Observation) {
		if err := telemetry.RecordObservation(obs); err != nil {
			log.Error("Failed to record track observation", logger.Error(err))
		}
		publisher.PublishTrack(obs)
		cmdr.OnTrackUpdate(obs)
	})

	// Start bridges and the control loop
	bridgeStart(ctx)

	driver := commander.NewDriver(cmdr, loopPeriod, log)
	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		driver.Run(ctx)
	}()

	// Create API router
	router := api.NewRouter(cmdr, flightLog, telemetry, cfg, log, wsServer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down...")

	// Hand the vehicle back to the pilot before anything else stops.
	relinquishCtx, relinquishCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := cmdr.RelinquishControl(relinquishCtx); err != nil {
		log.Error("Failed to relinquish control cleanly", logger.Error(err))
	}
	relinquishCancel()

	// Stop the control loop and bridges
	cancel()
	<-driverDone
	bridgeWait()
	log.Info("Control loop and bridges stopped.")

	// Shutdown the HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
