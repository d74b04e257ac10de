package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	btclogv2 "github.com/btcsuite/btclog/v2"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/baselib/actor"
	"github.com/iltoga/BusinessSuite-sub003/internal/build"
	"github.com/iltoga/BusinessSuite-sub003/internal/db"
	"github.com/iltoga/BusinessSuite-sub003/internal/eventstream"
	"github.com/iltoga/BusinessSuite-sub003/internal/logfwd"
	"github.com/iltoga/BusinessSuite-sub003/internal/push"
	"github.com/iltoga/BusinessSuite-sub003/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "notifierd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	defaultConfig, _ := DefaultConfigPath()

	var (
		configPath = flag.String("config", defaultConfig,
			"Path to TOML config file")
		backendURL = flag.String("backend", "",
			"Backend base URL (overrides config)")
		listenAddr = flag.String("listen", "",
			"Surface listen address (overrides config)")
		dbPath = flag.String("db", "",
			"SQLite database path (overrides config)")
		logLevel = flag.String("loglevel", "",
			"Log level (overrides config)")
		showVersion = flag.Bool("version", false,
			"Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("notifierd version %s\n", build.Version())
		return nil
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *backendURL != "" {
		cfg.Backend.BaseURL = *backendURL
	}
	if *listenAddr != "" {
		cfg.Daemon.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.Daemon.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if cfg.Backend.BaseURL == "" {
		return errors.New("no backend base URL configured")
	}

	policy, err := cfg.decodePolicy()
	if err != nil {
		return err
	}
	forwardWindow, err := duration(
		cfg.Logging.ForwardWindow, logfwd.DefaultWindow,
	)
	if err != nil {
		return err
	}

	// The token store feeds both the API client and the stream; surfaces
	// fill it over the AUTH_TOKEN handshake.
	tokens := api.NewTokenStore()

	apiClient := api.New(api.Config{
		BaseURL:     cfg.Backend.BaseURL,
		Tokens:      tokens,
		DeviceLabel: cfg.Backend.DeviceLabel,
	})

	// Log sinks: console, optional rotating file, backend forwarder.
	var extras []btclogv2.Handler

	if cfg.Logging.Dir != "" {
		rotator, err := build.NewRotatingLogWriter(
			build.DefaultFileLoggerConfig(cfg.Logging.Dir),
		)
		if err != nil {
			return fmt.Errorf("unable to set up log file: %w", err)
		}
		defer rotator.Close()

		extras = append(extras, btclogv2.NewDefaultHandler(rotator))
	}

	forwarder := logfwd.NewHandler(logfwd.Config{
		Backend: apiClient,
		Window:  forwardWindow,
	})
	defer forwarder.Close()
	extras = append(extras, forwarder)

	logMgr := build.NewLogManager(os.Stderr, extras...)
	log = logMgr.GenSubLogger(build.TagMAIN)
	actor.UseLogger(logMgr.GenSubLogger(build.TagACTR))
	eventstream.UseLogger(logMgr.GenSubLogger(build.TagSTRM))
	push.UseLogger(logMgr.GenSubLogger(build.TagNTFR))
	db.UseLogger(logMgr.GenSubLogger(build.TagODB))
	web.UseLogger(logMgr.GenSubLogger(build.TagWSRV))

	if err := logMgr.SetLogLevels(cfg.Logging.Level); err != nil {
		return err
	}

	log.Infof("notifierd %s starting", build.Version())

	// Open the delivery database, migrating as needed.
	storePath, err := cfg.dbPath()
	if err != nil {
		return err
	}
	store, err := db.Open(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Actor system hosting the push router.
	system := actor.NewActorSystem()
	defer system.Shutdown(context.Background())

	// Surface server; its hub doubles as the router's view of visible
	// surfaces. Control messages loop back into the router, so wire the
	// control after the router exists.
	control := &routerControl{}
	server := web.NewServer(&web.ServerConfig{
		Addr:    cfg.Daemon.ListenAddr,
		Control: control,
		Status:  store,
	})

	acker := &outboxAcker{client: apiClient, store: store}
	flusher := db.NewFlusher(db.FlusherConfig{
		Store: store,
		Send:  acker.sendQueuedAck,
	})
	acker.flusher = flusher

	router := push.RouterKey.Spawn(system, "push-router", push.NewRouter(
		push.RouterConfig{
			Surfaces: server.Hub(),
			Notifier: push.NewCommandNotifier(
				cfg.Notifications.NotifyCommand, "notifierd",
			),
			Acker:   acker,
			Tokens:  tokens,
			Journal: &deliveryJournal{store: store},
		},
	))
	control.router = router

	flusher.Start()
	defer flusher.Stop()
	// Drain anything a previous run left behind.
	flusher.Kick()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	// Surface server.
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Surface server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	// Event stream consumer; reconnects until shutdown.
	consumer := &streamConsumer{
		client: eventstream.New(eventstream.Config{
			URL:    cfg.Backend.BaseURL + cfg.Backend.StreamPath,
			Tokens: tokens,
			Policy: policy,
		}),
		router: router,
	}
	go consumer.run(ctx)

	log.Infof("Listening for surfaces on %s, streaming from %s",
		cfg.Daemon.ListenAddr, cfg.Backend.BaseURL)

	<-ctx.Done()
	log.Info("Shutting down")

	return nil
}
