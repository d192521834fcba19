package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"verticlipper/internal/composer"
	"verticlipper/internal/compositor"
	"verticlipper/internal/database"
	"verticlipper/internal/filesystem"
	"verticlipper/internal/handlers"
	"verticlipper/internal/logging"
	"verticlipper/internal/media"
	"verticlipper/internal/memory"
	"verticlipper/internal/metrics"
	"verticlipper/internal/middleware"
	"verticlipper/internal/probe"
	"verticlipper/internal/session"
	"verticlipper/internal/startup"
	"verticlipper/internal/transcoder"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout         = 30 * time.Second
	metricsCollectInterval  = time.Minute
	serverReadHeaderTimeout = 10 * time.Second
	serverIdleTimeout       = 60 * time.Second
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Failed to load configuration: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"uploads":  config.UploadDir,
		"outputs":  config.OutputDir,
		"database": config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, falling back to pure Go image decoding: %v", err)
	}
	defer media.ShutdownVips()

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	store, err := session.NewFSStore(config.UploadDir)
	if err != nil {
		startup.LogFatal("Failed to initialize session store: %v", err)
	}

	trans := transcoder.New(config.FFmpegPath, config.TranscodeWorkers)
	startup.LogTranscoderInit(config.FFmpegPath, config.FFprobePath, trans.Slots())
	prober := probe.New(config.FFprobePath, nil)

	comp := composer.New(composer.Config{
		Store:      store,
		Prober:     prober,
		Transcoder: trans,
		Recorder:   db,
		Canvas:     compositor.Canvas{Width: config.CanvasWidth, Height: config.CanvasHeight},
		OutputDir:  config.OutputDir,
	})

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	startup.LogSweeperInit(config.CleanupMaxAge, config.CleanupInterval)
	sweeper := session.NewSweeper([]string{store.Root(), config.OutputDir}, config.CleanupMaxAge, config.CleanupInterval, db)
	sweeper.Start()
	startup.LogSweeperStarted()

	collector := metrics.NewCollector(db, map[string]string{
		"uploads": config.UploadDir,
		"outputs": config.OutputDir,
	}, metricsCollectInterval)
	collector.Start()

	h := handlers.New(handlers.Deps{
		Store:     store,
		Prober:    prober,
		Previewer: trans,
		Composer:  comp,
		History:   db,
		Memory:    memMonitor,
	}, config)

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildHandler(router, config),
		ReadHeaderTimeout: serverReadHeaderTimeout,
		// Uploads stream up to several hundred MB and compose blocks until
		// ffmpeg exits, so neither direction has a deadline.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  serverIdleTimeout,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go handleShutdown(shutdownDeps{
		server:        srv,
		metricsServer: metricsSrv,
		handlers:      h,
		stoppers: []namedStopper{
			{"Sweeper", sweeper},
			{"Metrics collector", collector},
			{"Memory monitor", memMonitor},
		},
		transcoder: trans,
		db:         db,
	}, done)

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/api/health", h.APIHealth).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload", h.Upload).Methods("POST")
	api.HandleFunc("/compose", h.Compose).Methods("POST")
	api.HandleFunc("/compose/{sessionId}", h.GetComposition).Methods("GET")

	// Generated files
	r.PathPrefix("/outputs/").Handler(http.StripPrefix("/outputs/", h.ServeFiles("outputs", config.OutputDir)))
	r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", h.ServeFiles("uploads", config.UploadDir)))

	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.NotFound)

	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	return r
}

// buildHandler wraps the router, outermost first: CORS, access log, gzip.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.Compression(middleware.DefaultCompressionConfig())(router)
	handler = middleware.Logger(loggingConfig)(handler)
	return middleware.CORS(middleware.DefaultCORSConfig())(handler)
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       serverIdleTimeout,
	}
}

type stopper interface {
	Stop()
}

type namedStopper struct {
	name string
	stopper
}

type shutdownDeps struct {
	server        *http.Server
	metricsServer *http.Server
	handlers      *handlers.Handlers
	stoppers      []namedStopper
	transcoder    *transcoder.Transcoder
	db            *database.Database
}

func handleShutdown(deps shutdownDeps, done chan<- struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	shutdown(deps, sig.String())
	close(done)
}

func shutdown(deps shutdownDeps, reason string) {
	startup.LogShutdownInitiated(reason)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	deps.handlers.SetReady(false)

	for _, s := range deps.stoppers {
		startup.LogShutdownStep("Stopping " + s.name)
		s.Stop()
		startup.LogShutdownStepComplete(s.name + " stopped")
	}

	if deps.metricsServer != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := deps.metricsServer.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := deps.server.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	// In-flight compositions have either finished or timed out by now.
	if deps.transcoder != nil {
		startup.LogShutdownStep(fmt.Sprintf("Cleaning up transcoder (%d running)", deps.transcoder.Active()))
		deps.transcoder.Cleanup()
		startup.LogShutdownStepComplete("Transcoder cleanup complete")
	}

	if deps.db != nil {
		startup.LogShutdownStep("Closing database")
		if err := deps.db.Close(); err != nil {
			logging.Warn("Database close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Database closed")
		}
	}

	startup.LogShutdownComplete()
}
