package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/timeclock/internal/api"
	"github.com/your-org/timeclock/internal/api/ws"
	"github.com/your-org/timeclock/internal/attendance"
	"github.com/your-org/timeclock/internal/config"
	"github.com/your-org/timeclock/internal/enroll"
	"github.com/your-org/timeclock/internal/match"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
	"github.com/your-org/timeclock/internal/queue"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting timeclock API service", "port", cfg.Server.Port)

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	bus, err := queue.Connect(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	if err := bus.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WebSocket hub fed by the workers' punch results
	hub := ws.NewHub()
	go hub.Run()

	err = bus.ConsumePunches(ctx, "api-punches", func(ctx context.Context, result models.PunchResult) error {
		hub.BroadcastPunch(result)
		return nil
	})
	if err != nil {
		slog.Warn("start punch consumer", "error", err)
	}

	// Vision models load in the background; enrollment and direct punch
	// endpoints block on readiness, health stays responsive meanwhile.
	readiness := vision.NewReadiness()
	extractor := &gatedExtractor{readiness: readiness}

	go func() {
		readiness.SetLoading()
		ort.SetSharedLibraryPath(getONNXLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			readiness.SetFailed(fmt.Errorf("init onnx runtime: %w", err))
			slog.Error("onnx runtime init failed", "error", err)
			return
		}
		ext, err := vision.NewExtractor(cfg.Vision)
		if err != nil {
			readiness.SetFailed(err)
			slog.Error("vision extractor init failed", "error", err)
			return
		}
		extractor.set(ext)
		readiness.SetReady()
		slog.Info("vision models loaded")
	}()

	matcher := match.New(cfg.Attendance.MatchThreshold)
	recorder := attendance.NewRecorder(db, matcher, cfg.Attendance.Cooldown())
	validator := enroll.NewValidator(extractor)

	router := api.NewRouter(api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		DB:        db,
		MinIO:     minioStore,
		Bus:       bus,
		Hub:       hub,
		Recorder:  recorder,
		Validator: validator,
		Extractor: extractor,
		Readiness: readiness,
		ReportLoc: cfg.Attendance.ReportLocation(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	extractor.close()

	slog.Info("API server stopped")
}

// gatedExtractor delays descriptor extraction until the models finished
// loading, so early requests wait instead of failing.
type gatedExtractor struct {
	readiness *vision.Readiness

	mu  sync.RWMutex
	ext *vision.Extractor
}

func (g *gatedExtractor) set(ext *vision.Extractor) {
	g.mu.Lock()
	g.ext = ext
	g.mu.Unlock()
}

func (g *gatedExtractor) ExtractDescriptor(ctx context.Context, image []byte) ([]float32, float32, error) {
	if err := g.readiness.Await(ctx); err != nil {
		return nil, 0, fmt.Errorf("vision models unavailable: %w", err)
	}

	g.mu.RLock()
	ext := g.ext
	g.mu.RUnlock()
	if ext == nil {
		return nil, 0, errors.New("vision models unavailable")
	}
	return ext.ExtractDescriptor(ctx, image)
}

func (g *gatedExtractor) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ext != nil {
		g.ext.Close()
		g.ext = nil
		ort.DestroyEnvironment()
	}
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
