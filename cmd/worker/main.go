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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/timeclock/internal/attendance"
	"github.com/your-org/timeclock/internal/config"
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

	slog.Info("starting timeclock worker",
		"workers", cfg.Worker.Count,
		"cpu_cores", runtime.NumCPU(),
	)

	readiness := vision.NewReadiness()
	readiness.SetLoading()

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		readiness.SetFailed(err)
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	extractor, err := vision.NewExtractor(cfg.Vision)
	if err != nil {
		readiness.SetFailed(err)
		slog.Error("init vision extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()
	readiness.SetReady()

	slog.Info("vision models loaded", "descriptor_dim", extractor.DescriptorDim())

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
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

	matcher := match.New(cfg.Attendance.MatchThreshold)
	recorder := attendance.NewRecorder(db, matcher, cfg.Attendance.Cooldown())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = bus.ConsumeFrames(ctx, "punch-workers", cfg.Worker.Count, func(ctx context.Context, task models.FrameTask) error {
		return processFrame(ctx, task, extractor, recorder, minioStore, bus.PublishPunch)
	})
	if err != nil {
		slog.Error("start frame consumer", "error", err)
		os.Exit(1)
	}

	// Metrics and health endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			state, _ := readiness.State()
			if state != vision.StateReady {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			_, _ = w.Write([]byte(fmt.Sprintf(`{"vision":%q}`, state)))
		})
		addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Queue depth gauge
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := bus.PendingFrames(ctx); err != nil && ctx.Err() == nil {
					slog.Warn("read queue depth", "error", err)
				}
			}
		}
	}()

	// Retention sweep: raw kiosk frames are transient, only snapshots
	// referenced by recorded events are kept.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepFrames(ctx, minioStore, cfg.Worker.FrameRetention())
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// frameObjectStore is the slice of the object store processFrame needs.
type frameObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// descriptorExtractor produces a face descriptor from raw frame bytes.
type descriptorExtractor interface {
	ExtractDescriptor(ctx context.Context, image []byte) ([]float32, float32, error)
}

// processFrame runs one kiosk frame through extraction, matching and the
// attendance rules, then publishes the outcome for the kiosk screen.
// Snapshots outlive the retention sweep only when they back a recorded
// event: a rejected or failed punch removes the copy again.
func processFrame(ctx context.Context, task models.FrameTask, extractor descriptorExtractor, recorder *attendance.Recorder, store frameObjectStore, publish func(context.Context, models.PunchResult) error) error {
	frame, err := store.GetObject(ctx, task.FrameRef)
	if err != nil {
		return fmt.Errorf("fetch frame %s: %w", task.FrameRef, err)
	}

	timer := prometheus.NewTimer(observability.ExtractionDuration.WithLabelValues("pipeline"))
	descriptor, _, err := extractor.ExtractDescriptor(ctx, frame)
	timer.ObserveDuration()
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) {
			// Nobody in front of the camera; the kiosk keeps scanning.
			slog.Debug("no face in frame", "frame", task.FrameID, "kiosk", task.KioskID)
			return nil
		}
		observability.ExtractionFailures.WithLabelValues("pipeline").Inc()
		return fmt.Errorf("extract descriptor: %w", err)
	}

	// Written before recording so the appended event never references a
	// missing object; removed below unless the punch was accepted.
	snapshotKey := "snapshots/" + task.FrameID.String() + ".jpg"
	if err := store.PutObject(ctx, snapshotKey, frame, "image/jpeg"); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}

	result, err := recorder.RecordDescriptor(ctx, descriptor, snapshotKey)
	if err != nil {
		discardSnapshot(ctx, store, snapshotKey)
		return fmt.Errorf("record punch: %w", err)
	}
	if !result.Accepted {
		discardSnapshot(ctx, store, snapshotKey)
	}
	result.KioskID = task.KioskID

	if err := publish(ctx, result); err != nil {
		return fmt.Errorf("publish punch result: %w", err)
	}

	slog.Info("frame processed",
		"kiosk", task.KioskID,
		"accepted", result.Accepted,
		"employee", result.EmployeeName,
		"kind", result.Kind,
	)
	return nil
}

func discardSnapshot(ctx context.Context, store frameObjectStore, key string) {
	if err := store.DeleteObject(ctx, key); err != nil && ctx.Err() == nil {
		slog.Warn("discard unused snapshot", "key", key, "error", err)
	}
}

func sweepFrames(ctx context.Context, minioStore *storage.MinIOStore, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	keys, err := minioStore.ListObjectsOlderThan(ctx, "frames/", cutoff)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("list stale frames", "error", err)
		}
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := minioStore.DeleteObjects(ctx, keys); err != nil {
		slog.Warn("delete stale frames", "error", err)
		return
	}
	slog.Info("frame retention sweep", "deleted", len(keys))
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
