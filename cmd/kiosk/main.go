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
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/timeclock/internal/config"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
	"github.com/your-org/timeclock/internal/queue"
	"github.com/your-org/timeclock/internal/scan"
	"github.com/your-org/timeclock/internal/storage"
)

// resumeFallback re-enables scanning when no resume command arrives,
// e.g. the API was unreachable while the confirmation was on screen.
const resumeFallback = 7 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting timeclock kiosk",
		"kiosk", cfg.Kiosk.ID,
		"device", cfg.Kiosk.CameraDevice,
		"interval", cfg.Kiosk.PollInterval().String(),
	)

	cam, err := scan.OpenCamera(cfg.Kiosk.CameraDevice, cfg.Kiosk.FrameWidth)
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrNoDevice):
			slog.Error("no camera attached, connect one and restart", "device", cfg.Kiosk.CameraDevice)
		case errors.Is(err, scan.ErrPermission):
			slog.Error("camera access denied, grant the kiosk user access to the device", "device", cfg.Kiosk.CameraDevice)
		default:
			slog.Error("open camera", "error", err)
		}
		os.Exit(1)
	}
	defer cam.Close()

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

	kioskID := cfg.Kiosk.ID

	loop := scan.NewLoop(cfg.Kiosk.PollInterval(), func(ctx context.Context) (bool, error) {
		frame, err := cam.Grab(ctx)
		if err != nil {
			return false, err
		}

		frameID := uuid.New()
		key := fmt.Sprintf("frames/%s/%s.jpg", kioskID, frameID)
		if err := minioStore.PutObject(ctx, key, frame, "image/jpeg"); err != nil {
			return false, fmt.Errorf("upload frame: %w", err)
		}

		task := models.FrameTask{
			KioskID:   kioskID,
			FrameID:   frameID,
			Timestamp: time.Now(),
			FrameRef:  key,
		}
		if err := bus.PublishFrame(ctx, task); err != nil {
			return false, err
		}

		// The match verdict arrives asynchronously on the punch feed.
		return false, nil
	})

	// Pause after an accepted punch so the confirmation stays on screen
	// and the same person isn't captured again immediately.
	err = bus.ConsumePunches(ctx, "kiosk-"+kioskID, func(ctx context.Context, result models.PunchResult) error {
		if result.KioskID != kioskID || !result.Accepted {
			return nil
		}
		loop.Pause()
		slog.Info("punch confirmed, scanning paused",
			"employee", result.EmployeeName,
			"kind", result.Kind,
		)
		time.AfterFunc(resumeFallback, loop.Resume)
		return nil
	})
	if err != nil {
		slog.Error("start punch consumer", "error", err)
		os.Exit(1)
	}

	sub, err := bus.SubscribeKioskControl(kioskID, func(command string) {
		if command == "resume" {
			loop.Resume()
			slog.Debug("resume command received")
		}
	})
	if err != nil {
		slog.Warn("subscribe kiosk control", "error", err)
	} else {
		defer func() { _ = sub.Unsubscribe() }()
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Kiosk.MetricsPort)
		slog.Info("kiosk metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down kiosk...")
		cancel()
		<-loopErr
	case err := <-loopErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("scan loop stopped", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("kiosk stopped")
}
