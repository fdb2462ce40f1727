package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
)

const (
	framesStream   = "FRAMES"
	framesSubjects = "frames"
	punchStream    = "PUNCHES"
	punchSubjects  = "punches"

	// Raw NATS subject prefix for kiosk control commands (resume after
	// a confirmed punch). Not persisted: a kiosk that missed the command
	// resumes on its own timeout.
	kioskControlPrefix = "kiosk.control"
)

// FrameHandler processes one captured frame task. A non-nil error naks
// the message for redelivery.
type FrameHandler func(ctx context.Context, task models.FrameTask) error

// PunchHandler receives processed punch results for live delivery.
type PunchHandler func(ctx context.Context, result models.PunchResult) error

// Bus is the shared NATS JetStream transport between the kiosk, the
// worker and the API: frames flow kiosk -> worker, punch results flow
// worker -> API.
type Bus struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func Connect(natsURL string) (*Bus, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Bus{nc: nc, js: js}, nil
}

// EnsureStreams creates the JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (b *Bus) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        framesStream,
			Subjects:    []string{framesSubjects + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      2 * time.Minute,
			MaxMsgs:     10000,
			MaxBytes:    256 * 1024 * 1024,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  30 * time.Second,
			Description: "Kiosk frames awaiting identification",
		},
		{
			Name:        punchStream,
			Subjects:    []string{punchSubjects + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Description: "Punch results for live subscribers",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := b.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishFrame enqueues a captured frame for worker identification.
func (b *Bus) PublishFrame(ctx context.Context, task models.FrameTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal frame task: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", framesSubjects, task.KioskID)
	if _, err := b.js.Publish(ctx, subject, payload, jetstream.WithMsgID(task.FrameID.String())); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	observability.FramesCaptured.WithLabelValues(task.KioskID).Inc()
	return nil
}

// PublishPunch publishes a processed punch result for the punched
// kiosk's live display.
func (b *Bus) PublishPunch(ctx context.Context, result models.PunchResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal punch result: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", punchSubjects, result.KioskID)
	if _, err := b.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish punch: %w", err)
	}
	return nil
}

// ConsumeFrames runs a durable work-queue consumer over the FRAMES
// stream. workerCount goroutines process tasks concurrently; a handler
// error naks the message for redelivery (3 attempts).
func (b *Bus) ConsumeFrames(ctx context.Context, consumerName string, workerCount int, handler FrameHandler) error {
	stream, err := b.js.Stream(ctx, framesStream)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", framesStream, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
		FilterSubject: framesSubjects + ".>",
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch frames error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				var task models.FrameTask
				if err := json.Unmarshal(msg.Data(), &task); err != nil {
					// Malformed payloads never parse, drop them.
					slog.Error("unmarshal frame task", "worker", workerID, "error", err, "subject", msg.Subject())
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, task); err != nil {
					slog.Error("process frame error", "worker", workerID, "error", err, "frame", task.FrameID)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}(i)
	}

	slog.Info("frame consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

// ConsumePunches subscribes the API to new punch results across all
// kiosks so it can fan them out over WebSocket.
func (b *Bus) ConsumePunches(ctx context.Context, consumerName string, handler PunchHandler) error {
	stream, err := b.js.Stream(ctx, punchStream)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", punchStream, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: punchSubjects + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				var result models.PunchResult
				if err := json.Unmarshal(msg.Data(), &result); err != nil {
					slog.Error("unmarshal punch result", "error", err)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, result); err != nil {
					slog.Error("deliver punch result", "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("punch consumer started", "consumer", consumerName)
	return nil
}

// PendingFrames reports the FRAMES stream backlog and refreshes the
// queue depth gauge.
func (b *Bus) PendingFrames(ctx context.Context) (uint64, error) {
	stream, err := b.js.Stream(ctx, framesStream)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	observability.QueueDepth.Set(float64(info.State.Msgs))
	return info.State.Msgs, nil
}

// NotifyKioskResume tells a kiosk to resume scanning after its matched
// punch was confirmed on screen. Plain NATS publish, fire and forget.
func (b *Bus) NotifyKioskResume(kioskID string) error {
	return b.nc.Publish(fmt.Sprintf("%s.%s", kioskControlPrefix, kioskID), []byte("resume"))
}

// SubscribeKioskControl delivers control commands addressed to one kiosk.
func (b *Bus) SubscribeKioskControl(kioskID string, fn func(command string)) (*nats.Subscription, error) {
	subject := fmt.Sprintf("%s.%s", kioskControlPrefix, kioskID)
	return b.nc.Subscribe(subject, func(msg *nats.Msg) {
		fn(string(msg.Data))
	})
}

func (b *Bus) Ping() error {
	if !b.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (b *Bus) Close() {
	b.nc.Close()
}
