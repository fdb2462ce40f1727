package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/your-org/timeclock/internal/config"
)

// ErrNoFace is returned when no face passes the detection threshold in an
// image. Distinct from extraction failures so callers can tell "retake
// the photo" apart from "the model is broken".
var ErrNoFace = errors.New("no face found in image")

// Extractor turns an image into a fixed-length face descriptor. It owns
// the detection and embedding ONNX sessions; sessions are not safe for
// concurrent use, so calls are serialized by the single kiosk flow.
type Extractor struct {
	detector *faceDetector
	embedder *embedder
}

// NewExtractor loads both models from cfg.ModelsDir. The ONNX runtime
// environment must already be initialized by the caller.
func NewExtractor(cfg config.VisionConfig) (*Extractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading face detection model", "path", detPath)
	det, err := newFaceDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading descriptor model", "path", embPath)
	emb, err := newEmbedder(embPath)
	if err != nil {
		det.close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Extractor{detector: det, embedder: emb}, nil
}

// DescriptorDim returns the length of descriptors this extractor
// produces.
func (e *Extractor) DescriptorDim() int {
	return e.embedder.dim
}

// ExtractDescriptor decodes the image, detects the most confident face
// and returns its L2-normalized descriptor with the detection confidence.
// Returns ErrNoFace when the frame contains no detectable face; the image
// itself is never modified.
func (e *Extractor) ExtractDescriptor(ctx context.Context, imageData []byte) ([]float32, float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	img, err := decodeImage(imageData)
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	faces, err := e.detector.detect(toCHW(img, e.detector.inputW, e.detector.inputH, detectMean, detectStd), bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, 0, fmt.Errorf("detect: %w", err)
	}
	if len(faces) == 0 {
		return nil, 0, ErrNoFace
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.confidence > best.confidence {
			best = f
		}
	}

	crop := cropFace(img, best.box)
	if crop == nil {
		return nil, 0, ErrNoFace
	}

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	desc, err := e.embedder.extract(toCHW(crop, e.embedder.inputW, e.embedder.inputH, embedMean, embedStd))
	if err != nil {
		return nil, 0, fmt.Errorf("embed: %w", err)
	}
	return desc, best.confidence, nil
}

// Close releases the ONNX sessions.
func (e *Extractor) Close() {
	if e.detector != nil {
		e.detector.close()
	}
	if e.embedder != nil {
		e.embedder.close()
	}
}
