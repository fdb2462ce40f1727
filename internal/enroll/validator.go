package enroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/vision"
)

// ErrNoFace is returned when the extractor found no face in the enrollment
// photo. The photo must be retaken; retrying with the same bytes will fail
// again.
var ErrNoFace = errors.New("no face detected, retake photo")

// ErrExtraction is returned when the extractor itself failed (model not
// ready, decode error, runtime failure). Unlike ErrNoFace this is
// retryable without a new photo.
var ErrExtraction = errors.New("descriptor extraction failed")

// DescriptorExtractor is the one capability the validator needs from the
// vision backend: image bytes in, descriptor out. A test double can return
// fixed descriptors.
type DescriptorExtractor interface {
	ExtractDescriptor(ctx context.Context, image []byte) (descriptor []float32, detectConfidence float32, err error)
}

// Validator gates enrollment: an employee may only be stored once a
// usable descriptor exists for their reference photo.
type Validator struct {
	extractor DescriptorExtractor
}

func NewValidator(extractor DescriptorExtractor) *Validator {
	return &Validator{extractor: extractor}
}

// Validate runs the extractor once over the proposed reference photo and
// returns the descriptor to persist alongside the employee record. The
// two failure modes are distinct so the caller can prompt a retake
// (ErrNoFace) versus a retry (ErrExtraction).
func (v *Validator) Validate(ctx context.Context, image []byte) ([]float32, error) {
	desc, _, err := v.extractor.ExtractDescriptor(ctx, image)
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) {
			return nil, ErrNoFace
		}
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if len(desc) != models.DescriptorDim {
		return nil, fmt.Errorf("%w: descriptor has %d components, want %d", ErrExtraction, len(desc), models.DescriptorDim)
	}
	return desc, nil
}
