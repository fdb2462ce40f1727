package enroll

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/vision"
)

type stubExtractor struct {
	descriptor []float32
	err        error
}

func (s *stubExtractor) ExtractDescriptor(_ context.Context, _ []byte) ([]float32, float32, error) {
	return s.descriptor, 0.9, s.err
}

func TestValidateSuccess(t *testing.T) {
	desc := make([]float32, models.DescriptorDim)
	desc[0] = 0.5
	v := NewValidator(&stubExtractor{descriptor: desc})

	got, err := v.Validate(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != models.DescriptorDim || got[0] != 0.5 {
		t.Errorf("descriptor not passed through: %v", got[:1])
	}
}

func TestValidateNoFace(t *testing.T) {
	v := NewValidator(&stubExtractor{err: vision.ErrNoFace})
	_, err := v.Validate(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrNoFace) {
		t.Fatalf("err = %v; want ErrNoFace", err)
	}
	if errors.Is(err, ErrExtraction) {
		t.Error("no-face must not be reported as an extraction failure")
	}
}

func TestValidateExtractionFailure(t *testing.T) {
	v := NewValidator(&stubExtractor{err: fmt.Errorf("onnx session: model unavailable")})
	_, err := v.Validate(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v; want ErrExtraction", err)
	}
	if errors.Is(err, ErrNoFace) {
		t.Error("extraction failure must stay distinct from no-face")
	}
}

func TestValidateRejectsWrongDimension(t *testing.T) {
	v := NewValidator(&stubExtractor{descriptor: make([]float32, 16)})
	_, err := v.Validate(context.Background(), []byte("jpeg"))
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v; want ErrExtraction for a short descriptor", err)
	}
}
