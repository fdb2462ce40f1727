package match

import (
	"math"
	"testing"

	"github.com/google/uuid"
)

func descriptorAt(dist float32) []float32 {
	// First component carries the whole distance from the zero vector.
	d := make([]float32, 4)
	d[0] = dist
	return d
}

func TestMatchDecisionBoundary(t *testing.T) {
	id := uuid.New()
	gallery := []GalleryEntry{{EmployeeID: id, Descriptor: descriptorAt(0)}}
	m := New(0.55)

	tests := []struct {
		name     string
		dist     float32
		verified bool
	}{
		{"well below threshold", 0.10, true},
		{"just below threshold", 0.54, true},
		{"exactly at threshold", 0.55, false},
		{"just above threshold", 0.56, false},
		{"far above threshold", 1.20, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := m.Match(descriptorAt(tc.dist), gallery)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Verified != tc.verified {
				t.Errorf("Match at distance %v: verified = %v; want %v", tc.dist, res.Verified, tc.verified)
			}
			if res.Verified && res.EmployeeID != id {
				t.Errorf("matched employee = %s; want %s", res.EmployeeID, id)
			}
		})
	}
}

func TestMatchEmptyGallery(t *testing.T) {
	m := New(0.55)
	res, err := m.Match(descriptorAt(0), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verified {
		t.Error("empty gallery must never verify")
	}
	if res.Message != "no enrolled biometrics" {
		t.Errorf("message = %q; want %q", res.Message, "no enrolled biometrics")
	}
}

func TestMatchExactDescriptor(t *testing.T) {
	id := uuid.New()
	desc := []float32{0.1, -0.2, 0.3, 0.4}
	m := New(0.55)

	res, err := m.Match(desc, []GalleryEntry{{EmployeeID: id, Descriptor: desc}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Verified {
		t.Fatal("identical descriptors must verify")
	}
	if res.Distance != 0 {
		t.Errorf("distance = %v; want 0", res.Distance)
	}
	if res.Confidence != 100 {
		t.Errorf("confidence = %v; want 100", res.Confidence)
	}
}

func TestMatchSelectsMinimumDistance(t *testing.T) {
	near := uuid.New()
	far := uuid.New()
	gallery := []GalleryEntry{
		{EmployeeID: far, Descriptor: descriptorAt(0.40)},
		{EmployeeID: near, Descriptor: descriptorAt(0.05)},
	}

	res, err := New(0.55).Match(descriptorAt(0), gallery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Verified || res.EmployeeID != near {
		t.Errorf("matched %s (verified=%v); want closest entry %s", res.EmployeeID, res.Verified, near)
	}
}

func TestMatchTieKeepsFirstEntry(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	gallery := []GalleryEntry{
		{EmployeeID: first, Descriptor: descriptorAt(0.30)},
		{EmployeeID: second, Descriptor: descriptorAt(0.30)},
	}

	res, err := New(0.55).Match(descriptorAt(0), gallery)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EmployeeID != first {
		t.Errorf("equidistant candidates: matched %s; want first entry %s", res.EmployeeID, first)
	}
}

func TestMatchDimensionMismatch(t *testing.T) {
	gallery := []GalleryEntry{{EmployeeID: uuid.New(), Descriptor: []float32{1, 2, 3}}}
	_, err := New(0.55).Match([]float32{1, 2}, gallery)
	if err == nil {
		t.Fatal("dimension mismatch must fail fast, not report no-match")
	}
}

func TestConfidenceClamped(t *testing.T) {
	tests := []struct {
		dist float64
		want float64
	}{
		{0, 100},
		{0.25, 75},
		{1.0, 0},
		{1.5, 0},
	}
	for _, tc := range tests {
		if got := confidence(tc.dist); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("confidence(%v) = %v; want %v", tc.dist, got, tc.want)
		}
	}
}
