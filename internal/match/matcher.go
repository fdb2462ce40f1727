package match

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// DefaultThreshold is the maximum Euclidean distance between two
// L2-normalized descriptors still considered the same person. Calibrated
// empirically; lower is stricter.
const DefaultThreshold = 0.55

// GalleryEntry pairs an enrolled employee with their stored descriptor.
type GalleryEntry struct {
	EmployeeID uuid.UUID
	Descriptor []float32
}

// Result is the outcome of matching a live descriptor against the gallery.
// It is ephemeral and never persisted.
type Result struct {
	Verified   bool
	EmployeeID uuid.UUID
	Distance   float64
	Confidence float64
	Message    string
}

// Matcher compares live descriptors against the enrolled gallery.
type Matcher struct {
	threshold float64
}

func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

// Match computes the Euclidean distance between live and every gallery
// descriptor and accepts the closest entry if its distance is strictly
// below the threshold. Equidistant candidates keep the first one seen, so
// the result is deterministic for a stable gallery order. Pure function:
// no side effects on its inputs.
//
// A dimension mismatch between live and a gallery descriptor is a
// programming error in the caller (the gallery must be pre-filtered to
// the extractor's dimension) and fails fast instead of reporting "no
// match".
func (m *Matcher) Match(live []float32, gallery []GalleryEntry) (Result, error) {
	if len(gallery) == 0 {
		return Result{Verified: false, Message: "no enrolled biometrics"}, nil
	}

	best := -1
	bestDist := math.Inf(1)
	for i, entry := range gallery {
		if len(entry.Descriptor) != len(live) {
			return Result{}, fmt.Errorf("descriptor dimension mismatch: live %d, gallery entry %s has %d",
				len(live), entry.EmployeeID, len(entry.Descriptor))
		}
		d := euclidean(live, entry.Descriptor)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	if bestDist >= m.threshold {
		return Result{Verified: false, Distance: bestDist, Message: "unknown"}, nil
	}

	return Result{
		Verified:   true,
		EmployeeID: gallery[best].EmployeeID,
		Distance:   bestDist,
		Confidence: confidence(bestDist),
		Message:    "identified",
	}, nil
}

// Threshold returns the acceptance distance in use.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// confidence maps a distance to a 0-100 score: 0 distance is 100.
func confidence(dist float64) float64 {
	c := 100 - dist*100
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
