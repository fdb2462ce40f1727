package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// faceBox is one detected face: pixel-space bounding box plus score.
type faceBox struct {
	box        [4]float32 // x1, y1, x2, y2
	confidence float32
}

// faceDetector wraps the RetinaFace det_10g ONNX model. Only the score
// and box outputs are bound; landmarks are not needed for descriptor
// extraction.
type faceDetector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

// det_10g emits anchor-based outputs at three strides with two anchors
// per cell and no batch dimension: 80*80*2, 40*40*2, 20*20*2 rows for a
// 640x640 input.
var detStrides = []int{8, 16, 32}

const detAnchors = 2

func newFaceDetector(modelPath string, threshold float32) (*faceDetector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	type spec struct {
		name string
		rows int64
		cols int64
	}
	specs := []spec{
		{"448", 12800, 1}, // scores, stride 8
		{"471", 3200, 1},  // scores, stride 16
		{"494", 800, 1},   // scores, stride 32
		{"451", 12800, 4}, // boxes, stride 8
		{"474", 3200, 4},  // boxes, stride 16
		{"497", 800, 4},   // boxes, stride 32
	}

	names := make([]string, len(specs))
	tensors := make([]*ort.Tensor[float32], len(specs))
	values := make([]ort.Value, len(specs))
	for i, sp := range specs {
		names[i] = sp.name
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(sp.rows, sp.cols))
		if err != nil {
			for j := 0; j < i; j++ {
				tensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", sp.name, err)
		}
		tensors[i] = t
		values[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"}, names,
		[]ort.Value{inputTensor}, values, nil)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range tensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &faceDetector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: tensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// detect runs detection over a preprocessed CHW frame. origW/origH are
// the source image dimensions used to scale boxes back.
func (d *faceDetector) detect(frame []float32, origW, origH int) ([]faceBox, error) {
	copy(d.inputTensor.GetData(), frame)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	faces := d.decode(origW, origH)
	return suppress(faces, 0.4), nil
}

// decode walks the anchor grid at each stride and keeps cells above the
// score threshold. Box outputs are distances from the anchor center,
// normalized by stride.
func (d *faceDetector) decode(origW, origH int) []faceBox {
	var faces []faceBox

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range detStrides {
		scores := d.outputTensors[si].GetData()
		boxes := d.outputTensors[si+3].GetData()

		cells := d.inputW / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < cells; cy++ {
			for cx := 0; cx < cells; cx++ {
				for a := 0; a < detAnchors; a++ {
					if scores[idx] >= d.threshold {
						ax := float32(cx) * st
						ay := float32(cy) * st
						faces = append(faces, faceBox{
							box: [4]float32{
								clampF((ax-boxes[idx*4+0]*st)*scaleW, 0, float32(origW)),
								clampF((ay-boxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
								clampF((ax+boxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
								clampF((ay+boxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
							},
							confidence: scores[idx],
						})
					}
					idx++
				}
			}
		}
	}

	return faces
}

func (d *faceDetector) close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// suppress performs non-maximum suppression by IoU.
func suppress(faces []faceBox, iouThreshold float32) []faceBox {
	if len(faces) == 0 {
		return faces
	}

	sort.Slice(faces, func(i, j int) bool {
		return faces[i].confidence > faces[j].confidence
	})

	keep := make([]bool, len(faces))
	for i := range keep {
		keep[i] = true
	}
	for i := range faces {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(faces); j++ {
			if keep[j] && iou(faces[i].box, faces[j].box) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var out []faceBox
	for i, f := range faces {
		if keep[i] {
			out = append(out, f)
		}
	}
	return out
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	inter := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
