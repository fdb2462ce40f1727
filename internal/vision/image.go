package vision

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"
)

// Normalization constants per model: (pixel - mean) / std per channel.
var (
	detectMean = [3]float32{127.5, 127.5, 127.5}
	detectStd  = [3]float32{128.0, 128.0, 128.0}
	embedMean  = [3]float32{127.5, 127.5, 127.5}
	embedStd   = [3]float32{127.5, 127.5, 127.5}
)

func decodeImage(data []byte) (image.Image, error) {
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// toCHW resizes the image to the model input size and lays the pixels out
// as normalized [C][H][W] float32 data.
func toCHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resize(img, targetW, targetH)
	bounds := resized.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			idx := y*w + x
			data[idx] = (float32(r>>8) - mean[0]) / std[0]
			data[h*w+idx] = (float32(g>>8) - mean[1]) / std[1]
			data[2*h*w+idx] = (float32(b>>8) - mean[2]) / std[2]
		}
	}
	return data
}

// resize performs nearest-neighbour scaling, fast and sufficient for
// model input.
func resize(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			dst.Set(x, y, img.At(bounds.Min.X+x*srcW/targetW, bounds.Min.Y+y*srcH/targetH))
		}
	}
	return dst
}

// cropFace cuts the face region out with 10% padding on each side,
// clamped to the image bounds. Returns nil for a degenerate box.
func cropFace(img image.Image, box [4]float32) image.Image {
	bounds := img.Bounds()

	x1, y1 := int(box[0]), int(box[1])
	x2, y2 := int(box[2]), int(box[3])
	w, h := x2-x1, y2-y1
	if w <= 0 || h <= 0 {
		return nil
	}

	x1 -= w / 10
	y1 -= h / 10
	x2 += w / 10
	y2 += h / 10

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}
	if x2-x1 <= 0 || y2-y1 <= 0 {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}
	return crop
}
