package scan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// Camera acquisition failures are typed so the kiosk can tell an operator
// what to fix: grant access versus plug in a device.
var (
	ErrNoDevice   = errors.New("camera device not found")
	ErrPermission = errors.New("camera access denied")
)

// Camera grabs single JPEG frames from a video device via ffmpeg. The
// device is held from Open to Close; every kiosk exit path must Close so
// the camera is released.
type Camera struct {
	device string
	width  int
	handle *os.File
}

// OpenCamera probes the device node and keeps it open for the scanning
// session. A missing node maps to ErrNoDevice, an access failure to
// ErrPermission.
func OpenCamera(device string, width int) (*Camera, error) {
	f, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrNoDevice, device)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", ErrPermission, device)
		default:
			return nil, fmt.Errorf("open camera %s: %w", device, err)
		}
	}

	return &Camera{device: device, width: width, handle: f}, nil
}

// Grab captures one frame as JPEG bytes. The ffmpeg process lives only
// for the duration of the call and is killed on ctx cancellation.
func (c *Camera) Grab(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", inputFormat(),
		"-i", c.device,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", c.width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var out bytes.Buffer
	cmd.Stdout = &out

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("grab frame from %s: %w", c.device, err)
	}

	frame := out.Bytes()
	if len(frame) == 0 {
		return nil, fmt.Errorf("grab frame from %s: empty output", c.device)
	}
	return frame, nil
}

// Device returns the device node in use.
func (c *Camera) Device() string {
	return c.device
}

// Close releases the device node.
func (c *Camera) Close() error {
	if c.handle == nil {
		return nil
	}
	err := c.handle.Close()
	c.handle = nil
	return err
}

func inputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}
