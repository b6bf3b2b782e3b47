// Package camera owns the capture device handle and the enrollment capture
// lifecycle. The handle is held only between a successful Open and the
// matching Close, on every exit path.
package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"

	"presence/internal/fault"
)

// Device is an exclusive video source producing still frames.
type Device interface {
	Open(ctx context.Context) error
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// MJPEGDevice reads frames from an MJPEG-over-HTTP stream, the format
// commodity IP cameras serve (multipart/x-mixed-replace of JPEG parts).
type MJPEGDevice struct {
	URL  string
	HTTP *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	frame  image.Image
	opened bool
}

// NewMJPEGDevice creates a device for the given stream URL. The client must
// not carry an overall timeout, the stream is long-lived.
func NewMJPEGDevice(url string) *MJPEGDevice {
	return &MJPEGDevice{URL: url, HTTP: &http.Client{}}
}

// Open connects to the stream and starts consuming frames in the background.
func (d *MJPEGDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return nil
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, d.URL, nil)
	if err != nil {
		cancel()
		return err
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("camera stream request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("camera stream refused: %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected camera stream content type %q", resp.Header.Get("Content-Type"))
	}

	d.cancel = cancel
	d.opened = true
	d.frame = nil

	go d.consume(resp, params["boundary"])
	return nil
}

// consume decodes JPEG parts until the stream ends or the device closes,
// keeping only the most recent frame.
func (d *MJPEGDevice) consume(resp *http.Response, boundary string) {
	defer resp.Body.Close()
	reader := multipart.NewReader(resp.Body, boundary)
	for {
		part, err := reader.NextPart()
		if err != nil {
			return
		}
		img, err := jpeg.Decode(part)
		part.Close()
		if err != nil {
			continue
		}
		d.mu.Lock()
		if d.opened {
			d.frame = img
		}
		d.mu.Unlock()
	}
}

// Frame returns the most recent decoded frame. It fails until the stream has
// produced at least one frame.
func (d *MJPEGDevice) Frame(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil, &fault.DeviceError{Cause: fmt.Errorf("device not open")}
	}
	if d.frame == nil {
		return nil, &fault.NotReadyError{}
	}
	return d.frame, nil
}

// Close stops the stream. Safe to call repeatedly.
func (d *MJPEGDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil
	}
	d.opened = false
	d.frame = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	return nil
}

// SyntheticDevice produces generated frames and needs no hardware. Used when
// CAMERA_SKIP is set so the console can run without a camera attached.
type SyntheticDevice struct {
	mu     sync.Mutex
	opened bool
}

// Open marks the device acquired.
func (d *SyntheticDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = true
	return nil
}

// Frame returns a 640x480 gradient test pattern.
func (d *SyntheticDevice) Frame(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil, &fault.DeviceError{Cause: fmt.Errorf("device not open")}
	}
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img, nil
}

// Close releases the device.
func (d *SyntheticDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = false
	return nil
}
