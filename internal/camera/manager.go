package camera

import (
	"bytes"
	"context"
	"image/jpeg"
	"strings"
	"sync"

	"presence/internal/fault"
	"presence/internal/metrics"
	"presence/internal/remote"
)

// State of the capture lifecycle.
type State int

const (
	// Idle means no device handle is held.
	Idle State = iota
	// Capturing means the device is acquired and the feed is live.
	Capturing
)

// jpegQuality matches the lossy encoding quality of the capture contract.
const jpegQuality = 95

// Manager drives the capture modal lifecycle: Idle -> Capturing -> Idle.
// Close is the only transition out of Capturing and runs on every exit path.
type Manager struct {
	mu      sync.Mutex
	device  Device
	client  *remote.Client
	state   State
	first   string
	last    string
	handles int
}

// NewManager creates a manager over the given device, submitting enrollments
// through client.
func NewManager(device Device, client *remote.Client) *Manager {
	return &Manager{device: device, client: client}
}

// Open validates the enrollee names and acquires the camera. Calling Open
// while already Capturing is a no-op: a second handle is never acquired.
func (m *Manager) Open(ctx context.Context, firstName, lastName string) error {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return &fault.ValidationError{Reason: "fill in first and last name before capturing"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Capturing {
		// Keep the freshest metadata for the eventual submit.
		m.first, m.last = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
		return nil
	}

	if err := m.device.Open(ctx); err != nil {
		return &fault.DeviceError{Cause: err}
	}
	m.state = Capturing
	m.first, m.last = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	m.handles++
	metrics.CameraHandles.Set(float64(m.handles))
	return nil
}

// CaptureFrame renders the current frame into a JPEG payload.
func (m *Manager) CaptureFrame(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	if m.state != Capturing {
		m.mu.Unlock()
		return nil, &fault.ValidationError{Reason: "no capture in progress"}
	}
	device := m.device
	m.mu.Unlock()

	img, err := device.Frame(ctx)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, &fault.NotReadyError{}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, &fault.EncodeError{}
	}
	if buf.Len() == 0 {
		return nil, &fault.EncodeError{}
	}
	return buf.Bytes(), nil
}

// Submit uploads the payload with the enrollee metadata. On success the
// capture is closed and the created record returned; on failure the capture
// stays open so the operator can retry.
func (m *Manager) Submit(ctx context.Context, payload []byte) (remote.Student, error) {
	m.mu.Lock()
	if m.state != Capturing {
		m.mu.Unlock()
		return remote.Student{}, &fault.ValidationError{Reason: "no capture in progress"}
	}
	first, last := m.first, m.last
	m.mu.Unlock()

	student, err := m.client.CreateStudent(ctx, payload, first, last)
	if err != nil {
		metrics.CaptureSubmissions.WithLabelValues("error").Inc()
		return remote.Student{}, err
	}
	metrics.CaptureSubmissions.WithLabelValues("ok").Inc()
	m.Close()
	return student, nil
}

// Close releases the camera handle unconditionally and returns to Idle.
// Safe to call from any state and repeatedly.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Capturing {
		return
	}
	_ = m.device.Close()
	m.state = Idle
	m.first, m.last = "", ""
	m.handles--
	metrics.CameraHandles.Set(float64(m.handles))
}

// CurrentState reports the lifecycle state.
func (m *Manager) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Handles reports how many device handles are held: 0 when Idle, 1 when
// Capturing.
func (m *Manager) Handles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles
}
