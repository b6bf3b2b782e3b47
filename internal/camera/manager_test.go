package camera

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/fault"
	"presence/internal/remote"
)

type fakeDevice struct {
	opens   int
	closes  int
	frame   image.Image
	openErr error
}

func (d *fakeDevice) Open(ctx context.Context) error {
	if d.openErr != nil {
		return d.openErr
	}
	d.opens++
	return nil
}

func (d *fakeDevice) Frame(ctx context.Context) (image.Image, error) {
	if d.frame == nil {
		return nil, &fault.NotReadyError{}
	}
	return d.frame, nil
}

func (d *fakeDevice) Close() error {
	d.closes++
	return nil
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestManager_OpenValidatesNames(t *testing.T) {
	m := NewManager(&fakeDevice{}, nil)

	err := m.Open(context.Background(), "", "Martin")
	var verr *fault.ValidationError
	require.ErrorAs(t, err, &verr)

	err = m.Open(context.Background(), "Marie", "   ")
	require.ErrorAs(t, err, &verr)

	// Nothing acquired on validation failure.
	assert.Equal(t, 0, m.Handles())
}

func TestManager_OpenIsIdempotentWhileCapturing(t *testing.T) {
	dev := &fakeDevice{frame: testImage()}
	m := NewManager(dev, nil)

	require.NoError(t, m.Open(context.Background(), "Marie", "Martin"))
	require.NoError(t, m.Open(context.Background(), "Marie", "Martin"))

	// A second handle is never acquired.
	assert.Equal(t, 1, dev.opens)
	assert.Equal(t, 1, m.Handles())
	assert.Equal(t, Capturing, m.CurrentState())

	m.Close()
	assert.Equal(t, 0, m.Handles())
	assert.Equal(t, 1, dev.closes)
}

func TestManager_OpenDeviceFailure(t *testing.T) {
	dev := &fakeDevice{openErr: assert.AnError}
	m := NewManager(dev, nil)

	err := m.Open(context.Background(), "Marie", "Martin")
	var derr *fault.DeviceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, Idle, m.CurrentState())
	assert.Equal(t, 0, m.Handles())
}

func TestManager_CaptureFrameRequiresCapturing(t *testing.T) {
	m := NewManager(&fakeDevice{frame: testImage()}, nil)
	_, err := m.CaptureFrame(context.Background())
	var verr *fault.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestManager_CaptureFrameNotReady(t *testing.T) {
	dev := &fakeDevice{} // no frame produced yet
	m := NewManager(dev, nil)
	require.NoError(t, m.Open(context.Background(), "Marie", "Martin"))
	defer m.Close()

	_, err := m.CaptureFrame(context.Background())
	var nrerr *fault.NotReadyError
	require.ErrorAs(t, err, &nrerr)
}

func TestManager_CaptureFrameZeroDimensions(t *testing.T) {
	dev := &fakeDevice{frame: image.NewRGBA(image.Rect(0, 0, 0, 0))}
	m := NewManager(dev, nil)
	require.NoError(t, m.Open(context.Background(), "Marie", "Martin"))
	defer m.Close()

	_, err := m.CaptureFrame(context.Background())
	var nrerr *fault.NotReadyError
	require.ErrorAs(t, err, &nrerr)
}

func TestManager_CaptureFrameEncodesJPEG(t *testing.T) {
	dev := &fakeDevice{frame: testImage()}
	m := NewManager(dev, nil)
	require.NoError(t, m.Open(context.Background(), "Marie", "Martin"))
	defer m.Close()

	payload, err := m.CaptureFrame(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	img, err := jpeg.Decode(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestManager_SubmitClosesOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Marie", r.FormValue("first_name"))
		assert.Equal(t, "Martin", r.FormValue("last_name"))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "photo.jpg", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 12, "first_name": "Marie", "last_name": "Martin", "photo_path": "faces/12.jpg"}`))
	}))
	defer srv.Close()

	dev := &fakeDevice{frame: testImage()}
	m := NewManager(dev, remote.New(srv.URL, time.Second))
	require.NoError(t, m.Open(context.Background(), "Marie", "Martin"))

	payload, err := m.CaptureFrame(context.Background())
	require.NoError(t, err)

	student, err := m.Submit(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, int64(12), student.ID)

	// Success releases the handle.
	assert.Equal(t, Idle, m.CurrentState())
	assert.Equal(t, 0, m.Handles())
	assert.Equal(t, 1, dev.closes)
}

func TestManager_SubmitFailureKeepsCaptureOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "no face detected"}`))
	}))
	defer srv.Close()

	dev := &fakeDevice{frame: testImage()}
	m := NewManager(dev, remote.New(srv.URL, time.Second))
	require.NoError(t, m.Open(context.Background(), "Marie", "Martin"))

	payload, err := m.CaptureFrame(context.Background())
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), payload)
	var rerr *fault.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "no face detected", rerr.Detail)

	// The operator can retry; the handle is still held until Close.
	assert.Equal(t, Capturing, m.CurrentState())
	assert.Equal(t, 1, m.Handles())

	m.Close()
	assert.Equal(t, 0, m.Handles())
}

func TestManager_CloseIsUnconditionalAndRepeatable(t *testing.T) {
	dev := &fakeDevice{frame: testImage()}
	m := NewManager(dev, nil)

	m.Close() // Idle close is a no-op
	assert.Equal(t, 0, dev.closes)

	require.NoError(t, m.Open(context.Background(), "Marie", "Martin"))
	m.Close()
	m.Close()
	assert.Equal(t, 1, dev.closes)
	assert.Equal(t, 0, m.Handles())
}

func TestSyntheticDevice_ProducesFrames(t *testing.T) {
	dev := &SyntheticDevice{}

	_, err := dev.Frame(context.Background())
	var derr *fault.DeviceError
	require.ErrorAs(t, err, &derr)

	require.NoError(t, dev.Open(context.Background()))
	img, err := dev.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	require.NoError(t, dev.Close())
}
