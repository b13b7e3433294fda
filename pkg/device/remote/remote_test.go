package remote

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"testing"

	"QRScanner/pkg/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestDevices_DefaultsToNoCamera(t *testing.T) {
	d := New()

	ok, err := d.HasVideoInput(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	perm, err := d.Permission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scanner.PermissionPrompt, perm)

	_, err = d.Open(context.Background(), scanner.DefaultConstraints())
	require.ErrorIs(t, err, scanner.ErrNoCamera)
}

func TestDevices_OpenDenied(t *testing.T) {
	d := New()
	d.Announce(true, scanner.PermissionDenied)

	_, err := d.Open(context.Background(), scanner.DefaultConstraints())
	require.ErrorIs(t, err, scanner.ErrPermissionDenied)
}

func TestDevices_PushFrames(t *testing.T) {
	d := New()
	d.Announce(true, scanner.PermissionGranted)

	require.ErrorIs(t, d.Push(jpegFrame(t, 8, 8)), ErrNoStream)

	s, err := d.Open(context.Background(), scanner.DefaultConstraints())
	require.NoError(t, err)
	assert.True(t, s.Live())

	_, err = s.ReadFrame()
	require.ErrorIs(t, err, scanner.ErrFrameNotReady)

	require.NoError(t, d.Push(jpegFrame(t, 64, 48)))
	frame, err := s.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), frame.Bounds())

	require.Error(t, d.Push([]byte("garbage")))
}

func TestDevices_StopDropsFrames(t *testing.T) {
	d := New()
	d.Announce(true, scanner.PermissionGranted)
	s, err := d.Open(context.Background(), scanner.DefaultConstraints())
	require.NoError(t, err)

	s.Stop()

	assert.False(t, s.Live())
	require.ErrorIs(t, d.Push(jpegFrame(t, 8, 8)), ErrNoStream)
	_, err = s.ReadFrame()
	require.ErrorIs(t, err, scanner.ErrFrameNotReady)

	// a stopped stream frees the camera for the next session
	again, err := d.Open(context.Background(), scanner.DefaultConstraints())
	require.NoError(t, err)
	assert.True(t, again.Live())
}

func TestDevices_SingleLiveStream(t *testing.T) {
	d := New()
	d.Announce(true, scanner.PermissionGranted)
	_, err := d.Open(context.Background(), scanner.DefaultConstraints())
	require.NoError(t, err)

	_, err = d.Open(context.Background(), scanner.DefaultConstraints())
	require.Error(t, err)

	d.Close()
	_, err = d.Open(context.Background(), scanner.DefaultConstraints())
	require.NoError(t, err)
}
