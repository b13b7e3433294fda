//go:build opencv

// Package opencv reads local cameras through gocv. It needs the opencv build
// tag and an OpenCV installation.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	"QRScanner/pkg/device/capture"
	"QRScanner/pkg/scanner"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const maxDeviceScan = 6

// Devices opens local cameras through OpenCV. A negative Index picks the
// first working device.
type Devices struct {
	Index   int
	Capture capture.Config
	logger  *logrus.Logger
}

func New(index int, logger *logrus.Logger) *Devices {
	return &Devices{
		Index:   index,
		Capture: capture.DefaultConfig(),
		logger:  logger,
	}
}

func (d *Devices) HasVideoInput(ctx context.Context) (bool, error) {
	if d.Index >= 0 {
		return deviceExists(d.Index), nil
	}
	for i := 0; i < maxDeviceScan; i++ {
		if deviceExists(i) {
			return true, nil
		}
	}
	return false, nil
}

func (d *Devices) Permission(ctx context.Context) (scanner.PermissionState, error) {
	index := d.Index
	if index < 0 {
		index = 0
	}

	f, err := os.Open(devicePath(index))
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return scanner.PermissionDenied, nil
		}
		// no device node to inspect, let Open decide
		return scanner.PermissionPrompt, nil
	}
	f.Close()
	return scanner.PermissionGranted, nil
}

func (d *Devices) Open(ctx context.Context, c scanner.Constraints) (scanner.Stream, error) {
	video, index, err := d.openCapture()
	if err != nil {
		return nil, err
	}

	if c.IdealWidth > 0 && c.IdealHeight > 0 {
		video.Set(gocv.VideoCaptureFrameWidth, float64(c.IdealWidth))
		video.Set(gocv.VideoCaptureFrameHeight, float64(c.IdealHeight))
	}

	d.logger.WithFields(logrus.Fields{
		"device": index,
		"width":  video.Get(gocv.VideoCaptureFrameWidth),
		"height": video.Get(gocv.VideoCaptureFrameHeight),
	}).Info("[opencv.Open] camera opened")

	return capture.NewStream(&source{video: video, frame: gocv.NewMat()}, d.Capture, d.logger), nil
}

func (d *Devices) openCapture() (*gocv.VideoCapture, int, error) {
	if d.Index >= 0 {
		capture, err := openWorking(d.Index)
		if err != nil {
			return nil, -1, err
		}
		return capture, d.Index, nil
	}

	for i := 0; i < maxDeviceScan; i++ {
		capture, err := openWorking(i)
		if err != nil {
			continue
		}
		return capture, i, nil
	}
	return nil, -1, errors.New("no usable camera found")
}

func openWorking(index int) (*gocv.VideoCapture, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil || capture == nil || !capture.IsOpened() {
		if capture != nil {
			capture.Close()
		}
		return nil, fmt.Errorf("open camera %d: %v", index, err)
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := capture.Read(&mat); !ok || mat.Empty() {
		capture.Close()
		return nil, fmt.Errorf("camera %d returned no frame", index)
	}
	return capture, nil
}

func devicePath(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

func deviceExists(index int) bool {
	_, err := os.Stat(devicePath(index))
	return err == nil
}

// source adapts a VideoCapture to capture.Source.
type source struct {
	video *gocv.VideoCapture
	frame gocv.Mat
}

func (s *source) Grab() (image.Image, error) {
	if ok := s.video.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, errors.New("camera returned no frame")
	}
	return s.frame.ToImage()
}

func (s *source) Close() error {
	s.frame.Close()
	return s.video.Close()
}
