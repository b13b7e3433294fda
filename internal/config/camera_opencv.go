//go:build opencv

package config

import (
	"QRScanner/pkg/device/opencv"
	"QRScanner/pkg/scanner"

	"github.com/sirupsen/logrus"
)

func localCamera(index int, logger *logrus.Logger) (scanner.MediaDevices, error) {
	return opencv.New(index, logger), nil
}
