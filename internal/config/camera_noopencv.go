//go:build !opencv

package config

import (
	"errors"

	"QRScanner/pkg/scanner"

	"github.com/sirupsen/logrus"
)

var ErrOpenCVUnavailable = errors.New("camera backend opencv needs a binary built with -tags opencv")

func localCamera(index int, logger *logrus.Logger) (scanner.MediaDevices, error) {
	return nil, ErrOpenCVUnavailable
}
