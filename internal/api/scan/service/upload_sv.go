package scanService

import (
	"QRScanner/internal/api/scan"
	"QRScanner/internal/entity"
	"QRScanner/pkg/scanner"
	"context"
	"time"
)

// filePicker hands the uploaded file to the scanner as if the user had just
// picked it.
type filePicker struct {
	file scanner.File
}

func (p filePicker) Pick(ctx context.Context) (scanner.File, error) {
	return p.file, nil
}

func (s *scanService) newUploadScanner(source entity.ScanSource, picker scanner.FilePicker) *scanner.UploadScanner {
	return scanner.NewUploadScanner(s.cfg.Upload, scanner.UploadCapabilities{
		Decoder: s.decoder,
		OnDecode: func(text string) {
			s.hub.publish(entity.ScanEvent{
				Type:   entity.ScanEventDecoded,
				Source: source,
				Text:   text,
				At:     time.Now(),
			})
		},
		Picker: picker,
		Logger: s.log,
	})
}

func (s *scanService) Upload(ctx context.Context, file scanner.File) (*scan.DecodeResponse, error) {
	u := s.newUploadScanner(entity.ScanSourceUpload, filePicker{file: file})
	result, err := u.SelectFile(ctx)
	if err != nil {
		return nil, err
	}
	return s.decodeResponse(ctx, result, entity.ScanSourceUpload), nil
}

func (s *scanService) Drop(ctx context.Context, files []scanner.File) (*scan.DecodeResponse, error) {
	u := s.newUploadScanner(entity.ScanSourceDrop, nil)
	result, err := u.DropFile(ctx, scanner.DropPayload{Files: files})
	if err != nil {
		return nil, err
	}
	return s.decodeResponse(ctx, result, entity.ScanSourceDrop), nil
}

func (s *scanService) decodeResponse(ctx context.Context, result *scanner.DecodeResult, source entity.ScanSource) *scan.DecodeResponse {
	return &scan.DecodeResponse{
		Text:    result.Text,
		Corners: scan.CornersFrom(result.Corners),
		Source:  source,
		Banking: s.resolveBanking(ctx, result.Text),
	}
}
