//go:build opencv

package main

import (
	"QRScanner/internal/entity"
	"QRScanner/pkg/log"
	websocketPkg "QRScanner/pkg/websocket"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gocv.io/x/gocv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Debugf("No .env file loaded: %v", err)
	}

	device := flag.Int("device", 0, "camera device index")
	fps := flag.Int("fps", 10, "frames sent per second")
	url := flag.String("url", os.Getenv("SCAN_FEED_URL"), "remote camera websocket url")
	token := flag.String("token", os.Getenv("SCAN_FEED_TOKEN"), "bearer token when the server requires auth")
	flag.Parse()

	var header http.Header
	if *token != "" {
		header = http.Header{}
		header.Set("Authorization", "Bearer "+*token)
	}

	capture, err := gocv.OpenVideoCapture(*device)
	if err != nil || !capture.IsOpened() {
		logger.Fatalf("Unable to open camera %d: %v", *device, err)
	}
	defer capture.Close()

	client := websocketPkg.NewFeedClient(*url, header, logger)
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		logger.Fatalf("Unable to connect to scan feed: %v", err)
	}
	if err := client.Start(true, "granted"); err != nil {
		logger.Fatalf("Unable to start remote scan: %v", err)
	}

	go printEvents(ctx, client, cancel)

	frame := gocv.NewMat()
	defer frame.Close()

	interval := time.Second / time.Duration(max(*fps, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = client.Stop()
			logger.Info("Scan feed stopped")
			return
		case <-ticker.C:
			if ok := capture.Read(&frame); !ok || frame.Empty() {
				continue
			}
			buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
			if err != nil {
				logger.Warnf("Error encoding frame: %v", err)
				continue
			}
			err = client.SendFrame(buf.GetBytes())
			buf.Close()
			if err != nil {
				logger.Errorf("Error sending frame: %v", err)
				cancel()
			}
		}
	}
}

// printEvents writes decoded results to stdout and stops the feed once the
// scanner goes idle.
func printEvents(ctx context.Context, client websocketPkg.IFeedClient, stop context.CancelFunc) {
	decoded := false
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-client.Events():
			if !ok {
				stop()
				return
			}
			switch event.Type {
			case entity.ScanEventDecoded:
				decoded = true
				fmt.Println(event.Text)
			case entity.ScanEventBanking:
				if b := event.Banking; b != nil {
					fmt.Printf("bank=%s account=%s name=%s amount=%.2f\n", b.BankCode, b.AccountNo, b.AccountName, b.Amount)
				}
			case entity.ScanEventError:
				fmt.Fprintf(os.Stderr, "%s: %s\n", event.Code, event.Message)
				stop()
				return
			case entity.ScanEventState:
				if decoded && event.State == "idle" {
					// give a pending banking lookup a moment to arrive
					time.AfterFunc(2*time.Second, stop)
				}
			}
		}
	}
}
