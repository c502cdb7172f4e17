package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pricofy/translation-relay/internal/domain"
)

func newCaptureCmd() *cobra.Command {
	var (
		out  string
		wait time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the visible tab and save it as PNG",
		Long: `Capture sends CAPTURE_VISIBLE_TAB and writes the image to --out. When the
transport delivers pushes, the SCREENSHOT_CAPTURED or SCREENSHOT_ERROR notice
for the same request id is reported as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, out, wait)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "capture.png", "file to write the PNG to")
	cmd.Flags().DurationVar(&wait, "notice-wait", 2*time.Second, "how long to wait for the push notice")
	return cmd
}

func runCapture(cmd *cobra.Command, out string, wait time.Duration) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	result, requestID, err := s.client.CaptureVisibleTab(ctx)
	if s.notices != nil {
		reportNotice(cmd, s.notices, requestID, wait)
	}
	if err != nil {
		return err
	}

	png, err := decodeDataURL(result.DataURL)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return fmt.Errorf("write capture: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d bytes)\n", out, len(png))
	return nil
}

func reportNotice(cmd *cobra.Command, notices <-chan domain.Envelope, requestID string, wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case env := <-notices:
			if env.RequestID != requestID {
				continue
			}
			var n domain.ScreenshotNotice
			if err := env.DecodePayload(&n); err != nil {
				return
			}
			if env.Type == domain.KindScreenshotError {
				fmt.Fprintf(cmd.ErrOrStderr(), "notice %s: %s\n", env.Type, n.Error)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "notice %s for %s\n", env.Type, requestID)
			}
			return
		case <-timer.C:
			return
		case <-cmd.Context().Done():
			return
		}
	}
}

func decodeDataURL(dataURL string) ([]byte, error) {
	const prefix = "base64,"
	i := strings.Index(dataURL, prefix)
	if !strings.HasPrefix(dataURL, "data:") || i < 0 {
		return nil, fmt.Errorf("unexpected capture format")
	}
	png, err := base64.StdEncoding.DecodeString(dataURL[i+len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	return png, nil
}
