package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

// ReportInterval is how often StartReporter logs socket traffic.
const ReportInterval = 10 * time.Second

// StartReporter launches a goroutine that logs socket traffic every
// ReportInterval while there is any. It stops when ctx is cancelled.
func (m *Metrics) StartReporter(ctx context.Context) {
	if m == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(ReportInterval)
		defer ticker.Stop()

		var prevSent, prevRecv int64
		for {
			select {
			case <-ticker.C:
				sent := m.bytesSent.Load()
				recv := m.bytesRecv.Load()

				secs := ReportInterval.Seconds()
				outS := float64(sent-prevSent) / secs
				inS := float64(recv-prevRecv) / secs

				if inS > 0 || outS > 0 {
					pterm.DefaultLogger.Debug(formatStats(inS, outS))
				}

				prevSent = sent
				prevRecv = recv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns the socket traffic line shown by the reporter.
func formatStats(inS, outS float64) string {
	return fmt.Sprintf("Socket In: %s/s | Out: %s/s", formatBytes(inS), formatBytes(outS))
}
