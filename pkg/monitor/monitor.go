// Package monitor prints live input levels, for calibrating the squelch
// threshold against the actual radio and cabling.
package monitor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/airwave-labs/stationd/pkg/vox"
)

const printInterval = 200 * time.Millisecond

// Run reads blocks from the source and redraws a level bar with a peak-hold
// readout until the context is canceled.
func Run(ctx context.Context, src vox.BlockSource, out io.Writer) error {
	if err := src.Start(); err != nil {
		return err
	}
	defer src.Close()

	fmt.Fprintln(out, "Speak into mic, watch the levels. Ctrl+C to stop.")

	lastPrint := time.Now()
	peak := vox.SilenceFloorDBFS
	for {
		if ctx.Err() != nil {
			fmt.Fprintln(out)
			return nil
		}
		block, err := src.ReadBlock()
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		level := vox.LevelDBFS(block)
		if level > peak {
			peak = level
		}
		if time.Since(lastPrint) < printInterval {
			continue
		}
		lastPrint = time.Now()
		fmt.Fprintf(out, "\r  %6.1f dBFS |%-60s|  peak: %.1f", level, bar(level), peak)
		peak = vox.SilenceFloorDBFS
	}
}

// bar scales -60..0 dBFS onto a 60-character meter.
func bar(level float64) string {
	n := int((level + 60) * 1.5)
	if n < 0 {
		n = 0
	}
	if n > 60 {
		n = 60
	}
	return strings.Repeat("#", n)
}
