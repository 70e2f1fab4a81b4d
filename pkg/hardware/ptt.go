package hardware

import (
	"time"

	"github.com/airwave-labs/stationd/pkg/errorsx"
)

// PTTOn keys the transmitter: DTR asserted, RTS dropped. It blocks for the
// configured settle delay before returning so the relay and tone squelch on
// the far side have opened by the time playback starts. Logged no-op in
// dry-run mode.
func (d *Device) PTTOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dryRun || d.port == nil {
		d.logger.Debug("[DRY RUN] PTT ON")
		return nil
	}
	if err := d.setLines(d.port, true, false); err != nil {
		return err
	}
	d.keyed = true
	time.Sleep(d.cfg.PTTSettle)
	return nil
}

// PTTOff unkeys the transmitter: DTR dropped, RTS asserted. No delay, and
// idempotent: calling it on an unkeyed line leaves the line unchanged.
func (d *Device) PTTOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dryRun || d.port == nil {
		d.logger.Debug("[DRY RUN] PTT OFF")
		return nil
	}
	if err := d.setLines(d.port, false, true); err != nil {
		return err
	}
	d.keyed = false
	return nil
}

// Keyed reports whether the transmit-enable line is currently asserted.
func (d *Device) Keyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keyed
}

// setLines drives the DTR/RTS pair as one unit so the two states can never
// be observed asserted together.
func (d *Device) setLines(port pttLine, dtr, rts bool) error {
	if err := port.SetDTR(dtr); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSerialIO)
	}
	if err := port.SetRTS(rts); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSerialIO)
	}
	return nil
}
