// Package hardware owns the station's audio interface and the serial PTT
// line. It is the only package allowed to touch the transmitter keying
// state; everything above it goes through the keying primitives.
package hardware

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/airwave-labs/stationd/pkg/errorsx"
	"github.com/airwave-labs/stationd/pkg/logging"
)

// USB identifiers of the AIOC radio interface cable.
const (
	DefaultVendorID  = "1209"
	DefaultProductID = "7388"
)

type Config struct {
	AudioDevice string // case-insensitive substring of the device name
	SerialPort  string // explicit path, or "auto" for VID/PID discovery
	BaudRate    int
	SampleRate  int
	Channels    int
	PTTSettle   time.Duration // delay after keying, lets relay/CTCSS settle
	VendorID    string
	ProductID   string
}

func (c *Config) applyDefaults() {
	if c.BaudRate <= 0 {
		c.BaudRate = 9600
	}
	if c.PTTSettle <= 0 {
		c.PTTSettle = 300 * time.Millisecond
	}
	if c.VendorID == "" {
		c.VendorID = DefaultVendorID
	}
	if c.ProductID == "" {
		c.ProductID = DefaultProductID
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

// pttLine is the subset of the serial port used for keying.
type pttLine interface {
	SetDTR(bool) error
	SetRTS(bool) error
	Close() error
}

// Device bundles the discovered audio device pair and the serial PTT line.
// The audio pair is immutable after Open; the PTT line is mutable only
// through PTTOn/PTTOff, which keep the transmit-enable and receive-enable
// states mutually exclusive.
type Device struct {
	cfg    Config
	dryRun bool
	logger *slog.Logger

	in  *portaudio.DeviceInfo
	out *portaudio.DeviceInfo

	mu       sync.Mutex
	port     pttLine
	portPath string
	keyed    bool
	closed   bool
}

// Open discovers the audio device pair and the serial PTT line and returns
// a ready Device with the transmitter unkeyed. In dry-run mode the serial
// line is skipped entirely and the OS default audio devices stand in when
// the configured name does not match.
func Open(cfg Config, dryRun bool, logger *slog.Logger) (*Device, error) {
	cfg.applyDefaults()
	d := &Device{
		cfg:    cfg,
		dryRun: dryRun,
		logger: logging.NewComponentLogger(logger, "hardware"),
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("portaudio init: %w", err), errorsx.ReasonCapture)
	}

	if err := d.discoverAudio(); err != nil {
		portaudio.Terminate()
		return nil, err
	}

	if !dryRun {
		if err := d.openSerial(); err != nil {
			portaudio.Terminate()
			return nil, err
		}
	}

	// Never start with an accidentally keyed transmitter.
	if err := d.PTTOff(); err != nil {
		d.Close()
		return nil, err
	}

	serialDesc := "DRY RUN"
	if !dryRun {
		serialDesc = d.portPath
	}
	d.logger.Info("interface ready",
		"input", d.in.Name,
		"output", d.out.Name,
		"serial", serialDesc,
	)
	return d, nil
}

func (d *Device) discoverAudio() error {
	devices, err := portaudio.Devices()
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("enumerate audio devices: %w", err), errorsx.ReasonCapture)
	}
	d.in, d.out = matchAudioDevices(d.cfg.AudioDevice, devices)

	if d.dryRun {
		if d.in == nil {
			if d.in, err = portaudio.DefaultInputDevice(); err != nil {
				return errorsx.Wrap(fmt.Errorf("default input device: %w", err), errorsx.ReasonDeviceNotFound)
			}
		}
		if d.out == nil {
			if d.out, err = portaudio.DefaultOutputDevice(); err != nil {
				return errorsx.Wrap(fmt.Errorf("default output device: %w", err), errorsx.ReasonDeviceNotFound)
			}
		}
		d.logger.Info("dry run: using audio devices", "input", d.in.Name, "output", d.out.Name)
		return nil
	}

	if d.in == nil || d.out == nil {
		names := make([]string, len(devices))
		for i, dev := range devices {
			names[i] = dev.Name
		}
		return errorsx.Wrap(
			fmt.Errorf("audio device %q not found; available: %s", d.cfg.AudioDevice, strings.Join(names, ", ")),
			errorsx.ReasonDeviceNotFound,
		)
	}
	d.logger.Info("audio devices matched", "input", d.in.Name, "output", d.out.Name)
	return nil
}

// matchAudioDevices selects the first input-capable and first output-capable
// devices whose names contain name, case-insensitively.
func matchAudioDevices(name string, devices []*portaudio.DeviceInfo) (in, out *portaudio.DeviceInfo) {
	needle := strings.ToLower(name)
	for _, dev := range devices {
		if dev == nil || !strings.Contains(strings.ToLower(dev.Name), needle) {
			continue
		}
		if dev.MaxInputChannels > 0 && in == nil {
			in = dev
		}
		if dev.MaxOutputChannels > 0 && out == nil {
			out = dev
		}
	}
	return in, out
}

func (d *Device) openSerial() error {
	path := d.cfg.SerialPort
	if path == "" || path == "auto" {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return errorsx.Wrap(fmt.Errorf("enumerate serial ports: %w", err), errorsx.ReasonSerialNotFound)
		}
		path, err = findSerialPort(d.cfg.VendorID, d.cfg.ProductID, ports)
		if err != nil {
			return err
		}
	}

	port, err := serial.Open(path, &serial.Mode{BaudRate: d.cfg.BaudRate})
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("open serial port %s: %w", path, err), errorsx.ReasonSerialIO)
	}
	d.port = port
	d.portPath = path
	d.logger.Info("serial port open", "path", path, "baud", d.cfg.BaudRate)
	return nil
}

// findSerialPort locates the interface's serial port by USB VID/PID.
func findSerialPort(vid, pid string, ports []*enumerator.PortDetails) (string, error) {
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid) {
			return normalizeSerialPath(p.Name), nil
		}
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return "", errorsx.Wrap(
		fmt.Errorf("serial port not found (VID:%s PID:%s); available: %s", vid, pid, strings.Join(names, ", ")),
		errorsx.ReasonSerialNotFound,
	)
}

// normalizeSerialPath rewrites macOS blocking /dev/tty.* device paths to
// their non-blocking /dev/cu.* call-out equivalents.
func normalizeSerialPath(path string) string {
	if strings.HasPrefix(path, "/dev/tty.") {
		return "/dev/cu." + strings.TrimPrefix(path, "/dev/tty.")
	}
	return path
}

// SampleRate returns the configured capture/playback rate.
func (d *Device) SampleRate() int { return d.cfg.SampleRate }

// Channels returns the configured channel count.
func (d *Device) Channels() int { return d.cfg.Channels }

// Close unkeys the transmitter and releases the serial and audio handles.
// Safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	port := d.port
	d.mu.Unlock()

	// Always leave the line in receive state before letting go of it.
	if port != nil {
		d.setLines(port, false, true)
		if err := port.Close(); err != nil {
			d.logger.Warn("serial close failed", "err", err)
		} else {
			d.logger.Info("serial port closed")
		}
	}
	if err := portaudio.Terminate(); err != nil {
		d.logger.Warn("portaudio terminate failed", "err", err)
	}
	return nil
}
