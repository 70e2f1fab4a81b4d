// Package transmit sequences a single over-the-air transmission: mute the
// receiver, key the transmitter, play the audio, unkey, and hold a guard
// interval before listening again.
package transmit

import (
	"log/slog"
	"time"

	"github.com/airwave-labs/stationd/pkg/audiofile"
	"github.com/airwave-labs/stationd/pkg/logging"
	"github.com/airwave-labs/stationd/pkg/metrics"
)

// Keyer drives the PTT line.
type Keyer interface {
	PTTOn() error
	PTTOff() error
}

// Player renders PCM samples on the transmit audio path.
type Player interface {
	Play(samples []int16, sampleRate int) error
}

// Muter gates the receive path while the station is transmitting.
type Muter interface {
	Mute()
	Unmute()
}

type Config struct {
	Guard        time.Duration // dead time after unkey before listening resumes
	ArtifactsDir string        // when set, outgoing audio is archived as WAV
}

func (c *Config) applyDefaults() {
	if c.Guard <= 0 {
		c.Guard = 500 * time.Millisecond
	}
}

// Pipeline owns the ordered transmit sequence. It is not safe for
// concurrent Transmit calls; the session runs one cycle at a time.
type Pipeline struct {
	keyer    Keyer
	player   Player
	muter    Muter
	cfg      Config
	observer metrics.Observer
	logger   *slog.Logger
}

func NewPipeline(keyer Keyer, player Player, muter Muter, cfg Config, observer metrics.Observer, logger *slog.Logger) *Pipeline {
	cfg.applyDefaults()
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &Pipeline{
		keyer:    keyer,
		player:   player,
		muter:    muter,
		cfg:      cfg,
		observer: observer,
		logger:   logging.NewComponentLogger(logger, "transmit"),
	}
}

// Transmit sends one utterance. Zero-length audio aborts before the
// transmitter is ever keyed. The unkey is guaranteed even when playback
// fails; a stuck carrier is the one failure mode this pipeline must never
// produce.
func (p *Pipeline) Transmit(samples []int16, sampleRate int, correlationID string) error {
	if len(samples) == 0 {
		p.logger.Warn("empty audio, not keying", "correlation_id", correlationID)
		return nil
	}

	if p.cfg.ArtifactsDir != "" {
		if path, err := audiofile.Save(p.cfg.ArtifactsDir, "tx", samples, sampleRate); err != nil {
			p.logger.Warn("failed to archive outgoing audio", "error", err)
		} else {
			p.logger.Debug("archived outgoing audio", "path", path)
		}
	}

	duration := time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second))
	p.logger.Info("transmitting",
		"duration", duration,
		"sample_rate", sampleRate,
		"correlation_id", correlationID,
	)

	p.muter.Mute()
	defer p.muter.Unmute()

	if err := p.keyer.PTTOn(); err != nil {
		return err
	}
	playErr := p.player.Play(samples, sampleRate)
	if err := p.keyer.PTTOff(); err != nil {
		if playErr == nil {
			playErr = err
		} else {
			p.logger.Error("unkey failed after playback error", "error", err)
		}
	}
	if playErr != nil {
		return playErr
	}

	time.Sleep(p.cfg.Guard)
	p.observer.RecordEvent(metrics.CycleEvent(metrics.EventTxSent, correlationID, duration.Seconds()))
	return nil
}
