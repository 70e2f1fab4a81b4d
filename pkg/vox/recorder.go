// Package vox implements the voice-operated squelch: a recorder that blocks
// until an incoming transmission opens the squelch, accumulates it, and
// returns the finished utterance when the channel goes quiet again.
package vox

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airwave-labs/stationd/pkg/errorsx"
	"github.com/airwave-labs/stationd/pkg/logging"
)

// BlockSource delivers fixed-size float32 audio blocks from a capture
// stream. ReadBlock blocks until a full block is available.
type BlockSource interface {
	Start() error
	ReadBlock() ([]float32, error)
	Close() error
}

// SourceFactory opens a fresh capture stream for one listen cycle.
type SourceFactory func(blockSize int) (BlockSource, error)

type Config struct {
	ThresholdDBFS float64
	HangTime      time.Duration // silence tolerated after the last open block
	MinDuration   time.Duration // shorter utterances are discarded as noise
	MaxDuration   time.Duration // safety cutoff against a stuck squelch
	BlockSize     int           // frames per block
	SampleRate    int
	Channels      int
	PollInterval  time.Duration // cadence at which stop requests are observed
}

func (c *Config) applyDefaults() {
	if c.BlockSize <= 0 {
		c.BlockSize = 1024
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
}

// Recorder runs the VOX state machine. A driver goroutine owns the capture
// stream and the per-cycle accumulation state; the calling goroutine only
// polls completion and stop flags, so the two sides share nothing but three
// atomics.
type Recorder struct {
	cfg    Config
	open   SourceFactory
	logger *slog.Logger

	muted   atomic.Bool
	stopReq atomic.Bool

	lastLevelLog atomic.Int64 // unix nanos of the last periodic level log
}

func NewRecorder(open SourceFactory, cfg Config, logger *slog.Logger) *Recorder {
	cfg.applyDefaults()
	return &Recorder{
		cfg:    cfg,
		open:   open,
		logger: logging.NewComponentLogger(logger, "vox"),
	}
}

// Mute makes the recorder ignore incoming blocks entirely. Idempotent and
// safe to call from any goroutine; the driver observes it at whole-block
// granularity.
func (r *Recorder) Mute() { r.muted.Store(true) }

// Unmute resumes squelch detection.
func (r *Recorder) Unmute() { r.muted.Store(false) }

// Muted reports the current mute state.
func (r *Recorder) Muted() bool { return r.muted.Load() }

// Stop requests an early return from WaitForTransmission. Used for process
// shutdown; makes no guarantee about partially accumulated state.
func (r *Recorder) Stop() { r.stopReq.Store(true) }

// cycle is the per-listen-cycle accumulation state. It is owned by the
// driver goroutine from stream start until the driver exits; the control
// goroutine reads it only after waiting for the driver.
type cycle struct {
	recording   bool
	lastAbove   time.Time
	frames      [][]float32
	totalFrames int
	// frame count at the last above-threshold block; the hang-time tail
	// past this point is dead air and is trimmed at finalize
	framesAtLastAbove int
}

// WaitForTransmission blocks until a transmission has been recorded, and
// returns the mono utterance. It returns (nil, nil) when nothing usable was
// captured: totally silent cycle, a noise burst shorter than MinDuration,
// a fully muted cycle, or an external Stop. When the MaxDuration cutoff
// fires mid-utterance the truncated buffer is still returned; that is the
// documented policy, not an accident.
func (r *Recorder) WaitForTransmission() ([]float32, error) {
	// every listen cycle starts unmuted
	r.muted.Store(false)

	src, err := r.open(r.cfg.BlockSize)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonCapture)
	}
	if err := src.Start(); err != nil {
		src.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonCapture)
	}

	var (
		c        = &cycle{}
		done     = make(chan struct{})
		doneOnce sync.Once
		finish   = func() { doneOnce.Do(func() { close(done) }) }
		readErr  = make(chan error, 1)
		wg       sync.WaitGroup
	)
	maxFrames := int(r.cfg.MaxDuration.Seconds() * float64(r.cfg.SampleRate))

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			block, err := src.ReadBlock()
			if err != nil {
				readErr <- err
				finish()
				return
			}
			if r.feed(c, block, maxFrames, time.Now()) {
				finish()
				return
			}
		}
	}()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	var streamErr error
poll:
	for {
		select {
		case <-done:
			break poll
		case streamErr = <-readErr:
			break poll
		case <-ticker.C:
			if r.stopReq.Load() {
				finish()
				break poll
			}
		}
	}

	finish()
	wg.Wait()
	src.Close()

	if streamErr != nil {
		return nil, errorsx.Wrap(streamErr, errorsx.ReasonCapture)
	}
	return r.finalize(c), nil
}

// feed advances the state machine by one block and reports whether the
// cycle is finished. Muted blocks are ignored entirely: no accumulation,
// no transition, no timestamp update.
func (r *Recorder) feed(c *cycle, block []float32, maxFrames int, now time.Time) bool {
	if r.muted.Load() {
		return false
	}

	level := LevelDBFS(block)
	r.logLevel(level, c.recording, now)

	if level >= r.cfg.ThresholdDBFS {
		c.lastAbove = now
		if !c.recording {
			c.recording = true
			r.logger.Info("VOX open", "level_dbfs", level)
		}
		r.accumulate(c, block)
		c.framesAtLastAbove = c.totalFrames
	} else if c.recording {
		r.accumulate(c, block)
		if now.Sub(c.lastAbove) > r.cfg.HangTime {
			r.logger.Info("VOX closed (hang time expired)")
			return true
		}
	}

	if c.totalFrames >= maxFrames {
		r.logger.Warn("max recording length reached, truncating")
		return true
	}
	return false
}

func (r *Recorder) accumulate(c *cycle, block []float32) {
	c.frames = append(c.frames, block)
	c.totalFrames += len(block) / r.cfg.Channels
}

// logLevel emits a periodic debug line so threshold problems can be
// diagnosed from the logs.
func (r *Recorder) logLevel(level float64, recording bool, now time.Time) {
	last := r.lastLevelLog.Load()
	if now.UnixNano()-last < int64(2*time.Second) {
		return
	}
	if r.lastLevelLog.CompareAndSwap(last, now.UnixNano()) {
		r.logger.Debug("audio level",
			"level_dbfs", level,
			"threshold_dbfs", r.cfg.ThresholdDBFS,
			"recording", recording,
		)
	}
}

// finalize applies the return contract: nil for an empty or too-short
// cycle, otherwise the concatenated single-channel buffer with the
// hang-time tail trimmed off. Sub-threshold blocks inside the utterance
// survive; only the dead air after the final above-threshold block goes.
func (r *Recorder) finalize(c *cycle) []float32 {
	if c.framesAtLastAbove == 0 {
		return nil
	}
	duration := time.Duration(float64(c.framesAtLastAbove) / float64(r.cfg.SampleRate) * float64(time.Second))
	if duration < r.cfg.MinDuration {
		r.logger.Debug("ignoring short burst", "duration", duration)
		return nil
	}

	out := make([]float32, 0, c.totalFrames)
	for _, block := range c.frames {
		out = append(out, downmix(block, r.cfg.Channels)...)
	}
	out = out[:c.framesAtLastAbove]
	r.logger.Info("recorded transmission", "duration", duration)
	return out
}

// downmix averages interleaved channels into mono.
func downmix(block []float32, channels int) []float32 {
	if channels <= 1 {
		return block
	}
	out := make([]float32, len(block)/channels)
	for i := range out {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += block[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
