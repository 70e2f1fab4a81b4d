package hardware

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/airwave-labs/stationd/pkg/errorsx"
)

// InputStream delivers fixed-size float32 blocks from the capture device.
type InputStream struct {
	st  *portaudio.Stream
	buf []float32
}

// OpenInputStream opens a blocking capture stream reading blockSize frames
// per call.
func (d *Device) OpenInputStream(blockSize int) (*InputStream, error) {
	p := portaudio.HighLatencyParameters(d.in, nil)
	p.Input.Channels = d.cfg.Channels
	p.SampleRate = float64(d.cfg.SampleRate)
	p.FramesPerBuffer = blockSize

	buf := make([]float32, blockSize*d.cfg.Channels)
	st, err := portaudio.OpenStream(p, buf)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("open input stream: %w", err), errorsx.ReasonCapture)
	}
	return &InputStream{st: st, buf: buf}, nil
}

func (s *InputStream) Start() error {
	if err := s.st.Start(); err != nil {
		return errorsx.Wrap(fmt.Errorf("start input stream: %w", err), errorsx.ReasonCapture)
	}
	return nil
}

// ReadBlock blocks until one full block is captured and returns a copy of
// it. Driver overflows are tolerated; the block read after an overflow is
// still valid audio.
func (s *InputStream) ReadBlock() ([]float32, error) {
	if err := s.st.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, errorsx.Wrap(fmt.Errorf("read input block: %w", err), errorsx.ReasonCapture)
	}
	out := make([]float32, len(s.buf))
	copy(out, s.buf)
	return out, nil
}

func (s *InputStream) Close() error {
	_ = s.st.Stop()
	return s.st.Close()
}

const playbackChunk = 1024

// Play drives mono 16-bit samples out the playback device and returns only
// after the final chunk has been handed to the driver. Playback never
// overlaps keying transitions: callers key first, Play, then unkey.
func (d *Device) Play(samples []int16, sampleRate int) error {
	p := portaudio.HighLatencyParameters(nil, d.out)
	p.Output.Channels = 1
	p.SampleRate = float64(sampleRate)
	p.FramesPerBuffer = playbackChunk

	buf := make([]int16, playbackChunk)
	st, err := portaudio.OpenStream(p, &buf)
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("open output stream: %w", err), errorsx.ReasonPlayback)
	}
	defer st.Close()

	if err := st.Start(); err != nil {
		return errorsx.Wrap(fmt.Errorf("start output stream: %w", err), errorsx.ReasonPlayback)
	}
	defer st.Stop()

	for off := 0; off < len(samples); off += playbackChunk {
		end := off + playbackChunk
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(buf, samples[off:end])
		for i := n; i < playbackChunk; i++ {
			buf[i] = 0
		}
		if err := st.Write(); err != nil && err != portaudio.OutputUnderflowed {
			return errorsx.Wrap(fmt.Errorf("write output block: %w", err), errorsx.ReasonPlayback)
		}
	}
	return nil
}
