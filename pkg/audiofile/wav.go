package audiofile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Save writes mono 16-bit PCM as a timestamped WAV under dir, returning the
// final path. The file is written to a temp name and renamed so a partially
// written artifact is never visible. label is typically "rx" or "tx".
func Save(dir, label string, samples []int16, sampleRate int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.wav", label, time.Now().Format("20060102-150405"))
	final := filepath.Join(dir, name)
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := Encode(f, samples, sampleRate); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return final, nil
}

// Encode writes mono 16-bit PCM WAV to w.
func Encode(w io.WriteSeeker, samples []int16, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// EncodeBytes renders mono 16-bit PCM to an in-memory WAV, for collaborators
// that consume whole files over the wire.
func EncodeBytes(samples []int16, sampleRate int) ([]byte, error) {
	ws := &seekBuffer{}
	if err := Encode(ws, samples, sampleRate); err != nil {
		return nil, err
	}
	return ws.buf.Bytes(), nil
}

// Read loads a 16-bit PCM WAV from path, returning interleaved samples and
// the sample rate.
func Read(path string) ([]int16, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Data == nil {
		return nil, 0, errors.New("invalid or empty wav data")
	}
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = int16(v)
	}
	return out, int(dec.SampleRate), nil
}

// seekBuffer adapts a bytes.Buffer-backed slice to io.WriteSeeker so the
// encoder can patch chunk sizes on Close.
type seekBuffer struct {
	buf bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos < s.buf.Len() {
		n := copy(s.buf.Bytes()[s.pos:], p)
		if n < len(p) {
			s.buf.Write(p[n:])
		}
	} else {
		for s.pos > s.buf.Len() {
			s.buf.WriteByte(0)
		}
		s.buf.Write(p)
	}
	s.pos += len(p)
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = s.pos + int(offset)
	case io.SeekEnd:
		next = s.buf.Len() + int(offset)
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative seek")
	}
	s.pos = next
	return int64(next), nil
}
