package audiofile

import (
	"strings"
	"testing"
)

func TestSaveAndRead(t *testing.T) {
	dir := t.TempDir()
	samples := make([]int16, 4800)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	path, err := Save(dir, "rx", samples, 48000)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.Contains(path, "rx_") || !strings.HasSuffix(path, ".wav") {
		t.Fatalf("unexpected artifact name %q", path)
	}

	got, rate, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rate != 48000 {
		t.Fatalf("expected rate 48000, got %d", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range got {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestEncodeBytesProducesRIFF(t *testing.T) {
	b, err := EncodeBytes([]int16{0, 100, -100, 32767}, 16000)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) < 44 || string(b[:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("not a WAV container: % x", b[:12])
	}
}

func TestFloat32Int16RoundTripClamps(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 2.0, -2.0}
	got := Float32ToInt16(in)
	if got[3] != 32767 {
		t.Fatalf("expected positive clamp to 32767, got %d", got[3])
	}
	if got[4] != -32767 {
		t.Fatalf("expected negative clamp, got %d", got[4])
	}
	back := Int16ToFloat32(got[:3])
	for i, v := range back {
		diff := v - in[i]
		if diff > 0.001 || diff < -0.001 {
			t.Fatalf("sample %d drifted: %f vs %f", i, v, in[i])
		}
	}
}

func TestNormalizePeak(t *testing.T) {
	out := NormalizePeak([]float32{0.1, -0.2, 0.05}, 0.9)
	if out[1] != -0.9 {
		t.Fatalf("expected peak at -0.9, got %f", out[1])
	}
	silent := NormalizePeak([]float32{0, 0}, 0.9)
	if silent[0] != 0 || silent[1] != 0 {
		t.Fatalf("silence must pass through unchanged")
	}
}
