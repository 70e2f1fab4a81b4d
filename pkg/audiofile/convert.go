package audiofile

// Float32ToInt16 converts float32 samples in [-1, 1] to 16-bit PCM,
// clamping out-of-range values.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// Int16ToFloat32 converts 16-bit PCM to float32 samples in [-1, 1].
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// NormalizePeak scales samples so the loudest one sits at peak of full
// scale (0 < peak <= 1). Silence is returned unchanged.
func NormalizePeak(samples []float32, peak float32) []float32 {
	var max float32
	for _, s := range samples {
		if s > max {
			max = s
		} else if -s > max {
			max = -s
		}
	}
	if max == 0 {
		return samples
	}
	scale := peak / max
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s * scale
	}
	return out
}
