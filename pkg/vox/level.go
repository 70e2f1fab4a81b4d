package vox

import "math"

// SilenceFloorDBFS is the level reported for blocks whose RMS amplitude is
// below the measurable floor, keeping the logarithm away from its
// singularity.
const SilenceFloorDBFS = -100.0

const rmsFloor = 1e-10

// LevelDBFS computes the RMS level of a float32 block in dBFS. The
// accumulation runs in float64 so long blocks do not lose precision.
func LevelDBFS(block []float32) float64 {
	if len(block) == 0 {
		return SilenceFloorDBFS
	}
	var sum float64
	for _, s := range block {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(block)))
	if rms < rmsFloor {
		return SilenceFloorDBFS
	}
	return 20 * math.Log10(rms)
}
