// Package score holds the normalization and decibel arithmetic shared by the
// view and noise engines. Every function is pure.
package score

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// Degenerate is the value MinMaxNormalize assigns when every input is equal.
const Degenerate = 0.5

// ln10over10 converts decibels to natural-log energy: 10^(L/10) = e^(L·ln10/10).
const ln10over10 = math.Ln10 / 10

// MinMaxNormalize scales values linearly into [0, 1]. When all values are
// equal every output is Degenerate. An empty input returns nil. Non-finite
// inputs are rejected.
func MinMaxNormalize(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, eris.Errorf("score: value %d is not finite", i)
		}
	}
	lo, hi := floats.Min(values), floats.Max(values)
	out := make([]float64, len(values))
	if hi == lo {
		for i := range out {
			out[i] = Degenerate
		}
		return out, nil
	}
	span := hi - lo
	for i, v := range values {
		out[i] = math.Max(0, math.Min(1, (v-lo)/span))
	}
	return out, nil
}

// Energy converts a level in dB to linear energy, 10^(L/10).
func Energy(level float64) float64 {
	return math.Pow(10, level/10)
}

// Level converts linear energy back to dB. Non-positive energy has no level
// and yields -Inf.
func Level(energy float64) float64 {
	if energy <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(energy)
}

// LogEnergySum combines decibel levels by summing their energies:
// 10·log10(Σ 10^(Lᵢ/10)). It works in the log domain so very loud or very
// quiet inputs neither overflow nor vanish. Levels of -Inf contribute
// nothing. An empty input or a NaN level is an error.
func LogEnergySum(levels []float64) (float64, error) {
	if len(levels) == 0 {
		return 0, eris.New("score: no levels to combine")
	}
	scaled := make([]float64, 0, len(levels))
	for i, l := range levels {
		if math.IsNaN(l) || math.IsInf(l, 1) {
			return 0, eris.Errorf("score: level %d is not a finite decibel value", i)
		}
		if math.IsInf(l, -1) {
			continue
		}
		scaled = append(scaled, l*ln10over10)
	}
	if len(scaled) == 0 {
		return math.Inf(-1), nil
	}
	return floats.LogSumExp(scaled) / ln10over10, nil
}
