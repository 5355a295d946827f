package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinMaxNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"spread", []float64{2, 4, 6}, []float64{0, 0.5, 1}},
		{"all equal", []float64{3, 3, 3, 3}, []float64{0.5, 0.5, 0.5, 0.5}},
		{"all zero", []float64{0, 0}, []float64{0.5, 0.5}},
		{"single", []float64{7}, []float64{0.5}},
		{"negative", []float64{-10, 0, 10}, []float64{0, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MinMaxNormalize(tt.in)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestMinMaxNormalize_EmptyAndInvalid(t *testing.T) {
	got, err := MinMaxNormalize(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = MinMaxNormalize([]float64{1, math.NaN()})
	assert.Error(t, err)
	_, err = MinMaxNormalize([]float64{math.Inf(1)})
	assert.Error(t, err)
}

func TestMinMaxNormalize_DoesNotMutateInput(t *testing.T) {
	in := []float64{5, 1, 3}
	_, err := MinMaxNormalize(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1, 3}, in)
}

func TestLogEnergySum_TwoEqualSources(t *testing.T) {
	got, err := LogEnergySum([]float64{60, 60})
	require.NoError(t, err)
	assert.InDelta(t, 63.0103, got, 1e-4)
}

func TestLogEnergySum_KIdenticalSources(t *testing.T) {
	for _, k := range []int{1, 2, 3, 10, 100} {
		levels := make([]float64, k)
		for i := range levels {
			levels[i] = 72.5
		}
		got, err := LogEnergySum(levels)
		require.NoError(t, err)
		assert.InDelta(t, 72.5+10*math.Log10(float64(k)), got, 1e-9, "k=%d", k)
	}
}

func TestLogEnergySum_DominantSource(t *testing.T) {
	got, err := LogEnergySum([]float64{90, 30})
	require.NoError(t, err)
	assert.InDelta(t, 90.0, got, 1e-5)
}

func TestLogEnergySum_ExtremeLevels(t *testing.T) {
	got, err := LogEnergySum([]float64{4000, 4000})
	require.NoError(t, err)
	assert.InDelta(t, 4000+10*math.Log10(2), got, 1e-6)
}

func TestLogEnergySum_Errors(t *testing.T) {
	_, err := LogEnergySum(nil)
	assert.Error(t, err)
	_, err = LogEnergySum([]float64{50, math.NaN()})
	assert.Error(t, err)

	got, err := LogEnergySum([]float64{math.Inf(-1)})
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, -1))
}

func TestEnergyLevelRoundTrip(t *testing.T) {
	assert.InDelta(t, 1e6, Energy(60), 1e-6)
	assert.InDelta(t, 60.0, Level(Energy(60)), 1e-12)
	assert.True(t, math.IsInf(Level(0), -1))
}
