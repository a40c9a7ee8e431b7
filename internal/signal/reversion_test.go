package signal_test

import (
	"testing"

	"github.com/alejandrodnm/spreadwatch/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// geometricSeries devuelve n puntos de x_{t+1} = ratio * x_t partiendo de 1.
func geometricSeries(n int, ratio float64) []float64 {
	out := make([]float64, n)
	v := 1.0
	for i := range out {
		out[i] = v
		v *= ratio
	}
	return out
}

func TestEstimateReversion_GeometricDecay(t *testing.T) {
	// phi = 0.5 exacto → half-life = 1 muestra = poll_ms/1000 segundos.
	buf := geometricSeries(10, 0.5)

	hl, te := signal.EstimateReversion(buf, 2.0, 0.5, 1000)
	require.NotNil(t, hl)
	require.NotNil(t, te)

	assert.InDelta(t, 1.0, *hl, 1e-9)
	// t_exit = log2(|z|/exit_z) * half_life = log2(4) * 1 = 2s.
	assert.InDelta(t, 2.0, *te, 1e-9)
}

func TestEstimateReversion_TooFewSamples(t *testing.T) {
	hl, te := signal.EstimateReversion(geometricSeries(9, 0.5), 2.0, 0.5, 1000)
	assert.Nil(t, hl)
	assert.Nil(t, te)
}

func TestEstimateReversion_InvalidPhi(t *testing.T) {
	// Serie creciente: phi >= 0.9999 (de hecho > 1) → sin estimación.
	growing := geometricSeries(12, 1.5)
	hl, te := signal.EstimateReversion(growing, 2.0, 0.5, 1000)
	assert.Nil(t, hl)
	assert.Nil(t, te)

	// Serie alternante: phi negativo.
	alt := make([]float64, 12)
	for i := range alt {
		if i%2 == 0 {
			alt[i] = 1
		} else {
			alt[i] = -1
		}
	}
	hl, te = signal.EstimateReversion(alt, 2.0, 0.5, 1000)
	assert.Nil(t, hl)
	assert.Nil(t, te)
}

func TestEstimateReversion_ConstantSeries(t *testing.T) {
	// Denominador cero → sin estimación.
	flat := make([]float64, 15)
	for i := range flat {
		flat[i] = 3.0
	}
	hl, te := signal.EstimateReversion(flat, 2.0, 0.5, 1000)
	assert.Nil(t, hl)
	assert.Nil(t, te)
}

func TestEstimateReversion_AlreadyInsideThreshold(t *testing.T) {
	buf := geometricSeries(10, 0.5)

	hl, te := signal.EstimateReversion(buf, 0.3, 0.5, 1000)
	require.NotNil(t, hl)
	require.NotNil(t, te)
	assert.Zero(t, *te, "|z| <= exit_z se clava a 0")

	// exit_z <= 0 también se clava a 0.
	_, te = signal.EstimateReversion(buf, 2.0, 0, 1000)
	require.NotNil(t, te)
	assert.Zero(t, *te)
}
