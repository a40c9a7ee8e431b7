package signal

import "math"

// minReversionSamples es el mínimo de puntos para que la regresión AR(1)
// tenga algo de sentido.
const minReversionSamples = 10

// EstimateReversion ajusta un AR(1) por OLS sobre el buffer del spread y
// devuelve (half_life_s, t_exit_s), ambos nil cuando el ajuste no es válido:
// pocos puntos, denominador cero, o phi fuera de (0, 0.9999).
//
// half_life_s = ln2 / (-ln phi) muestras, escalado por el periodo de tick.
// t_exit_s es el tiempo esperado hasta |z| <= exitZ, 0 si ya estamos dentro
// del umbral o exitZ <= 0.
func EstimateReversion(window []float64, currentZ, exitZ float64, pollMS int) (halfLifeS, tExitS *float64) {
	n := len(window)
	if n < minReversionSamples {
		return nil, nil
	}

	xs := window[:n-1]
	ys := window[1:]

	var meanX, meanY float64
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(len(xs))
	meanY /= float64(len(ys))

	var num, den float64
	for i := range xs {
		num += (xs[i] - meanX) * (ys[i] - meanY)
		den += (xs[i] - meanX) * (xs[i] - meanX)
	}
	if den == 0 {
		return nil, nil
	}

	phi := num / den
	if phi <= 0 || phi >= 0.9999 {
		return nil, nil
	}

	halfLifeSamples := math.Ln2 / -math.Log(phi)
	hl := halfLifeSamples * float64(pollMS) / 1000.0

	var te float64
	if exitZ > 0 && math.Abs(currentZ) > exitZ {
		k := math.Ln2 / hl
		te = math.Log(math.Abs(currentZ)/exitZ) / k
	}
	return &hl, &te
}
