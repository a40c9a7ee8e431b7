package signal

import (
	"fmt"
	"math"
)

// RollingZScore calcula el z-score del spread sobre una ventana fija.
// No está optimizado para ventanas grandes; con lookbacks de decenas o
// cientos de samples el recálculo por tick es despreciable frente a la red.
type RollingZScore struct {
	window int
	buf    []float64
}

// NewRollingZScore crea la ventana. window <= 1 es un error de programación
// (la varianza muestral necesita n > 1) y hace panic.
func NewRollingZScore(window int) *RollingZScore {
	if window <= 1 {
		panic(fmt.Sprintf("signal.NewRollingZScore: window must be > 1, got %d", window))
	}
	return &RollingZScore{
		window: window,
		buf:    make([]float64, 0, window),
	}
}

// Update añade un valor (desalojando el más viejo si la ventana está llena)
// y devuelve (z, mean, std). std es la desviación muestral (n-1); con datos
// insuficientes o std == 0, z = 0.
func (r *RollingZScore) Update(x float64) (z, mean, std float64) {
	if len(r.buf) == r.window {
		copy(r.buf, r.buf[1:])
		r.buf[len(r.buf)-1] = x
	} else {
		r.buf = append(r.buf, x)
	}

	n := float64(len(r.buf))
	var sum float64
	for _, v := range r.buf {
		sum += v
	}
	mean = sum / n

	if len(r.buf) > 1 {
		var acc float64
		for _, v := range r.buf {
			d := v - mean
			acc += d * d
		}
		std = math.Sqrt(math.Max(acc/(n-1), 0))
	}

	if std > 0 {
		z = (x - mean) / std
	}
	return z, mean, std
}

// Window devuelve una copia del buffer actual, del más viejo al más nuevo.
// La usa el estimador AR(1) para no compartir estado mutable.
func (r *RollingZScore) Window() []float64 {
	out := make([]float64, len(r.buf))
	copy(out, r.buf)
	return out
}

// EMA es una media móvil exponencial con alpha = 2/(window+1).
// El valor queda indefinido hasta el primer Update.
type EMA struct {
	alpha float64
	value float64
	seen  bool
}

// NewEMA crea la EMA. window <= 0 hace panic.
func NewEMA(window int) *EMA {
	if window <= 0 {
		panic(fmt.Sprintf("signal.NewEMA: window must be > 0, got %d", window))
	}
	return &EMA{alpha: 2.0 / (float64(window) + 1.0)}
}

// Update incorpora x y devuelve el valor actual. El primer valor inicializa.
func (e *EMA) Update(x float64) float64 {
	if !e.seen {
		e.value = x
		e.seen = true
		return e.value
	}
	e.value = e.alpha*x + (1-e.alpha)*e.value
	return e.value
}
