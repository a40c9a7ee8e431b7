package panel

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
)

// Bin es un rango [Lo, Hi) de |z|; Hi nil significa sin techo.
type Bin struct {
	Lo float64  `json:"lo"`
	Hi *float64 `json:"hi"`
}

// BinStat es la distribución de duraciones de cruce para un bin: cuánto tardó
// |z| en volver a exit_z tras entrar en el rango.
type BinStat struct {
	Bin                   Bin      `json:"bin"`
	Samples               int      `json:"samples"`
	P25S                  *float64 `json:"p25_s"`
	MedianS               *float64 `json:"median_s"`
	P75S                  *float64 `json:"p75_s"`
	P90S                  *float64 `json:"p90_s"`
	ProbExitBeforeFunding *float64 `json:"prob_exit_before_funding"`
}

var defaultEdges = []float64{1.5, 2, 2.5, 3}

// ParseEdges convierte el CSV de edges en bins consecutivos; el último queda
// abierto por arriba. Entradas malformadas caen al default.
func ParseEdges(csv string) []Bin {
	var edges []float64
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			edges = nil
			break
		}
		edges = append(edges, v)
	}
	if len(edges) == 0 {
		edges = append([]float64(nil), defaultEdges...)
	}
	sort.Float64s(edges)

	bins := make([]Bin, len(edges))
	for i, lo := range edges {
		bins[i] = Bin{Lo: lo}
		if i+1 < len(edges) {
			hi := edges[i+1]
			bins[i].Hi = &hi
		}
	}
	return bins
}

// ComputeBins recorre la serie ascendente buscando, por bin, los cruces
// |z| entra en [lo, hi) → |z| vuelve a ≤ exitZ, y resume las duraciones con
// percentiles nearest-rank. Si el sample de entrada traía countdown de
// funding, acumula además la fracción de cruces que salieron antes del pago.
func ComputeBins(seq []domain.Sample, bins []Bin, exitZ float64) []BinStat {
	absz := make([]float64, len(seq))
	for i, s := range seq {
		absz[i] = math.Abs(s.Z)
	}

	stats := make([]BinStat, 0, len(bins))
	for _, bin := range bins {
		var durations []float64
		var beforeFunding []float64

		for i := 1; i < len(seq); {
			entered := absz[i-1] < bin.Lo && absz[i] >= bin.Lo &&
				(bin.Hi == nil || absz[i] < *bin.Hi)
			if !entered {
				i++
				continue
			}

			j, reached := i, false
			for ; j < len(seq); j++ {
				if absz[j] <= exitZ {
					reached = true
					break
				}
			}
			if reached {
				dtMS := float64(seq[j].TsMS - seq[i].TsMS)
				durations = append(durations, dtMS/1000)
				if c := seq[i].FrCountdownMS; c != nil {
					if dtMS <= *c {
						beforeFunding = append(beforeFunding, 1)
					} else {
						beforeFunding = append(beforeFunding, 0)
					}
				}
				i = j
			} else {
				i++
			}
		}

		sort.Float64s(durations)
		st := BinStat{
			Bin:     bin,
			Samples: len(durations),
			P25S:    percentile(durations, 0.25),
			MedianS: percentile(durations, 0.5),
			P75S:    percentile(durations, 0.75),
			P90S:    percentile(durations, 0.90),
		}
		if len(beforeFunding) > 0 {
			sum := 0.0
			for _, v := range beforeFunding {
				sum += v
			}
			st.ProbExitBeforeFunding = domain.Float64(sum / float64(len(beforeFunding)))
		}
		stats = append(stats, st)
	}
	return stats
}

// percentile aplica nearest-rank sobre una lista ya ordenada; nil si está
// vacía.
func percentile(sorted []float64, p float64) *float64 {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	k := int(math.RoundToEven(p * float64(n-1)))
	if k < 0 {
		k = 0
	}
	if k > n-1 {
		k = n - 1
	}
	return domain.Float64(sorted[k])
}
