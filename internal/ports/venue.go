package ports

import (
	"context"
	"errors"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
)

// ErrNoBook indica que el venue no devolvió ni bids ni asks para el mercado.
// Para MidPrice es un fallo del tick; para el resto degrada el campo a nil.
var ErrNoBook = errors.New("no bids or asks for market")

// Venue es la capacidad mínima que el core necesita de cada exchange.
// Todas las llamadas pasan por el rate limiter antes de tocar la red.
type Venue interface {
	// Name devuelve el tag del venue ("aster", "lighter").
	Name() string

	// MidPrice devuelve (best_bid+best_ask)/2, o el lado disponible si solo
	// hay uno. Devuelve ErrNoBook si el libro está vacío.
	MidPrice(ctx context.Context, leg domain.Market) (float64, error)

	// OrderBookSummary resume los N mejores niveles de ambos lados.
	OrderBookSummary(ctx context.Context, leg domain.Market, levels int) (domain.BookSummary, error)

	// OrderBookLevels devuelve los N mejores niveles crudos, índice 0 = mejor.
	OrderBookLevels(ctx context.Context, leg domain.Market, levels int) (domain.BookLevels, error)

	// Stats24h devuelve el volumen quote de las últimas 24h.
	Stats24h(ctx context.Context, leg domain.Market) (domain.DayStats, error)

	// Fees devuelve maker/taker en fracción; cualquiera puede faltar.
	Fees(ctx context.Context, leg domain.Market) (domain.FeeSchedule, error)

	// FundingInfo devuelve el funding rate y el próximo pago en ms epoch.
	// Si el venue no lo publica, el adapter aproxima el próximo pago alineado
	// a los límites de ciclo: next = ((now/P)+1)*P con P = cycle_hours*3600*1000.
	FundingInfo(ctx context.Context, leg domain.Market) (domain.FundingInfo, error)

	// Close cierra la sesión HTTP compartida del adapter.
	Close() error
}
