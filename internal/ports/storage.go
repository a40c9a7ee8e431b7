package ports

import (
	"context"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
)

// SampleStore persiste los samples del monitor en orden de inserción.
// Append-only: nunca se actualizan ni borran filas de samples.
type SampleStore interface {
	// Insert persiste un sample. Commit por escritura; el ritmo esperado
	// es de pocos samples por segundo y por par.
	Insert(ctx context.Context, s domain.Sample) error

	// Spreads devuelve hasta limit samples del par, el más nuevo primero.
	Spreads(ctx context.Context, pair string, limit int) ([]domain.Sample, error)

	// Pairs devuelve los nombres de par distintos, ordenados.
	Pairs(ctx context.Context) ([]string, error)

	// LatestAll devuelve el sample más reciente de cada par.
	LatestAll(ctx context.Context) ([]domain.Sample, error)

	// AdminGet devuelve el blob JSON de config admin, o nil si no existe.
	AdminGet(ctx context.Context) (map[string]any, error)

	// AdminSet crea o reemplaza el blob JSON de config admin (fila única).
	AdminSet(ctx context.Context, cfg map[string]any) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
