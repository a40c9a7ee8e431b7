package ports

import "github.com/alejandrodnm/spreadwatch/internal/domain"

// Notifier recibe cada sample emitido por un poller para salida humana.
type Notifier interface {
	// Notify imprime (o encola) una línea legible para el sample dado.
	Notify(s domain.Sample)
}
