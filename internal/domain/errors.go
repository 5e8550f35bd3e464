package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Ledger y reservas.
	ErrInsufficientStock = errors.New("stock insuficiente")

	// Routing de fulfillment.
	ErrNoCandidateLocation     = errors.New("ninguna ubicación puede cubrir la orden completa")
	ErrInvalidCoordinates      = errors.New("coordenadas inválidas")
	ErrInconsistentDecision    = errors.New("no se pudo persistir la decisión de routing")
	ErrInvalidTransition       = errors.New("transición de estado no permitida")
	ErrRoutingBusy             = errors.New("la orden ya está siendo ruteada")
	ErrCapabilitiesUnavailable = errors.New("capacidades de ubicaciones no disponibles")
)

// IsTransient indica si el error es una falla reintentable ("no se pudo calcular ahora"),
// a diferencia de un hecho de negocio como la falta de stock.
func IsTransient(err error) bool {
	return errors.Is(err, ErrInconsistentDecision) ||
		errors.Is(err, ErrRoutingBusy) ||
		errors.Is(err, ErrCapabilitiesUnavailable)
}
