package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/oms-router/internal/domain"
)

// Querier subconjunto común de *pgxpool.Pool y pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// rowScanner permite reutilizar el mismo scan para QueryRow y Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return hasCode(err, "23505")
}

// isCheckViolation verifica si un error es una violación de CHECK (23514).
func isCheckViolation(err error) bool {
	return hasCode(err, "23514")
}

// isSerializationFailure deadlock detectado (40P01) o fallo de serialización (40001).
// La transacción fue abortada y puede reintentarse completa.
func isSerializationFailure(err error) bool {
	return hasCode(err, "40P01") || hasCode(err, "40001")
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return strings.Contains(err.Error(), code)
}

// mapError traduce violaciones de constraints y abortos por concurrencia a errores de dominio.
func mapError(op string, err error) error {
	switch {
	case isCheckViolation(err):
		return fmt.Errorf("%s: %w", op, domain.ErrInsufficientStock)
	case isUniqueViolation(err), isSerializationFailure(err):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
