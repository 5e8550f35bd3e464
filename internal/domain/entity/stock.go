package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifica el stock de una variante en una ubicación.
type StockKey struct {
	VariantID  string
	LocationID string
}

// String representación estable de la clave, usada como nombre de lock.
func (k StockKey) String() string {
	return k.VariantID + "@" + k.LocationID
}

// Less orden total determinístico (variante, ubicación) para adquirir locks sin deadlocks.
func (k StockKey) Less(o StockKey) bool {
	if k.VariantID != o.VariantID {
		return k.VariantID < o.VariantID
	}
	return k.LocationID < o.LocationID
}

// SortKeys ordena las claves in-place con StockKey.Less.
func SortKeys(keys []StockKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// StockBalance saldo materializado de una clave (índice derivado del ledger).
// Se actualiza en la misma transacción que cada movimiento; el ledger sigue siendo la fuente de verdad.
type StockBalance struct {
	VariantID  string
	LocationID string
	Quantity   decimal.Decimal
	LastSeq    int64 // Seq del último movimiento aplicado
	UpdatedAt  time.Time
}

// Key devuelve la clave del saldo.
func (b *StockBalance) Key() StockKey {
	return StockKey{VariantID: b.VariantID, LocationID: b.LocationID}
}

// StockLine cantidad de una variante en una ubicación (reservas, traslados, compensaciones).
type StockLine struct {
	VariantID  string
	LocationID string
	Quantity   decimal.Decimal
}

// Key devuelve la clave de la línea.
func (l StockLine) Key() StockKey {
	return StockKey{VariantID: l.VariantID, LocationID: l.LocationID}
}
