package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

// LedgerUseCase ledger de stock: registro de movimientos, saldo actual y reservas atómicas.
// Toda escritura se hace dentro de TxRunner.Run; el saldo materializado se actualiza en la
// misma transacción que el movimiento.
type LedgerUseCase struct {
	txRunner  TxRunner
	movRepo   repository.StockMovementRepository
	stockRepo repository.StockRepository
	now       func() time.Time
}

// NewLedgerUseCase construye el caso de uso. movRepo y stockRepo se usan solo para lecturas.
func NewLedgerUseCase(
	txRunner TxRunner,
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
) *LedgerUseCase {
	return &LedgerUseCase{
		txRunner:  txRunner,
		movRepo:   movRepo,
		stockRepo: stockRepo,
		now:       time.Now,
	}
}

// AppendInput entrada para registrar un movimiento.
type AppendInput struct {
	VariantID  string
	LocationID string
	Delta      decimal.Decimal // con signo
	Kind       entity.MovementKind
	Reference  string
	RecordedBy string
}

func (in AppendInput) validate() error {
	if strings.TrimSpace(in.VariantID) == "" || strings.TrimSpace(in.LocationID) == "" {
		return fmt.Errorf("%w: variante y ubicación son obligatorias", domain.ErrInvalidInput)
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, in.Kind)
	}
	if !in.Kind.AcceptsDelta(in.Delta) {
		return fmt.Errorf("%w: delta %s incompatible con %s", domain.ErrInvalidInput, in.Delta, in.Kind)
	}
	return nil
}

// Append registra un movimiento. Solo valida la forma de la entrada; el saldo resultante
// no se consulta aquí y el almacenamiento rechaza un saldo negativo con ErrInsufficientStock.
func (uc *LedgerUseCase) Append(ctx context.Context, in AppendInput) (*entity.StockMovement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *entity.StockMovement
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		_ repository.FulfillmentOrderRepository,
	) error {
		m, err := uc.AppendInTx(ctx, movRepo, stockRepo, in)
		out = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendInTx registra el movimiento usando los repositorios de la transacción del llamador.
func (uc *LedgerUseCase) AppendInTx(
	ctx context.Context,
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
	in AppendInput,
) (*entity.StockMovement, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	m := &entity.StockMovement{
		ID:         uuid.New().String(),
		VariantID:  in.VariantID,
		LocationID: in.LocationID,
		Delta:      in.Delta,
		Kind:       in.Kind,
		Reference:  in.Reference,
		OccurredAt: uc.now().UTC(),
		RecordedBy: in.RecordedBy,
	}
	if err := movRepo.Append(ctx, m); err != nil {
		return nil, err
	}
	if _, err := stockRepo.AddDelta(ctx, m.Key(), m.Delta, m.Seq); err != nil {
		return nil, err
	}
	return m, nil
}

// CurrentQuantity saldo confirmado de la clave (lectura O(1) sobre el saldo materializado).
func (uc *LedgerUseCase) CurrentQuantity(ctx context.Context, key entity.StockKey) (decimal.Decimal, error) {
	b, err := uc.stockRepo.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Quantity, nil
}

// Balances saldos de las variantes en todas las ubicaciones.
func (uc *LedgerUseCase) Balances(ctx context.Context, variantIDs []string) ([]*entity.StockBalance, error) {
	if len(variantIDs) == 0 {
		return nil, fmt.Errorf("%w: al menos una variante", domain.ErrInvalidInput)
	}
	return uc.stockRepo.ListByVariants(ctx, variantIDs)
}

// Reserve verifica y descuenta stock de una clave como una sola unidad atómica.
// Si no alcanza devuelve ErrInsufficientStock y no escribe nada.
func (uc *LedgerUseCase) Reserve(ctx context.Context, line entity.StockLine, reference, actor string) (*entity.StockMovement, error) {
	movs, err := uc.ReserveLines(ctx, []entity.StockLine{line}, reference, actor)
	if err != nil {
		return nil, err
	}
	return movs[0], nil
}

// ReserveLines reserva todas las líneas o ninguna (una venta nunca se confirma parcialmente).
func (uc *LedgerUseCase) ReserveLines(ctx context.Context, lines []entity.StockLine, reference, actor string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		_ repository.FulfillmentOrderRepository,
	) error {
		movs, err := uc.ReserveInTx(ctx, movRepo, stockRepo, lines, reference, actor)
		out = movs
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReserveInTx bloquea las claves en orden (variante, ubicación), verifica todas y recién
// después escribe un movimiento sale por clave. Las líneas repetidas se suman.
func (uc *LedgerUseCase) ReserveInTx(
	ctx context.Context,
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
	lines []entity.StockLine,
	reference, actor string,
) ([]*entity.StockMovement, error) {
	keys, qty, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		b, err := stockRepo.GetForUpdate(ctx, k)
		if err != nil {
			return nil, err
		}
		if b.Quantity.LessThan(qty[k]) {
			return nil, fmt.Errorf("%w: %s disponible %s, solicitado %s",
				domain.ErrInsufficientStock, k, b.Quantity, qty[k])
		}
	}

	out := make([]*entity.StockMovement, 0, len(keys))
	for _, k := range keys {
		m, err := uc.AppendInTx(ctx, movRepo, stockRepo, AppendInput{
			VariantID:  k.VariantID,
			LocationID: k.LocationID,
			Delta:      qty[k].Neg(),
			Kind:       entity.MovementSale,
			Reference:  reference,
			RecordedBy: actor,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func mergeLines(lines []entity.StockLine) ([]entity.StockKey, map[entity.StockKey]decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: sin líneas para reservar", domain.ErrInvalidInput)
	}
	qty := make(map[entity.StockKey]decimal.Decimal, len(lines))
	keys := make([]entity.StockKey, 0, len(lines))
	for _, l := range lines {
		if l.VariantID == "" || l.LocationID == "" || !l.Quantity.IsPositive() {
			return nil, nil, fmt.Errorf("%w: línea %s con cantidad %s", domain.ErrInvalidInput, l.Key(), l.Quantity)
		}
		k := l.Key()
		if _, seen := qty[k]; !seen {
			keys = append(keys, k)
		}
		qty[k] = qty[k].Add(l.Quantity)
	}
	entity.SortKeys(keys)
	return keys, qty, nil
}

// TransferInput traslado de una variante entre dos ubicaciones.
type TransferInput struct {
	VariantID      string
	FromLocationID string
	ToLocationID   string
	Quantity       decimal.Decimal
	Reference      string
	RecordedBy     string
}

// Transfer mueve stock entre ubicaciones: transfer_out y transfer_in en la misma transacción.
func (uc *LedgerUseCase) Transfer(ctx context.Context, in TransferInput) ([]*entity.StockMovement, error) {
	if in.VariantID == "" || in.FromLocationID == "" || in.ToLocationID == "" {
		return nil, fmt.Errorf("%w: variante y ubicaciones son obligatorias", domain.ErrInvalidInput)
	}
	if in.FromLocationID == in.ToLocationID || !in.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: traslado inválido", domain.ErrInvalidInput)
	}
	if in.Reference == "" {
		in.Reference = "transfer:" + uuid.New().String()
	}
	from := entity.StockKey{VariantID: in.VariantID, LocationID: in.FromLocationID}
	to := entity.StockKey{VariantID: in.VariantID, LocationID: in.ToLocationID}
	keys := []entity.StockKey{from, to}
	entity.SortKeys(keys)

	var out []*entity.StockMovement
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		_ repository.FulfillmentOrderRepository,
	) error {
		for _, k := range keys {
			b, err := stockRepo.GetForUpdate(ctx, k)
			if err != nil {
				return err
			}
			if k == from && b.Quantity.LessThan(in.Quantity) {
				return fmt.Errorf("%w: %s disponible %s", domain.ErrInsufficientStock, k, b.Quantity)
			}
		}
		outMov, err := uc.AppendInTx(ctx, movRepo, stockRepo, AppendInput{
			VariantID: in.VariantID, LocationID: in.FromLocationID,
			Delta: in.Quantity.Neg(), Kind: entity.MovementTransferOut,
			Reference: in.Reference, RecordedBy: in.RecordedBy,
		})
		if err != nil {
			return err
		}
		inMov, err := uc.AppendInTx(ctx, movRepo, stockRepo, AppendInput{
			VariantID: in.VariantID, LocationID: in.ToLocationID,
			Delta: in.Quantity, Kind: entity.MovementTransferIn,
			Reference: in.Reference, RecordedBy: in.RecordedBy,
		})
		if err != nil {
			return err
		}
		out = []*entity.StockMovement{outMov, inMov}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompensationReference referencia de los movimientos que revierten una reserva.
func CompensationReference(reference string) string {
	return reference + ":cancel"
}

// Release revierte las reservas (movimientos sale) de una referencia con movimientos
// adjustment_in compensatorios. Es idempotente: una referencia ya compensada no se toca.
func (uc *LedgerUseCase) Release(ctx context.Context, reference, actor string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		_ repository.FulfillmentOrderRepository,
	) error {
		movs, err := uc.ReleaseInTx(ctx, movRepo, stockRepo, reference, actor)
		out = movs
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseInTx igual que Release dentro de la transacción del llamador.
func (uc *LedgerUseCase) ReleaseInTx(
	ctx context.Context,
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
	reference, actor string,
) ([]*entity.StockMovement, error) {
	if reference == "" {
		return nil, fmt.Errorf("%w: referencia obligatoria", domain.ErrInvalidInput)
	}
	held, err := movRepo.ListByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	reserved := make(map[entity.StockKey]decimal.Decimal)
	keys := make([]entity.StockKey, 0)
	for _, m := range held {
		if m.Kind != entity.MovementSale {
			continue
		}
		k := m.Key()
		if _, seen := reserved[k]; !seen {
			keys = append(keys, k)
		}
		reserved[k] = reserved[k].Add(m.Delta.Neg())
	}
	entity.SortKeys(keys)
	for _, k := range keys {
		if _, err := stockRepo.GetForUpdate(ctx, k); err != nil {
			return nil, err
		}
	}

	// Con las claves bloqueadas, una compensación concurrente ya está confirmada o no existe.
	compRef := CompensationReference(reference)
	done, err := movRepo.ListByReference(ctx, compRef)
	if err != nil {
		return nil, err
	}
	if len(done) > 0 {
		return []*entity.StockMovement{}, nil
	}

	out := make([]*entity.StockMovement, 0, len(keys))
	for _, k := range keys {
		if !reserved[k].IsPositive() {
			continue
		}
		m, err := uc.AppendInTx(ctx, movRepo, stockRepo, AppendInput{
			VariantID:  k.VariantID,
			LocationID: k.LocationID,
			Delta:      reserved[k],
			Kind:       entity.MovementAdjustmentIn,
			Reference:  compRef,
			RecordedBy: actor,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ReservedKeys claves con reservas (movimientos sale) bajo la referencia, ordenadas.
func (uc *LedgerUseCase) ReservedKeys(ctx context.Context, movRepo repository.StockMovementRepository, reference string) ([]entity.StockKey, error) {
	if reference == "" {
		return nil, nil
	}
	held, err := movRepo.ListByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	seen := make(map[entity.StockKey]struct{}, len(held))
	keys := make([]entity.StockKey, 0, len(held))
	for _, m := range held {
		if m.Kind != entity.MovementSale {
			continue
		}
		if _, ok := seen[m.Key()]; !ok {
			seen[m.Key()] = struct{}{}
			keys = append(keys, m.Key())
		}
	}
	entity.SortKeys(keys)
	return keys, nil
}

// History movimientos de una clave, del más reciente al más antiguo.
func (uc *LedgerUseCase) History(ctx context.Context, key entity.StockKey, limit, offset int) ([]*entity.StockMovement, error) {
	if key.VariantID == "" || key.LocationID == "" {
		return nil, fmt.Errorf("%w: variante y ubicación son obligatorias", domain.ErrInvalidInput)
	}
	return uc.movRepo.ListByKey(ctx, key, limit, offset)
}

// ByReference movimientos asociados a una referencia.
func (uc *LedgerUseCase) ByReference(ctx context.Context, reference string) ([]*entity.StockMovement, error) {
	return uc.movRepo.ListByReference(ctx, reference)
}

// Reconciliation resultado de comparar el saldo materializado contra el ledger.
type Reconciliation struct {
	Key        entity.StockKey
	Balance    decimal.Decimal
	LedgerSum  decimal.Decimal
	Consistent bool
}

// Reconcile suma el ledger completo de la clave y lo compara con el saldo materializado.
// Ambas lecturas se hacen en una transacción con la clave bloqueada, así una escritura
// concurrente no produce una diferencia aparente.
func (uc *LedgerUseCase) Reconcile(ctx context.Context, key entity.StockKey) (*Reconciliation, error) {
	if key.VariantID == "" || key.LocationID == "" {
		return nil, fmt.Errorf("%w: variante y ubicación son obligatorias", domain.ErrInvalidInput)
	}
	var out *Reconciliation
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		_ repository.FulfillmentOrderRepository,
	) error {
		b, err := stockRepo.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		sum, err := movRepo.SumByKey(ctx, key)
		if err != nil {
			return err
		}
		out = &Reconciliation{
			Key:        key,
			Balance:    b.Quantity,
			LedgerSum:  sum,
			Consistent: b.Quantity.Equal(sum),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
