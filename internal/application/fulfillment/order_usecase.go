// Package fulfillment casos de uso de órdenes de fulfillment: alta, avance de estados,
// cancelación con compensación de stock, consultas y hoja de picking.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

// OrderUseCase ciclo de vida de la orden fuera del ruteo.
type OrderUseCase struct {
	txRunner  inventory.TxRunner
	orders    repository.FulfillmentOrderRepository
	locations repository.LocationCapabilityRepository
	ledger    *inventory.LedgerUseCase
	slips     PickingSlipGenerator
	log       zerolog.Logger
	now       func() time.Time
}

// NewOrderUseCase construye el caso de uso.
func NewOrderUseCase(
	txRunner inventory.TxRunner,
	orders repository.FulfillmentOrderRepository,
	locations repository.LocationCapabilityRepository,
	ledger *inventory.LedgerUseCase,
	slips PickingSlipGenerator,
	log zerolog.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		txRunner:  txRunner,
		orders:    orders,
		locations: locations,
		ledger:    ledger,
		slips:     slips,
		log:       log,
		now:       time.Now,
	}
}

// CreateOrderInput datos de alta de una orden.
type CreateOrderInput struct {
	TenantID        string
	Channel         string
	Items           []entity.OrderItem
	ShippingAddress entity.ShippingAddress
	ShippingMethod  string
	ShippingFee     decimal.Decimal
}

// CreateOrder valida la orden y la registra en pending con número ORD-<año>-<correlativo>.
func (uc *OrderUseCase) CreateOrder(ctx context.Context, in CreateOrderInput) (*entity.FulfillmentOrder, error) {
	if in.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant obligatorio", domain.ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: la orden no tiene ítems", domain.ErrInvalidInput)
	}
	method, ok := entity.ParseShippingMethod(in.ShippingMethod)
	if !ok {
		return nil, fmt.Errorf("%w: método de envío %q", domain.ErrInvalidInput, in.ShippingMethod)
	}
	if c := in.ShippingAddress.Coordinates; c != nil && !c.Valid() {
		return nil, fmt.Errorf("%w: lat %v lng %v", domain.ErrInvalidCoordinates, c.Lat, c.Lng)
	}
	if in.ShippingFee.IsNegative() {
		return nil, fmt.Errorf("%w: costo de envío negativo", domain.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(in.Items))
	subtotal := decimal.Zero
	for _, it := range in.Items {
		if it.VariantID == "" || !it.Quantity.IsPositive() || it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: ítem %q inválido", domain.ErrInvalidInput, it.VariantID)
		}
		if _, dup := seen[it.VariantID]; dup {
			return nil, fmt.Errorf("%w: variante %s repetida", domain.ErrInvalidInput, it.VariantID)
		}
		seen[it.VariantID] = struct{}{}
		subtotal = subtotal.Add(it.Quantity.Mul(it.UnitPrice))
	}

	now := uc.now().UTC()
	seq, err := uc.orders.NextOrderNumber(ctx, in.TenantID, now.Year())
	if err != nil {
		return nil, err
	}
	channel := in.Channel
	if channel == "" {
		channel = "online"
	}
	o := &entity.FulfillmentOrder{
		ID:              uuid.New().String(),
		TenantID:        in.TenantID,
		Number:          fmt.Sprintf("ORD-%d-%05d", now.Year(), seq),
		Channel:         channel,
		Items:           in.Items,
		ShippingAddress: in.ShippingAddress,
		ShippingMethod:  method,
		Subtotal:        subtotal,
		Total:           subtotal.Add(in.ShippingFee),
		Status:          entity.StatusPending,
		CreatedAt:       now,
	}
	if err := uc.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	uc.log.Info().Str("order_id", o.ID).Str("tenant_id", o.TenantID).Str("number", o.Number).Msg("orden creada")
	return o, nil
}

// Get devuelve la orden del tenant.
func (uc *OrderUseCase) Get(ctx context.Context, tenantID, orderID string) (*entity.FulfillmentOrder, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// List órdenes del tenant por estado (vacío = todas).
func (uc *OrderUseCase) List(ctx context.Context, tenantID string, status entity.FulfillmentStatus, limit, offset int) ([]*entity.FulfillmentOrder, error) {
	return uc.orders.ListByStatus(ctx, tenantID, status, limit, offset)
}

// Advance avanza la orden por assigned → preparing → shipped → delivered.
// analyzing y assigned solo los fija el router; cancelled solo Cancel.
func (uc *OrderUseCase) Advance(ctx context.Context, tenantID, orderID string, next entity.FulfillmentStatus) (*entity.FulfillmentOrder, error) {
	switch next {
	case entity.StatusPreparing, entity.StatusShipped, entity.StatusDelivered:
	default:
		return nil, fmt.Errorf("%w: no se puede avanzar manualmente a %q", domain.ErrInvalidTransition, next)
	}
	return uc.mutate(ctx, tenantID, orderID, func(
		_ repository.StockMovementRepository,
		_ repository.StockRepository,
		o *entity.FulfillmentOrder,
	) error {
		if err := o.TransitionTo(next, uc.now().UTC()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidTransition, err)
		}
		return nil
	})
}

// Cancel cancela la orden. Si tenía stock reservado se compensa con movimientos
// adjustment_in en la misma transacción que el cambio de estado.
func (uc *OrderUseCase) Cancel(ctx context.Context, tenantID, orderID, actor string) (*entity.FulfillmentOrder, error) {
	return uc.mutate(ctx, tenantID, orderID, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		o *entity.FulfillmentOrder,
	) error {
		if !o.Status.Cancellable() {
			return fmt.Errorf("%w: no se puede cancelar una orden en %s", domain.ErrInvalidTransition, o.Status)
		}
		if o.Status.HoldsStock() && o.ReservationRef != "" {
			if _, err := uc.ledger.ReleaseInTx(ctx, movRepo, stockRepo, o.ReservationRef, actor); err != nil {
				return err
			}
		}
		if err := o.TransitionTo(entity.StatusCancelled, uc.now().UTC()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidTransition, err)
		}
		return nil
	})
}

func (uc *OrderUseCase) mutate(
	ctx context.Context,
	tenantID, orderID string,
	fn func(movRepo repository.StockMovementRepository, stockRepo repository.StockRepository, o *entity.FulfillmentOrder) error,
) (*entity.FulfillmentOrder, error) {
	var out *entity.FulfillmentOrder
	err := uc.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		orderRepo repository.FulfillmentOrderRepository,
	) error {
		o, err := orderRepo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil || o.TenantID != tenantID {
			return domain.ErrNotFound
		}
		if err := fn(movRepo, stockRepo, o); err != nil {
			return err
		}
		if err := orderRepo.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("order_id", out.ID).Str("status", string(out.Status)).Msg("estado de orden actualizado")
	return out, nil
}

// PickingSlip genera el PDF de picking de una orden asignada o en preparación.
func (uc *OrderUseCase) PickingSlip(ctx context.Context, tenantID, orderID string) (pdf []byte, filename string, err error) {
	o, err := uc.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, "", err
	}
	if !o.Status.HoldsStock() || o.AssignedLocationID == nil {
		return nil, "", fmt.Errorf("%w: la orden está en %s, sin ubicación asignada para preparar",
			domain.ErrInvalidTransition, o.Status)
	}
	loc, err := uc.locations.GetByID(ctx, *o.AssignedLocationID)
	if err != nil {
		return nil, "", err
	}
	if loc == nil {
		loc = &entity.LocationCapability{LocationID: *o.AssignedLocationID, Name: *o.AssignedLocationID}
	}
	pdf, err = uc.slips.GeneratePickingSlip(ctx, o, loc)
	if err != nil {
		return nil, "", fmt.Errorf("hoja de picking: %w", err)
	}
	return pdf, fmt.Sprintf("picking_%s.pdf", o.Number), nil
}
