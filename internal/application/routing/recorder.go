package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

// DecisionRecorder persiste la decisión de routing, la reserva de stock y la transición
// de la orden en una sola transacción.
type DecisionRecorder struct {
	txRunner inventory.TxRunner
	ledger   *inventory.LedgerUseCase
	now      func() time.Time
}

// NewDecisionRecorder construye el registrador.
func NewDecisionRecorder(txRunner inventory.TxRunner, ledger *inventory.LedgerUseCase) *DecisionRecorder {
	return &DecisionRecorder{txRunner: txRunner, ledger: ledger, now: time.Now}
}

// CommitInput decisión a confirmar para una orden leída con ExpectedVersion.
type CommitInput struct {
	OrderID         string
	ExpectedVersion int64
	Decision        *entity.RoutingDecision
	Actor           string
}

// Commit bloquea la orden, verifica estado y versión, bloquea en una sola pasada las claves
// de la reserva anterior y de la nueva, libera la anterior (re-ruteo), reserva las líneas en
// la ubicación elegida y pasa la orden a assigned.
// Devuelve domain.ErrInsufficientStock o domain.ErrConflict si perdió una carrera; en ese
// caso no se escribe nada y el llamador puede volver a puntuar.
func (r *DecisionRecorder) Commit(ctx context.Context, in CommitInput) (*entity.FulfillmentOrder, error) {
	if err := in.Decision.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	var out *entity.FulfillmentOrder
	err := r.txRunner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		orderRepo repository.FulfillmentOrderRepository,
	) error {
		o, err := lockOrder(ctx, orderRepo, in.OrderID, in.ExpectedVersion)
		if err != nil {
			return err
		}
		if o.Status != entity.StatusAnalyzing && o.Status != entity.StatusAssigned {
			return fmt.Errorf("%w: orden en %s", domain.ErrInvalidTransition, o.Status)
		}
		releasing := o.Status.HoldsStock() && o.ReservationRef != ""
		lines := o.LinesAt(in.Decision.Selected)

		// Claves de la reserva anterior y de la nueva, bloqueadas juntas en orden global.
		var keys []entity.StockKey
		if releasing {
			if keys, err = r.ledger.ReservedKeys(ctx, movRepo, o.ReservationRef); err != nil {
				return err
			}
		}
		for _, l := range lines {
			keys = append(keys, l.Key())
		}
		if err := stockRepo.LockKeys(ctx, keys); err != nil {
			return err
		}

		if releasing {
			if _, err := r.ledger.ReleaseInTx(ctx, movRepo, stockRepo, o.ReservationRef, in.Actor); err != nil {
				return err
			}
		}
		ref := entity.ReservationReference(o.ID, o.Version)
		if _, err := r.ledger.ReserveInTx(ctx, movRepo, stockRepo, lines, ref, in.Actor); err != nil {
			return err
		}
		if err := o.Assign(in.Decision, r.now().UTC()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidTransition, err)
		}
		o.ReservationRef = ref
		if err := orderRepo.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StartAnalysis mueve una orden pending a analyzing.
func (r *DecisionRecorder) StartAnalysis(ctx context.Context, orderID string, expectedVersion int64) (*entity.FulfillmentOrder, error) {
	return r.updateOrder(ctx, orderID, expectedVersion, func(o *entity.FulfillmentOrder) error {
		if err := o.TransitionTo(entity.StatusAnalyzing, r.now().UTC()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidTransition, err)
		}
		return nil
	})
}

// MarkBackordered deja la orden en analyzing marcada sin candidato disponible.
func (r *DecisionRecorder) MarkBackordered(ctx context.Context, orderID string, expectedVersion int64) (*entity.FulfillmentOrder, error) {
	return r.updateOrder(ctx, orderID, expectedVersion, func(o *entity.FulfillmentOrder) error {
		if o.Status != entity.StatusAnalyzing {
			return nil
		}
		o.Backordered = true
		return nil
	})
}

func (r *DecisionRecorder) updateOrder(
	ctx context.Context,
	orderID string,
	expectedVersion int64,
	mutate func(o *entity.FulfillmentOrder) error,
) (*entity.FulfillmentOrder, error) {
	var out *entity.FulfillmentOrder
	err := r.txRunner.Run(ctx, func(
		_ repository.StockMovementRepository,
		_ repository.StockRepository,
		orderRepo repository.FulfillmentOrderRepository,
	) error {
		o, err := lockOrder(ctx, orderRepo, orderID, expectedVersion)
		if err != nil {
			return err
		}
		if err := mutate(o); err != nil {
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
	return out, nil
}

func lockOrder(ctx context.Context, orderRepo repository.FulfillmentOrderRepository, id string, expectedVersion int64) (*entity.FulfillmentOrder, error) {
	o, err := orderRepo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
	}
	if o.Version != expectedVersion {
		return nil, fmt.Errorf("%w: orden %s versión %d, esperada %d", domain.ErrConflict, id, o.Version, expectedVersion)
	}
	return o, nil
}
