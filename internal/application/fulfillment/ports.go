package fulfillment

import (
	"context"

	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// PickingSlipGenerator genera la hoja de picking (PDF) de una orden asignada.
type PickingSlipGenerator interface {
	GeneratePickingSlip(ctx context.Context, order *entity.FulfillmentOrder, location *entity.LocationCapability) ([]byte, error)
}
