package http

import (
	"github.com/jhoicas/oms-router/internal/application/dto"
	"github.com/jhoicas/oms-router/internal/domain/entity"
)

func toOrderResponse(o *entity.FulfillmentOrder) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.OrderItemResponse{VariantID: it.VariantID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return dto.OrderResponse{
		ID:                 o.ID,
		Number:             o.Number,
		Channel:            o.Channel,
		Status:             string(o.Status),
		Backordered:        o.Backordered,
		Items:              items,
		ShippingAddress:    toAddressDTO(o.ShippingAddress),
		ShippingMethod:     string(o.ShippingMethod),
		Subtotal:           o.Subtotal,
		Total:              o.Total,
		AssignedLocationID: o.AssignedLocationID,
		Version:            o.Version,
		CreatedAt:          o.CreatedAt,
		AssignedAt:         o.AssignedAt,
		PreparingAt:        o.PreparingAt,
		ShippedAt:          o.ShippedAt,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
	}
}

func toOrderRoutingResponse(o *entity.FulfillmentOrder) dto.OrderRoutingResponse {
	return dto.OrderRoutingResponse{
		OrderID:            o.ID,
		Status:             string(o.Status),
		Backordered:        o.Backordered,
		AssignedLocationID: o.AssignedLocationID,
		Decision:           toDecisionResponse(o.RoutingDecision),
	}
}

func toDecisionResponse(d *entity.RoutingDecision) *dto.RoutingDecisionResponse {
	if d == nil {
		return nil
	}
	cands := make([]dto.CandidateScoreDTO, 0, len(d.Candidates))
	for _, c := range d.Candidates {
		cands = append(cands, dto.CandidateScoreDTO(c))
	}
	return &dto.RoutingDecisionResponse{
		AlgorithmVersion:  d.AlgorithmVersion,
		Timestamp:         d.Timestamp,
		Selected:          d.Selected,
		SelectedName:      d.SelectedName,
		Reason:            string(d.Reason),
		ReasonDescription: d.Reason.Description(),
		Weights:           dto.ScoringWeightsDTO(d.Weights),
		Candidates:        cands,
	}
}

func toAddressDTO(a entity.ShippingAddress) dto.ShippingAddressDTO {
	return dto.ShippingAddressDTO{
		Name:        a.Name,
		Street:      a.Street,
		City:        a.City,
		Province:    a.Province,
		PostalCode:  a.PostalCode,
		Phone:       a.Phone,
		Coordinates: toCoordinatesDTO(a.Coordinates),
	}
}

func fromAddressDTO(a dto.ShippingAddressDTO) entity.ShippingAddress {
	return entity.ShippingAddress{
		Name:        a.Name,
		Street:      a.Street,
		City:        a.City,
		Province:    a.Province,
		PostalCode:  a.PostalCode,
		Phone:       a.Phone,
		Coordinates: fromCoordinatesDTO(a.Coordinates),
	}
}

func fromItemsDTO(in []dto.OrderItemRequest) []entity.OrderItem {
	out := make([]entity.OrderItem, 0, len(in))
	for _, it := range in {
		out = append(out, entity.OrderItem{VariantID: it.VariantID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return out
}

func toCoordinatesDTO(c *entity.Coordinates) *dto.CoordinatesDTO {
	if c == nil {
		return nil
	}
	return &dto.CoordinatesDTO{Lat: c.Lat, Lng: c.Lng}
}

func fromCoordinatesDTO(c *dto.CoordinatesDTO) *entity.Coordinates {
	if c == nil {
		return nil
	}
	return &entity.Coordinates{Lat: c.Lat, Lng: c.Lng}
}

func toMovementResponse(m *entity.StockMovement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:         m.ID,
		Seq:        m.Seq,
		VariantID:  m.VariantID,
		LocationID: m.LocationID,
		Delta:      m.Delta,
		Kind:       string(m.Kind),
		Reference:  m.Reference,
		OccurredAt: m.OccurredAt,
		RecordedBy: m.RecordedBy,
	}
}

func toMovementResponses(in []*entity.StockMovement) []dto.MovementResponse {
	out := make([]dto.MovementResponse, 0, len(in))
	for _, m := range in {
		out = append(out, toMovementResponse(m))
	}
	return out
}

func toLocationResponse(c *entity.LocationCapability) dto.LocationResponse {
	return dto.LocationResponse{
		LocationID:       c.LocationID,
		Name:             c.Name,
		Active:           c.Active,
		CanDispatch:      c.CanDispatch,
		CanReceivePickup: c.CanReceivePickup,
		SupportsStandard: c.SupportsStandard,
		SupportsExpress:  c.SupportsExpress,
		SupportsSameDay:  c.SupportsSameDay,
		Priority:         c.Priority,
		PickingCost:      c.PickingCost,
		PackingCost:      c.PackingCost,
		Coordinates:      toCoordinatesDTO(c.Coordinates),
		UpdatedAt:        c.UpdatedAt,
	}
}

func toSettingsResponse(s *entity.RoutingSettings) dto.RoutingSettingsResponse {
	out := dto.RoutingSettingsResponse{
		Weights:          dto.ScoringWeightsDTO(s.Weights),
		ShippingBaseCost: s.Rates.BaseCost,
		ShippingPerKm:    s.Rates.PerKm,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
