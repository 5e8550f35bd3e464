package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/oms-router/internal/application/dto"
	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/application/routing"
	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// InventoryHandler maneja las peticiones HTTP del ledger de stock (protegido).
// Toda ubicación referida debe pertenecer al tenant del token.
type InventoryHandler struct {
	ledger    *inventory.LedgerUseCase
	locations *routing.LocationUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(ledger *inventory.LedgerUseCase, locations *routing.LocationUseCase) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, locations: locations}
}

// RegisterMovement godoc
// @Summary      Registrar movimiento de stock
// @Description  Carga inicial o ajuste. Un ajuste que dejaría el saldo negativo se rechaza con 409.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "variant_id, location_id, delta, kind"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) RegisterMovement(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if err := parseBody(c, &in); err != nil {
		return handled(err)
	}
	if err := h.locations.EnsureOwned(c.UserContext(), GetTenantID(c), in.LocationID); err != nil {
		return respondError(c, err)
	}
	m, err := h.ledger.Append(c.UserContext(), inventory.AppendInput{
		VariantID:  in.VariantID,
		LocationID: in.LocationID,
		Delta:      in.Delta,
		Kind:       entity.MovementKind(in.Kind),
		Reference:  in.Reference,
		RecordedBy: GetUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(m))
}

// ListMovements godoc
// @Summary      Historial de movimientos
// @Description  Por clave (variant_id + location_id, del más reciente al más antiguo) o por referencia.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        variant_id   query  string  false  "Variante"
// @Param        location_id  query  string  false  "Ubicación"
// @Param        reference    query  string  false  "Referencia (orden, traslado)"
// @Success      200  {object}  dto.MovementListResponse
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	var q dto.MovementQuery
	if err := parseQuery(c, &q); err != nil {
		return handled(err)
	}
	page := dto.PageRequest{Limit: q.Limit, Offset: q.Offset}
	page.DefaultPage()

	var (
		list []*entity.StockMovement
		err  error
	)
	if q.VariantID != "" {
		if err := h.locations.EnsureOwned(c.UserContext(), GetTenantID(c), q.LocationID); err != nil {
			return respondError(c, err)
		}
		list, err = h.ledger.History(c.UserContext(), entity.StockKey{VariantID: q.VariantID, LocationID: q.LocationID}, page.Limit, page.Offset)
	} else {
		list, err = h.ledger.ByReference(c.UserContext(), q.Reference)
		if err == nil {
			list, err = h.ownedMovements(c, list)
		}
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.MovementListResponse{
		Items: toMovementResponses(list),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Reserve godoc
// @Summary      Reservar stock
// @Description  Registra movimientos sale para todas las líneas o para ninguna.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReserveRequest  true  "reference y líneas"
// @Success      201   {object}  dto.MovementListResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/reservations [post]
func (h *InventoryHandler) Reserve(c *fiber.Ctx) error {
	var in dto.ReserveRequest
	if err := parseBody(c, &in); err != nil {
		return handled(err)
	}
	lines := make([]entity.StockLine, 0, len(in.Lines))
	locs := make([]string, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, entity.StockLine{VariantID: l.VariantID, LocationID: l.LocationID, Quantity: l.Quantity})
		locs = append(locs, l.LocationID)
	}
	if err := h.locations.EnsureOwned(c.UserContext(), GetTenantID(c), locs...); err != nil {
		return respondError(c, err)
	}
	movs, err := h.ledger.ReserveLines(c.UserContext(), lines, in.Reference, GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MovementListResponse{Items: toMovementResponses(movs)})
}

// Transfer godoc
// @Summary      Trasladar stock entre ubicaciones
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "variante, origen, destino y cantidad"
// @Success      201   {object}  dto.MovementListResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/transfers [post]
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if err := parseBody(c, &in); err != nil {
		return handled(err)
	}
	if err := h.locations.EnsureOwned(c.UserContext(), GetTenantID(c), in.FromLocationID, in.ToLocationID); err != nil {
		return respondError(c, err)
	}
	movs, err := h.ledger.Transfer(c.UserContext(), inventory.TransferInput{
		VariantID:      in.VariantID,
		FromLocationID: in.FromLocationID,
		ToLocationID:   in.ToLocationID,
		Quantity:       in.Quantity,
		Reference:      in.Reference,
		RecordedBy:     GetUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MovementListResponse{Items: toMovementResponses(movs)})
}

// Stock godoc
// @Summary      Saldos por variante
// @Description  Saldo de cada variante en las ubicaciones del tenant.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        variant_ids  query  string  true  "IDs separados por coma"
// @Success      200  {array}  dto.StockBalanceResponse
// @Router       /api/inventory/stock [get]
func (h *InventoryHandler) Stock(c *fiber.Ctx) error {
	var q dto.StockQuery
	if err := parseQuery(c, &q); err != nil {
		return handled(err)
	}
	ids := splitIDs(q.VariantIDs)
	balances, err := h.ledger.Balances(c.UserContext(), ids)
	if err != nil {
		return respondError(c, err)
	}
	owned, err := h.ownedLocations(c)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.StockBalanceResponse, 0, len(balances))
	for _, b := range balances {
		if _, ok := owned[b.LocationID]; !ok {
			continue
		}
		out = append(out, dto.StockBalanceResponse{
			VariantID:  b.VariantID,
			LocationID: b.LocationID,
			Quantity:   b.Quantity,
			LastSeq:    b.LastSeq,
			UpdatedAt:  b.UpdatedAt,
		})
	}
	return c.JSON(out)
}

// Reconcile godoc
// @Summary      Conciliar saldo contra ledger
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        variant_id   query  string  true  "Variante"
// @Param        location_id  query  string  true  "Ubicación"
// @Success      200  {object}  dto.ReconciliationResponse
// @Router       /api/inventory/reconcile [get]
func (h *InventoryHandler) Reconcile(c *fiber.Ctx) error {
	key := entity.StockKey{VariantID: c.Query("variant_id"), LocationID: c.Query("location_id")}
	if key.VariantID == "" || key.LocationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "variant_id y location_id son requeridos"})
	}
	if err := h.locations.EnsureOwned(c.UserContext(), GetTenantID(c), key.LocationID); err != nil {
		return respondError(c, err)
	}
	r, err := h.ledger.Reconcile(c.UserContext(), key)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ReconciliationResponse{
		VariantID:  key.VariantID,
		LocationID: key.LocationID,
		Balance:    r.Balance,
		LedgerSum:  r.LedgerSum,
		Consistent: r.Consistent,
	})
}

func (h *InventoryHandler) ownedLocations(c *fiber.Ctx) (map[string]struct{}, error) {
	list, err := h.locations.ListCapabilities(c.UserContext(), GetTenantID(c))
	if err != nil {
		return nil, err
	}
	owned := make(map[string]struct{}, len(list))
	for _, l := range list {
		owned[l.LocationID] = struct{}{}
	}
	return owned, nil
}

// ownedMovements descarta movimientos de ubicaciones de otros tenants.
func (h *InventoryHandler) ownedMovements(c *fiber.Ctx, in []*entity.StockMovement) ([]*entity.StockMovement, error) {
	owned, err := h.ownedLocations(c)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.StockMovement, 0, len(in))
	for _, m := range in {
		if _, ok := owned[m.LocationID]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func splitIDs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
