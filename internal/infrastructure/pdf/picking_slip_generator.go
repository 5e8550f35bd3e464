// Package pdf genera la hoja de picking de una orden asignada a una ubicación.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Ubicación de despacho │  N° Orden + Fecha          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ENVÍO: Destinatario / Dirección / Método                   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: ☐ | Variante | Cantidad | P.Unit                     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Subtotal / TOTAL                                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER ROUTING: motivo + QR con el ID de la orden          │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/oms-router/internal/application/fulfillment"
	"github.com/jhoicas/oms-router/internal/domain/entity"
)

var _ fulfillment.PickingSlipGenerator = (*PickingSlipGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// PickingSlipGenerator implementa fulfillment.PickingSlipGenerator usando Maroto v2.
type PickingSlipGenerator struct{}

// NewPickingSlipGenerator construye el generador.
func NewPickingSlipGenerator() *PickingSlipGenerator { return &PickingSlipGenerator{} }

// GeneratePickingSlip genera el PDF y devuelve sus bytes.
func (g *PickingSlipGenerator) GeneratePickingSlip(
	_ context.Context,
	order *entity.FulfillmentOrder,
	location *entity.LocationCapability,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Hoja de picking "+order.Number, true).
		WithAuthor(nonEmpty(location.Name, location.LocationID), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(order, location))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(shippingRow(order))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(itemRows(order.Items)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(order))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(routingFooterRows(order)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar hoja de picking: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: ubicación de despacho (izq) y N° de orden + fecha de asignación (der).
func headerRow(order *entity.FulfillmentOrder, location *entity.LocationCapability) core.Row {
	fecha := order.CreatedAt.Format("02/01/2006 15:04")
	if order.AssignedAt != nil {
		fecha = order.AssignedAt.Format("02/01/2006 15:04")
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New(nonEmpty(location.Name, location.LocationID), props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Ubicación: "+location.LocationID, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("HOJA DE PICKING", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(order.Number, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Asignada: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// shippingRow: destinatario, dirección y método de envío.
func shippingRow(order *entity.FulfillmentOrder) core.Row {
	a := order.ShippingAddress
	return row.New(18).Add(
		col.New(12).Add(
			text.New("ENVÍO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(a.Name, "-"), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("%s, %s, %s (%s)   |   Tel: %s",
				nonEmpty(a.Street, "-"),
				nonEmpty(a.City, "-"),
				nonEmpty(a.Province, "-"),
				nonEmpty(a.PostalCode, "-"),
				nonEmpty(a.Phone, "-"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de ítems.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("OK", 1, align.Center),
		h("Variante", 6, align.Left),
		h("Cantidad", 2, align.Center),
		h("Precio Unit.", 3, align.Right),
	)
}

// itemRows: una fila por ítem, con casilla para marcar al preparar.
func itemRows(items []entity.OrderItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New("[  ]", props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(6).Add(text.New(it.VariantID, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(it.Quantity.String(), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center, Top: 1,
			})),
			col.New(3).Add(text.New("$"+formatMoney(it.UnitPrice.StringFixed(0)), props.Text{
				Size: 8, Align: align.Right, Top: 1, Right: 1,
			})),
		))
	}
	return result
}

// totalsRow: subtotal y total alineados a la derecha.
func totalsRow(order *entity.FulfillmentOrder) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	return row.New(14).Add(
		col.New(6),
		col.New(3).Add(
			label("Subtotal:"),
			text.New("TOTAL:", props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: 6,
			}),
		),
		col.New(3).Add(
			value("$"+formatMoney(order.Subtotal.StringFixed(0)), 0),
			text.New("$"+formatMoney(order.Total.StringFixed(0)), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 6,
			}),
		),
	)
}

// routingFooterRows: motivo de la asignación, puntaje del ganador y QR con el ID de la orden.
func routingFooterRows(order *entity.FulfillmentOrder) []core.Row {
	reason := "-"
	detail := ""
	if d := order.RoutingDecision; d != nil {
		reason = d.Reason.Description()
		if len(d.Candidates) > 0 {
			detail = fmt.Sprintf("Puntaje %.2f sobre %d ubicaciones candidatas (algoritmo %s)",
				d.Candidates[0].TotalScore, len(d.Candidates), d.AlgorithmVersion)
		}
	}
	return []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("ASIGNACIÓN", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
		row.New(40).Add(
			col.New(3).Add(code.NewQr(order.ID, props.Rect{Percent: 95, Center: true})),
			col.New(9).Add(
				text.New("Motivo: "+reason, props.Text{Size: 9, Top: 4, Left: 3}),
				text.New(detail, props.Text{Size: 8, Top: 11, Left: 3, Color: colorGray}),
				text.New("Método de envío: "+strings.ToUpper(string(order.ShippingMethod)), props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 20, Left: 3, Color: colorPrimary,
				}),
			),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney inserta puntos de miles en un string numérico sin decimales.
// Ej: "25000" → "25.000", "1000000" → "1.000.000"
func formatMoney(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}
