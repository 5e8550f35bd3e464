package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
	scoring "github.com/jhoicas/oms-router/internal/domain/routing"
)

const tracerName = "github.com/jhoicas/oms-router/internal/application/routing"

// Config parámetros del router.
type Config struct {
	MaxAttempts int           // reintentos cuando el commit pierde una carrera
	LockTTL     time.Duration // vigencia del lock de ruteo por orden
}

// Router caso de uso de ruteo: filtro, scoring y commit con reintentos.
type Router struct {
	orders    repository.FulfillmentOrderRepository
	cache     *CapabilityCache
	filter    *CandidateFilter
	engine    *scoring.Engine
	recorder  *DecisionRecorder
	locker    OrderLocker
	publisher DecisionPublisher
	cfg       Config
	log       zerolog.Logger
	tracer    trace.Tracer
}

// NewRouter construye el router.
func NewRouter(
	orders repository.FulfillmentOrderRepository,
	cache *CapabilityCache,
	filter *CandidateFilter,
	engine *scoring.Engine,
	recorder *DecisionRecorder,
	locker OrderLocker,
	publisher DecisionPublisher,
	cfg Config,
	log zerolog.Logger,
) *Router {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Router{
		orders:    orders,
		cache:     cache,
		filter:    filter,
		engine:    engine,
		recorder:  recorder,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		tracer:    otel.Tracer(tracerName),
	}
}

// RouteOrder decide la ubicación de una orden pending o analyzing y la deja en assigned.
// Una orden ya asignada se devuelve sin cambios. Sin candidatos la orden queda en analyzing
// (backordered) y se devuelve domain.ErrNoCandidateLocation.
func (r *Router) RouteOrder(ctx context.Context, tenantID, orderID, actor string) (o *entity.FulfillmentOrder, err error) {
	ctx, span := r.tracer.Start(ctx, "routing.RouteOrder", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("order.id", orderID),
	))
	defer func() { endSpan(span, err) }()

	release, err := r.locker.Acquire(ctx, orderID, r.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := r.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case entity.StatusAssigned:
		return order, nil
	case entity.StatusPending:
		if order, err = r.recorder.StartAnalysis(ctx, order.ID, order.Version); err != nil {
			return nil, err
		}
	case entity.StatusAnalyzing:
	default:
		return nil, fmt.Errorf("%w: no se puede rutear una orden en %s", domain.ErrInvalidTransition, order.Status)
	}
	return r.decide(ctx, order, actor, false)
}

// Reroute recalcula la ubicación de una orden analyzing o assigned. Para una orden asignada
// su reserva vigente cuenta como disponible en su ubicación actual.
func (r *Router) Reroute(ctx context.Context, tenantID, orderID, actor string) (o *entity.FulfillmentOrder, err error) {
	ctx, span := r.tracer.Start(ctx, "routing.Reroute", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("order.id", orderID),
	))
	defer func() { endSpan(span, err) }()

	release, err := r.locker.Acquire(ctx, orderID, r.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := r.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.StatusAnalyzing && order.Status != entity.StatusAssigned {
		return nil, fmt.Errorf("%w: no se puede re-rutear una orden en %s", domain.ErrInvalidTransition, order.Status)
	}
	return r.decide(ctx, order, actor, true)
}

// Preview calcula el ranking de una orden (existente o borrador) sin escribir nada.
func (r *Router) Preview(ctx context.Context, tenantID string, order *entity.FulfillmentOrder) (*entity.RoutingDecision, error) {
	snap, err := r.cache.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return r.rank(ctx, order, snap)
}

func (r *Router) decide(ctx context.Context, order *entity.FulfillmentOrder, actor string, reroute bool) (*entity.FulfillmentOrder, error) {
	log := r.log.With().Str("order_id", order.ID).Str("tenant_id", order.TenantID).Logger()

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		snap, err := r.cache.Snapshot(ctx, order.TenantID)
		if err != nil {
			return nil, err
		}

		decision, err := r.rank(ctx, order, snap)
		if errors.Is(err, domain.ErrNoCandidateLocation) {
			if order.Status == entity.StatusAnalyzing && !order.Backordered {
				if _, mErr := r.recorder.MarkBackordered(ctx, order.ID, order.Version); mErr != nil {
					log.Warn().Err(mErr).Msg("no se pudo marcar la orden como backordered")
				}
			}
			log.Info().Int("attempt", attempt).Msg("orden sin ubicación candidata")
			return nil, err
		}
		if err != nil {
			return nil, err
		}

		committed, err := r.commit(ctx, order, decision, actor)
		if err == nil {
			log.Info().
				Str("location_id", decision.Selected).
				Str("reason", string(decision.Reason)).
				Int("attempt", attempt).
				Int("candidates", len(decision.Candidates)).
				Msg("orden asignada")
			r.publish(ctx, committed, decision, reroute)
			return committed, nil
		}
		if !errors.Is(err, domain.ErrInsufficientStock) && !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("commit de routing perdió una carrera, reintentando")

		if order, err = r.load(ctx, order.TenantID, order.ID); err != nil {
			return nil, err
		}
		switch {
		case order.Status == entity.StatusAssigned && !reroute:
			return order, nil
		case order.Status != entity.StatusAnalyzing && order.Status != entity.StatusAssigned:
			return nil, fmt.Errorf("%w: la orden pasó a %s", domain.ErrInvalidTransition, order.Status)
		}
	}
	return nil, fmt.Errorf("%w: %d intentos", domain.ErrInconsistentDecision, r.cfg.MaxAttempts)
}

func (r *Router) rank(ctx context.Context, order *entity.FulfillmentOrder, snap *CapabilitySnapshot) (*entity.RoutingDecision, error) {
	fctx, fspan := r.tracer.Start(ctx, "routing.filter")
	candidates, err := r.filter.Filter(fctx, order, snap, order.Holdings())
	fspan.SetAttributes(attribute.Int("candidates", len(candidates)))
	endSpan(fspan, ignoreNoCandidate(err))
	if err != nil {
		return nil, err
	}

	sctx, sspan := r.tracer.Start(ctx, "routing.score")
	decision, err := r.engine.Decide(sctx, order, candidates, snap.Settings)
	endSpan(sspan, err)
	return decision, err
}

func (r *Router) commit(ctx context.Context, order *entity.FulfillmentOrder, decision *entity.RoutingDecision, actor string) (*entity.FulfillmentOrder, error) {
	ctx, span := r.tracer.Start(ctx, "routing.commit", trace.WithAttributes(
		attribute.String("location.id", decision.Selected),
	))
	committed, err := r.recorder.Commit(ctx, CommitInput{
		OrderID:         order.ID,
		ExpectedVersion: order.Version,
		Decision:        decision,
		Actor:           actor,
	})
	endSpan(span, err)
	return committed, err
}

func (r *Router) publish(ctx context.Context, o *entity.FulfillmentOrder, d *entity.RoutingDecision, reroute bool) {
	e := DecisionEvent{
		OrderID:          o.ID,
		TenantID:         o.TenantID,
		OrderNumber:      o.Number,
		LocationID:       d.Selected,
		LocationName:     d.SelectedName,
		Reason:           d.Reason,
		Candidates:       len(d.Candidates),
		AlgorithmVersion: d.AlgorithmVersion,
		Rerouted:         reroute,
		DecidedAt:        d.Timestamp,
	}
	if len(d.Candidates) > 0 {
		e.TotalScore = d.Candidates[0].TotalScore
	}
	if err := r.publisher.PublishDecision(ctx, e); err != nil {
		r.log.Warn().Err(err).Str("order_id", o.ID).Msg("no se pudo publicar la decisión")
	}
}

func (r *Router) load(ctx context.Context, tenantID, orderID string) (*entity.FulfillmentOrder, error) {
	o, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.TenantID != tenantID {
		return nil, fmt.Errorf("orden %s: %w", orderID, domain.ErrNotFound)
	}
	return o, nil
}

func ignoreNoCandidate(err error) error {
	if errors.Is(err, domain.ErrNoCandidateLocation) {
		return nil
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
