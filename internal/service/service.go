package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"matjar/backoffice/internal/cache"
	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/entity"
	"matjar/backoffice/internal/events"
	"matjar/backoffice/internal/lifecycle"
	"matjar/backoffice/internal/metrics"
	"matjar/backoffice/internal/store"
	"matjar/backoffice/internal/xid"
)

// ErrForbidden is returned when the actor's role may not perform an action.
var ErrForbidden = errors.New("forbidden")

// DefaultActionTTL is how long applied action results are remembered for retries.
const DefaultActionTTL = 24 * time.Hour

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options wires the optional collaborators of a Service. Zero fields get
// in-process or no-op defaults.
type Options struct {
	Cache     cache.ActionCache
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	ActionTTL time.Duration
	Now       func() time.Time
}

type Service struct {
	repo      store.Repository
	cache     cache.ActionCache
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	actionTTL time.Duration
	now       func() time.Time

	// mu serializes commands so each one applies to the state left by the previous.
	mu sync.Mutex
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryActionCache()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ActionTTL <= 0 {
		opts.ActionTTL = DefaultActionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:      repo,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger.Named("service"),
		actionTTL: opts.ActionTTL,
		now:       opts.Now,
	}
}

// snapshot loads the repository into an immutable entity store.
func (s *Service) snapshot(ctx context.Context) (*entity.Store, error) {
	data, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return entity.New(data), nil
}

// ApplyOrderAction moves an order through its lifecycle. Staff and admins may
// act on orders.
func (s *Service) ApplyOrderAction(ctx context.Context, orderID int64, req domain.OrderActionRequest) (domain.ActionResult, error) {
	if err := requireRole(ctx, domain.RoleStaff, domain.RoleAdmin); err != nil {
		s.metrics.ObserveAction(domain.EntityOrder, string(req.Action), metrics.OutcomeRejected)
		return domain.ActionResult{}, err
	}

	var prev domain.OrderState
	return s.execute(ctx, domain.EntityOrder, orderID, string(req.Action), &req.ActionID,
		func(snap *entity.Store, now time.Time) (domain.ActionResult, error) {
			order, err := snap.FindOrder(orderID)
			if err != nil {
				return domain.ActionResult{}, err
			}
			prev = order.OrderState
			return lifecycle.ApplyOrderAction(order, req, now)
		},
		func(ctx context.Context, result *domain.ActionResult) error {
			return s.repo.SaveOrder(ctx, *result.Order, prev)
		},
	)
}

// ApplyReturnAction resolves a return. Stock managers and admins approve or
// reject; accountants and admins pay out refunds.
func (s *Service) ApplyReturnAction(ctx context.Context, orderID int64, req domain.ReturnActionRequest) (domain.ActionResult, error) {
	roles := []string{domain.RoleStockManager, domain.RoleAdmin}
	if req.Action == domain.ActionRefund {
		roles = []string{domain.RoleAccountant, domain.RoleAdmin}
	}
	if err := requireRole(ctx, roles...); err != nil {
		s.metrics.ObserveAction(domain.EntityReturn, string(req.Action), metrics.OutcomeRejected)
		return domain.ActionResult{}, err
	}
	actor, _ := ActorFromContext(ctx)

	var prev domain.ReturnRecord
	return s.execute(ctx, domain.EntityReturn, orderID, string(req.Action), &req.ActionID,
		func(snap *entity.Store, now time.Time) (domain.ActionResult, error) {
			r, err := snap.FindReturn(orderID)
			if err != nil {
				return domain.ActionResult{}, err
			}
			prev = r.Record()
			return lifecycle.ApplyReturnAction(r, req, actor.Username, now)
		},
		func(ctx context.Context, result *domain.ActionResult) error {
			return s.repo.SaveReturn(ctx, result.Return.Record(), prev)
		},
	)
}

// RecordStockMovement adds, withdraws or adjusts a product's stock. Stock
// managers and admins may move stock.
func (s *Service) RecordStockMovement(ctx context.Context, productID int64, req domain.StockMovementRequest) (domain.ActionResult, error) {
	if err := requireRole(ctx, domain.RoleStockManager, domain.RoleAdmin); err != nil {
		s.metrics.ObserveAction(domain.EntityProduct, string(req.Type), metrics.OutcomeRejected)
		return domain.ActionResult{}, err
	}

	return s.execute(ctx, domain.EntityProduct, productID, string(req.Type), &req.ActionID,
		func(snap *entity.Store, now time.Time) (domain.ActionResult, error) {
			product, err := snap.FindProduct(productID)
			if err != nil {
				return domain.ActionResult{}, err
			}
			return lifecycle.ApplyStockMovement(product, req, now)
		},
		func(ctx context.Context, result *domain.ActionResult) error {
			saved, err := s.repo.RecordStockMovement(ctx, *result.Product, *result.Movement)
			if err != nil {
				return err
			}
			result.Movement = saved
			return nil
		},
	)
}

type applyFunc func(snap *entity.Store, now time.Time) (domain.ActionResult, error)

type persistFunc func(ctx context.Context, result *domain.ActionResult) error

// execute runs one command at most once per action id. A retried id returns
// the stored result with Duplicate set; the id may not be reused for another
// entity or action. An empty id is replaced by a fresh one.
func (s *Service) execute(ctx context.Context, entityType string, entityID int64, action string, actionID *string, apply applyFunc, persist persistFunc) (domain.ActionResult, error) {
	if strings.TrimSpace(*actionID) == "" {
		*actionID = xid.New("act")
	}
	id := strings.TrimSpace(*actionID)
	log := s.logger.With(zap.String("action_id", id), zap.String("entity", entityType), zap.String("action", action))

	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		log.Warn("failed to read action cache", zap.Error(err))
	}
	if ok {
		if cached.Entity != entityType || cached.EntityID != entityID || cached.Action != action {
			s.metrics.ObserveAction(entityType, action, metrics.OutcomeInvalid)
			return domain.ActionResult{}, &lifecycle.ValidationError{
				Field:   "action_id",
				Message: fmt.Sprintf("already used for %s on %s %d", cached.Action, cached.Entity, cached.EntityID),
			}
		}
		cached.Duplicate = true
		s.metrics.ObserveAction(entityType, action, metrics.OutcomeDuplicate)
		log.Info("duplicate action", zap.Int64("entity_id", cached.EntityID))
		return *cached, nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		s.metrics.ObserveAction(entityType, action, metrics.OutcomeError)
		return domain.ActionResult{}, err
	}

	result, err := apply(snap, s.now().UTC())
	if err != nil {
		outcome := outcomeOf(err)
		s.metrics.ObserveAction(entityType, action, outcome)
		log.Info("action rejected", zap.String("outcome", outcome), zap.Error(err))
		return domain.ActionResult{}, err
	}
	result.ActionID = id
	if actor, ok := ActorFromContext(ctx); ok {
		result.Actor = actor.Username
	}

	if err := persist(ctx, &result); err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, store.ErrStaleStock) || errors.Is(err, store.ErrStaleState) {
			outcome = metrics.OutcomeRejected
		}
		s.metrics.ObserveAction(entityType, action, outcome)
		log.Error("failed to persist action", zap.Error(err))
		return domain.ActionResult{}, err
	}

	if err := s.cache.Set(ctx, id, &result, s.actionTTL); err != nil {
		log.Warn("failed to remember action result", zap.Error(err))
	}
	s.logAudit(ctx, result)
	if err := s.publisher.Publish(ctx, result); err != nil {
		log.Warn("failed to publish action event", zap.Error(err))
	}
	s.metrics.ObserveAction(entityType, action, metrics.OutcomeApplied)
	log.Info("action applied",
		zap.Int64("entity_id", result.EntityID),
		zap.String("from", result.From),
		zap.String("to", result.To),
		zap.String("actor", result.Actor),
	)
	return result, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, entity.ErrNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func requireRole(ctx context.Context, roles ...string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: no actor", ErrForbidden)
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s role required", ErrForbidden, strings.Join(roles, " or "))
}

// ListAuditLogs returns the audit entries of one UTC day, newest first. An
// empty date means the last 24 hours.
func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, &lifecycle.ValidationError{Field: "date", Message: "must be formatted as YYYY-MM-DD"}
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, result domain.ActionResult) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	detail := fmt.Sprintf("action_id=%s,from=%s,to=%s", result.ActionID, result.From, result.To)
	if result.Note != "" {
		detail += ",note=" + result.Note
	}
	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        result.Entity + "_" + result.Action,
		EntityType:    result.Entity,
		EntityID:      strconv.FormatInt(result.EntityID, 10),
		Detail:        detail,
		CreatedAt:     result.AppliedAt,
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", result.Action),
			zap.String("entity", result.Entity),
			zap.Int64("entity_id", result.EntityID),
			zap.Error(err),
		)
	}
}
