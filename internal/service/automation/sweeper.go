package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chat-routing-backend/internal/events"
	"chat-routing-backend/internal/model"
	"chat-routing-backend/internal/queue"
)

// timeRules are the time-driven rule types, in evaluation order. A warning
// that comes due together with a close is still posted before the room closes.
var timeRules = []model.RuleType{
	model.RuleInactivityWarning,
	model.RuleAttendantAbsence,
	model.RuleAutoClose,
}

func ruleRank(t model.RuleType) int {
	for i, rt := range timeRules {
		if rt == t {
			return i
		}
	}
	return len(timeRules)
}

type SweepResult struct {
	Tenants   int           `json:"tenants"`
	Rooms     int           `json:"rooms"`
	Processed int           `json:"processed"`
	Closed    int           `json:"closed"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"-"`
}

func (r *SweepResult) add(o SweepResult) {
	r.Tenants += o.Tenants
	r.Rooms += o.Rooms
	r.Processed += o.Processed
	r.Closed += o.Closed
	r.Errors += o.Errors
}

// Sweeper evaluates the time-driven rules over every open room of every
// tenant. Failures are logged and counted per tenant, room and rule; they
// never stop the rest of the sweep.
type Sweeper struct {
	store     Store
	emitter   *Emitter
	capacity  CapacityReleaser
	pool      *queue.RequestQueueManager
	publisher events.Publisher
	logger    *slog.Logger
}

// NewSweeper builds a sweeper sharing the emitter's clock and publisher. pool
// fans tenants out; nil runs them one after another.
func NewSweeper(store Store, emitter *Emitter, capacity CapacityReleaser, pool *queue.RequestQueueManager, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		emitter:   emitter,
		capacity:  capacity,
		pool:      pool,
		publisher: emitter.publisher,
		logger:    logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	tenantIDs, err := s.store.ListTenantIDs(ctx)
	if err != nil {
		sweepErrors.WithLabelValues("tenants").Inc()
		return SweepResult{}, fmt.Errorf("list tenants: %w", err)
	}

	var (
		mu     sync.Mutex
		result SweepResult
	)
	collect := func(r SweepResult) {
		mu.Lock()
		result.add(r)
		mu.Unlock()
	}

	if s.pool == nil {
		for _, tenantID := range tenantIDs {
			collect(s.sweepTenant(ctx, tenantID))
		}
	} else {
		var wg sync.WaitGroup
		for _, tenantID := range tenantIDs {
			wg.Add(1)
			err := s.pool.Enqueue(ctx, queue.Job{Fn: func() error {
				defer wg.Done()
				collect(s.sweepTenant(ctx, tenantID))
				return nil
			}})
			if err != nil {
				wg.Done()
				sweepErrors.WithLabelValues("enqueue").Inc()
				s.logger.Error("sweep tenant not scheduled",
					slog.String("tenant_id", tenantID),
					slog.String("error", err.Error()),
				)
				collect(SweepResult{Errors: 1})
			}
		}
		wg.Wait()
	}

	result.Duration = time.Since(start)
	sweepDuration.Observe(result.Duration.Seconds())
	s.logger.Info("automation sweep finished",
		slog.Int("tenants", result.Tenants),
		slog.Int("rooms", result.Rooms),
		slog.Int("processed", result.Processed),
		slog.Int("closed", result.Closed),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

func (s *Sweeper) sweepTenant(ctx context.Context, tenantID string) SweepResult {
	result := SweepResult{Tenants: 1}
	logger := s.logger.With(slog.String("tenant_id", tenantID))

	rules, err := s.store.ListAutoRules(ctx, tenantID, timeRules, true)
	if err != nil {
		sweepErrors.WithLabelValues("rules").Inc()
		logger.Error("load automation rules failed", slog.String("error", err.Error()))
		result.Errors++
		return result
	}
	rules = dueRules(rules)
	if len(rules) == 0 {
		return result
	}

	rooms, err := s.store.ListOpenRoomsByTenant(ctx, tenantID)
	if err != nil {
		sweepErrors.WithLabelValues("rooms").Inc()
		logger.Error("load open rooms failed", slog.String("error", err.Error()))
		result.Errors++
		return result
	}

	for _, room := range rooms {
		if ctx.Err() != nil {
			result.Errors++
			logger.Warn("sweep cancelled", slog.String("error", ctx.Err().Error()))
			break
		}
		result.Rooms++
		result.add(s.sweepRoom(ctx, logger, room, rules))
	}
	return result
}

// dueRules keeps rules with a trigger and orders them for evaluation.
func dueRules(rules []model.AutoRule) []model.AutoRule {
	out := make([]model.AutoRule, 0, len(rules))
	for _, rule := range rules {
		if rule.TriggerMinutes == nil || *rule.TriggerMinutes < 0 {
			continue
		}
		if ruleRank(rule.RuleType) == len(timeRules) {
			continue
		}
		out = append(out, rule)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ruleRank(out[i].RuleType) < ruleRank(out[j].RuleType)
	})
	return out
}

func (s *Sweeper) sweepRoom(ctx context.Context, logger *slog.Logger, room model.Room, rules []model.AutoRule) SweepResult {
	var result SweepResult
	logger = logger.With(slog.String("room_id", room.RoomID))

	last, err := s.store.GetLastNonSystemMessage(ctx, room.RoomID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return result
		}
		sweepErrors.WithLabelValues("messages").Inc()
		logger.Error("load last message failed", slog.String("error", err.Error()))
		result.Errors++
		return result
	}

	elapsed := s.emitter.now().Sub(last.CreatedAt)
	for _, rule := range rules {
		if elapsed < time.Duration(*rule.TriggerMinutes)*time.Minute {
			continue
		}
		if !ruleApplies(rule.RuleType, room, last) {
			continue
		}

		emitted, err := s.emitter.EmitOnce(ctx, room, rule.RuleType, rule.MessageContent)
		if err != nil {
			sweepErrors.WithLabelValues("emit").Inc()
			logger.Error("automation emit failed",
				slog.String("rule", string(rule.RuleType)),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}
		if emitted {
			result.Processed++
		}

		// A close message without a close means an earlier sweep failed to
		// write the room. The status guard makes the retry safe.
		if rule.RuleType == model.RuleAutoClose {
			closed, err := s.closeRoom(ctx, logger, room)
			if err != nil {
				result.Errors++
			}
			if closed {
				result.Closed++
			}
			break
		}
	}
	return result
}

// ruleApplies checks the direction constraint of a rule against the room and
// its last human message.
func ruleApplies(ruleType model.RuleType, room model.Room, last model.Message) bool {
	switch ruleType {
	case model.RuleAttendantAbsence:
		return room.Status == model.RoomStatusActive && room.AttendantID != "" && last.SenderType == model.SenderVisitor
	case model.RuleInactivityWarning:
		return room.Status == model.RoomStatusActive && last.SenderType == model.SenderAttendant
	case model.RuleAutoClose:
		return true
	default:
		return false
	}
}

// closeRoom closes the room only if it still has the status the sweep saw.
// Losing that race is not an error.
func (s *Sweeper) closeRoom(ctx context.Context, logger *slog.Logger, room model.Room) (bool, error) {
	now := s.emitter.now().UTC()
	updated, err := s.store.UpdateRoom(ctx, room.RoomID, model.RoomUpdate{
		Status:           model.StatusPtr(model.RoomStatusClosed),
		ResolutionStatus: model.ResolutionPtr(model.ResolutionPending),
		ClosedAt:         &now,
		UpdatedAt:        now,
	}, room.Status)
	if err != nil {
		if errors.Is(err, model.ErrConditionFailed) || errors.Is(err, model.ErrNotFound) {
			logger.Info("room changed during sweep, auto close skipped",
				slog.String("observed_status", string(room.Status)),
			)
			return false, nil
		}
		sweepErrors.WithLabelValues("close").Inc()
		logger.Error("auto close failed", slog.String("error", err.Error()))
		return false, err
	}

	roomsAutoClosed.Inc()
	logger.Info("room auto closed", slog.String("attendant_id", updated.AttendantID))

	var releaseErr error
	if updated.AttendantID != "" && s.capacity != nil {
		if _, err := s.capacity.Decrement(ctx, updated.AttendantID); err != nil {
			sweepErrors.WithLabelValues("capacity").Inc()
			logger.Error("capacity release after auto close failed",
				slog.String("attendant_id", updated.AttendantID),
				slog.String("error", err.Error()),
			)
			releaseErr = err
		}
	}

	events.PublishBestEffort(ctx, s.publisher, logger, events.TypeRoomAutoClosed, events.RoomClosed{
		TenantID:         updated.TenantID,
		RoomID:           updated.RoomID,
		AttendantID:      updated.AttendantID,
		ResolutionStatus: string(model.ResolutionPending),
		ClosedAt:         now,
		ClosedBy:         string(model.RuleAutoClose),
	})
	return true, releaseErr
}
