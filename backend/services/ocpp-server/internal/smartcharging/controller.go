package smartcharging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/metrics"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/models"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp"
	"github.com/iconnor/ocpp-charge-profile/backend/services/ocpp-server/internal/ocpp/protocol"
)

// PowerReader supplies the current solar production.
type PowerReader interface {
	ReadPower(ctx context.Context) (Reading, error)
}

// Caller issues an outbound call on a charge point session and waits for its result.
type Caller interface {
	Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error)
}

// ProfileStore remembers applied profiles outside the session.
type ProfileStore interface {
	Save(ctx context.Context, profile models.AppliedProfile) error
}

// Cycle outcomes, also used as metric labels.
const (
	OutcomeApplied   = "applied"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// DefaultTickInterval is how often the minute bucket is checked.
const DefaultTickInterval = 5 * time.Second

// Controller runs the smart charging cycle for one charge point. Only the
// goroutine running Run (or calling Tick) writes the cap and the minute bucket.
type Controller struct {
	chargePointID string
	reader        PowerReader
	caller        Caller
	store         ProfileStore
	policy        Policy
	logger        *zap.Logger
	now           func() time.Time

	mu          sync.RWMutex
	lastCap     float64
	lastMinute  int64
	evaluated   bool
	lastApplied time.Time
}

// NewController builds a controller. store may be nil.
func NewController(chargePointID string, reader PowerReader, caller Caller, store ProfileStore, policy Policy, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		chargePointID: chargePointID,
		reader:        reader,
		caller:        caller,
		store:         store,
		policy:        policy,
		logger:        logger.With(zap.String("charge_point_id", chargePointID)),
		now:           time.Now,
	}
}

// Run evaluates immediately and then on every minute boundary observed by the
// ticker, until ctx is done. Evaluation is best-effort: a minute can be missed
// when a cycle outlasts it.
func (c *Controller) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		c.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one cycle if the wall-clock minute changed since the last one and
// reports the outcome ("" when the minute was already evaluated).
func (c *Controller) Tick(ctx context.Context) string {
	minute := c.now().Unix() / 60

	c.mu.Lock()
	if c.evaluated && minute == c.lastMinute {
		c.mu.Unlock()
		return ""
	}
	c.evaluated = true
	c.lastMinute = minute
	c.mu.Unlock()

	outcome, err := c.Evaluate(ctx)
	switch {
	case err == nil:
	case isConnectionError(err):
		c.logger.Info("smart charging cycle interrupted", zap.Error(err))
	default:
		c.logger.Warn("smart charging cycle aborted", zap.String("outcome", outcome), zap.Error(err))
	}
	return outcome
}

// Evaluate reads the solar power and, when the cap changed, clears the installed
// profile and sets a new one. The cap is recorded only when both calls succeed.
func (c *Controller) Evaluate(ctx context.Context) (string, error) {
	reading, err := c.reader.ReadPower(ctx)
	if err != nil {
		metrics.CountCycle(OutcomeSkipped)
		return OutcomeSkipped, fmt.Errorf("read solar power: %w", err)
	}

	limit, changed, err := c.policy.Decide(reading, c.LastCap())
	if err != nil {
		metrics.CountCycle(OutcomeSkipped)
		return OutcomeSkipped, err
	}
	if !changed {
		metrics.CountCycle(OutcomeUnchanged)
		c.logger.Debug("charging limit unchanged", zap.Float64("limit", limit))
		return OutcomeUnchanged, nil
	}

	if err := c.apply(ctx, limit, reading.Unit); err != nil {
		metrics.CountCycle(OutcomeFailed)
		return OutcomeFailed, err
	}

	appliedAt := c.now().UTC()
	c.mu.Lock()
	c.lastCap = limit
	c.lastApplied = appliedAt
	c.mu.Unlock()

	metrics.CountCycle(OutcomeApplied)
	metrics.ObserveLimit(c.chargePointID, limit)
	c.logger.Info("charging limit applied",
		zap.Float64("limit", limit),
		zap.String("unit", reading.Unit),
		zap.Float64("solar_power", reading.Value))

	if c.store != nil {
		profile := models.AppliedProfile{
			ChargePointID: c.chargePointID,
			Limit:         limit,
			Unit:          reading.Unit,
			SolarPower:    reading.Value,
			AppliedAt:     appliedAt,
		}
		if err := c.store.Save(ctx, profile); err != nil {
			c.logger.Warn("store applied profile failed", zap.Error(err))
		}
	}
	return OutcomeApplied, nil
}

func (c *Controller) apply(ctx context.Context, limit float64, unit string) error {
	raw, err := c.caller.Call(ctx, protocol.ActionClearChargingProfile, ClearRequest())
	if err != nil {
		return fmt.Errorf("clear charging profile: %w", err)
	}
	cleared, err := ocpp.DecodePayload[protocol.ClearChargingProfileResponse](raw)
	if err != nil {
		return fmt.Errorf("clear charging profile: %w", err)
	}
	c.logger.Debug("charging profile cleared", zap.String("status", cleared.Status))

	raw, err = c.caller.Call(ctx, protocol.ActionSetChargingProfile, ProfileRequest(limit, unit, c.now()))
	if err != nil {
		return fmt.Errorf("set charging profile: %w", err)
	}
	set, err := ocpp.DecodePayload[protocol.SetChargingProfileResponse](raw)
	if err != nil {
		return fmt.Errorf("set charging profile: %w", err)
	}
	if set.Status != protocol.ChargingProfileAccepted {
		return fmt.Errorf("%w: status %s", ErrProfileRejected, set.Status)
	}
	return nil
}

// LastCap returns the last cap the charge point accepted, 0 before the first one.
func (c *Controller) LastCap() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCap
}

// LastApplied returns when LastCap was installed.
func (c *Controller) LastApplied() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastApplied
}

func isConnectionError(err error) bool {
	return errors.Is(err, ocpp.ErrConnectionLost) || errors.Is(err, context.Canceled)
}
