package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/rs/zerolog"
)

// QuoteSource supplies the snapshots alerts are checked against.
type QuoteSource interface {
	Quote(ctx context.Context, ticker string) (*domain.Quote, error)
}

// CreateRequest is the input of Service.Create.
type CreateRequest struct {
	Ticker        string    `json:"ticker"`
	Name          string    `json:"name"`
	Type          AlertType `json:"type"`
	Condition     Condition `json:"condition"`
	CooldownHours *int      `json:"cooldown_hours"`
	Notes         *string   `json:"notes"`
}

// UpdateRequest patches an alert; nil fields are left unchanged.
type UpdateRequest struct {
	Name          *string    `json:"name"`
	IsActive      *bool      `json:"is_active"`
	Condition     *Condition `json:"condition"`
	CooldownHours *int       `json:"cooldown_hours"`
	Notes         *string    `json:"notes"`
}

// CheckResult is the outcome of a manual check.
type CheckResult struct {
	AlertID      int64         `json:"alert_id"`
	Ticker       string        `json:"ticker"`
	Triggered    bool          `json:"triggered"`
	CurrentValue *float64      `json:"current_value"`
	CurrentQuote *domain.Quote `json:"current_quote"`
	Condition    Condition     `json:"condition"`
	Message      *string       `json:"message"`
}

// Service implements alert use cases.
type Service struct {
	repo        *Repository
	instruments *instruments.Repository
	quotes      QuoteSource
	events      events.Emitter
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates an alert service.
func NewService(repo *Repository, instrumentRepo *instruments.Repository, quotes QuoteSource, emitter events.Emitter, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		repo:        repo,
		instruments: instrumentRepo,
		quotes:      quotes,
		events:      emitter,
		now:         time.Now,
		log:         log.With().Str("service", "alerts").Logger(),
	}
}

func validateCondition(t AlertType, c Condition) error {
	ops := operatorsFor(t)
	if ops == nil {
		return domain.NewValidationError("type", "must be price, change_percent, pe_ratio or dividend_yield, got %q", t)
	}
	valid := false
	for _, op := range ops {
		if op.Value == c.Operator {
			valid = true
			break
		}
	}
	if !valid {
		return domain.NewValidationError("condition.operator", "operator %q is not valid for %s alerts", c.Operator, t)
	}
	if c.Value < 0 || (t == TypePrice && c.Value == 0) {
		return domain.NewValidationError("condition.value", "must be positive")
	}
	return nil
}

func validateCooldown(hours int) error {
	if hours < 0 {
		return domain.NewValidationError("cooldown_hours", "must not be negative")
	}
	return nil
}

// Create adds an alert for an existing instrument.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Alert, error) {
	if err := validateCondition(req.Type, req.Condition); err != nil {
		return nil, err
	}
	cooldown := DefaultCooldownHours
	if req.CooldownHours != nil {
		cooldown = *req.CooldownHours
	}
	if err := validateCooldown(cooldown); err != nil {
		return nil, err
	}

	ticker := domain.NormalizeTicker(req.Ticker)
	inst, err := s.instruments.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("instrument %s: %w", ticker, domain.ErrNotFound)
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("Alerta %s - %s", req.Type, inst.Ticker)
	}

	a := &Alert{
		InstrumentID:  inst.ID,
		Ticker:        inst.Ticker,
		Name:          name,
		Type:          req.Type,
		Condition:     req.Condition,
		IsActive:      true,
		CooldownHours: cooldown,
		Notes:         req.Notes,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info().Int64("id", a.ID).Str("ticker", a.Ticker).Str("type", string(a.Type)).Msg("Alert created")
	return a, nil
}

// Get returns one alert.
func (s *Service) Get(ctx context.Context, id int64) (*Alert, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("alert %d: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// List returns alerts newest first.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Alert, error) {
	return s.repo.List(ctx, activeOnly)
}

// Update applies the non-nil fields of req.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Alert, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
	if req.Condition != nil {
		if err := validateCondition(a.Type, *req.Condition); err != nil {
			return nil, err
		}
		a.Condition = *req.Condition
	}
	if req.CooldownHours != nil {
		if err := validateCooldown(*req.CooldownHours); err != nil {
			return nil, err
		}
		a.CooldownHours = *req.CooldownHours
	}
	if req.Notes != nil {
		a.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an alert and its history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// History returns trigger entries newest first; alertID 0 means all alerts.
func (s *Service) History(ctx context.Context, alertID int64, limit int) ([]HistoryEntry, error) {
	return s.repo.History(ctx, alertID, limit)
}

// Check evaluates an alert against the current quote without recording a
// trigger. It fails with domain.ErrUnavailable when no quote can be fetched.
func (s *Service) Check(ctx context.Context, id int64) (*CheckResult, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := s.quotes.Quote(ctx, a.Ticker)
	if err != nil {
		return nil, err
	}

	e := Evaluate(*a, *q)
	result := &CheckResult{
		AlertID:      a.ID,
		Ticker:       a.Ticker,
		Triggered:    e.Triggered,
		CurrentValue: e.Current,
		CurrentQuote: q,
		Condition:    a.Condition,
	}
	if e.Triggered {
		result.Message = &e.Message
	}
	return result, nil
}

// RunSummary reports one pass over the active alerts.
type RunSummary struct {
	Checked   int `json:"checked"`
	Triggered int `json:"triggered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// CheckActive evaluates every active alert outside its cooldown. Triggers
// are recorded in history and announced as events. Quotes are fetched once
// per ticker.
func (s *Service) CheckActive(ctx context.Context) (*RunSummary, error) {
	active, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	summary := &RunSummary{}
	quotes := make(map[string]*domain.Quote)

	for _, a := range active {
		if a.CoolingDown(now) {
			summary.Skipped++
			continue
		}

		q, seen := quotes[a.Ticker]
		if !seen {
			q, err = s.quotes.Quote(ctx, a.Ticker)
			if err != nil {
				s.log.Warn().Err(err).Str("ticker", a.Ticker).Msg("No quote for alert check")
				q = nil
			}
			quotes[a.Ticker] = q
		}
		if q == nil {
			summary.Failed++
			continue
		}

		summary.Checked++
		e := Evaluate(a, *q)
		if !e.Triggered {
			continue
		}

		entry := &HistoryEntry{
			AlertID:      a.ID,
			Ticker:       a.Ticker,
			TriggeredAt:  now,
			TriggerValue: *e.Current,
			TargetValue:  a.Condition.Value,
			Message:      e.Message,
		}
		if err := s.repo.RecordTrigger(ctx, entry); err != nil {
			s.log.Error().Err(err).Int64("alert_id", a.ID).Msg("Failed to record alert trigger")
			summary.Failed++
			continue
		}
		summary.Triggered++

		s.log.Info().Int64("alert_id", a.ID).Str("ticker", a.Ticker).Msg(e.Message)
		s.events.Emit(events.AlertTriggered, "alerts", map[string]interface{}{
			"alert_id":      a.ID,
			"ticker":        a.Ticker,
			"type":          a.Type,
			"trigger_value": entry.TriggerValue,
			"target_value":  entry.TargetValue,
			"message":       entry.Message,
		})
	}
	return summary, nil
}
