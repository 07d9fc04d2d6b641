package instruments

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/aristath/stockwatch/internal/database"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var tickerPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.\-]{0,14}$`)

// ValidateTicker checks a normalized ticker symbol.
func ValidateTicker(ticker string) error {
	if !tickerPattern.MatchString(ticker) {
		return domain.NewValidationError("ticker", "invalid ticker %q", ticker)
	}
	return nil
}

// NameLookup resolves a display name for a ticker from market data.
type NameLookup interface {
	Name(ctx context.Context, ticker string) (string, error)
}

// CreateRequest is the input of Service.Create.
type CreateRequest struct {
	Ticker          string           `json:"ticker"`
	Name            string           `json:"name"`
	Sector          *string          `json:"sector"`
	Subsector       *string          `json:"subsector"`
	TargetBuyPrice  *decimal.Decimal `json:"target_buy_price"`
	TargetSellPrice *decimal.Decimal `json:"target_sell_price"`
	Notes           *string          `json:"notes"`
}

// UpdateRequest patches an instrument; nil fields are left unchanged.
type UpdateRequest struct {
	Name            *string          `json:"name"`
	Sector          *string          `json:"sector"`
	Subsector       *string          `json:"subsector"`
	TargetBuyPrice  *decimal.Decimal `json:"target_buy_price"`
	TargetSellPrice *decimal.Decimal `json:"target_sell_price"`
	Notes           *string          `json:"notes"`
	IsActive        *bool            `json:"is_active"`
}

// Service implements instrument use cases.
type Service struct {
	repo   *Repository
	names  NameLookup
	events events.Emitter
	log    zerolog.Logger
}

// NewService creates an instrument service. names may be nil.
func NewService(repo *Repository, names NameLookup, emitter events.Emitter, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		repo:   repo,
		names:  names,
		events: emitter,
		log:    log.With().Str("service", "instruments").Logger(),
	}
}

// Repository returns the underlying repository.
func (s *Service) Repository() *Repository {
	return s.repo
}

func validatePrice(field string, d *decimal.Decimal) error {
	if d != nil && d.IsNegative() {
		return domain.NewValidationError(field, "cannot be negative")
	}
	return nil
}

// Create registers a new instrument. Without a name, the market data name is
// used when available, else the ticker itself.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Instrument, error) {
	ticker := domain.NormalizeTicker(req.Ticker)
	if err := ValidateTicker(ticker); err != nil {
		return nil, err
	}
	if err := validatePrice("target_buy_price", req.TargetBuyPrice); err != nil {
		return nil, err
	}
	if err := validatePrice("target_sell_price", req.TargetSellPrice); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" && s.names != nil {
		if looked, err := s.names.Name(ctx, ticker); err == nil {
			name = looked
		} else {
			s.log.Debug().Err(err).Str("ticker", ticker).Msg("Name lookup failed")
		}
	}
	if name == "" {
		name = ticker
	}

	inst := &domain.Instrument{
		Ticker:          ticker,
		Name:            name,
		Sector:          req.Sector,
		Subsector:       req.Subsector,
		TargetBuyPrice:  req.TargetBuyPrice,
		TargetSellPrice: req.TargetSellPrice,
		Notes:           req.Notes,
		IsActive:        true,
	}
	if err := s.repo.Create(ctx, inst); err != nil {
		return nil, err
	}

	s.events.Emit(events.InstrumentChanged, "instruments", map[string]interface{}{
		"ticker": inst.Ticker, "action": "created",
	})
	return inst, nil
}

// Get returns the instrument or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, ticker string) (*domain.Instrument, error) {
	inst, err := s.repo.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("instrument %s: %w", domain.NormalizeTicker(ticker), domain.ErrNotFound)
	}
	return inst, nil
}

// List returns instruments matching f.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Instrument, error) {
	return s.repo.List(ctx, f)
}

// Update applies req to the instrument.
func (s *Service) Update(ctx context.Context, ticker string, req UpdateRequest) (*domain.Instrument, error) {
	inst, err := s.Get(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := validatePrice("target_buy_price", req.TargetBuyPrice); err != nil {
		return nil, err
	}
	if err := validatePrice("target_sell_price", req.TargetSellPrice); err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "cannot be empty")
		}
		inst.Name = name
	}
	if req.Sector != nil {
		inst.Sector = req.Sector
	}
	if req.Subsector != nil {
		inst.Subsector = req.Subsector
	}
	if req.TargetBuyPrice != nil {
		inst.TargetBuyPrice = req.TargetBuyPrice
	}
	if req.TargetSellPrice != nil {
		inst.TargetSellPrice = req.TargetSellPrice
	}
	if req.Notes != nil {
		inst.Notes = req.Notes
	}
	if req.IsActive != nil {
		inst.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, inst); err != nil {
		return nil, err
	}

	s.events.Emit(events.InstrumentChanged, "instruments", map[string]interface{}{
		"ticker": inst.Ticker, "action": "updated",
	})
	return inst, nil
}

// Delete removes an unreferenced instrument. Instruments with transactions or
// dividends are deactivated instead; the boolean reports which happened.
// The instrument is deactivated first so the write lock is held while the
// references are counted and a concurrent insert cannot slip in between.
func (s *Service) Delete(ctx context.Context, ticker string) (deactivated bool, err error) {
	inst, err := s.Get(ctx, ticker)
	if err != nil {
		return false, err
	}

	var referenced bool
	err = database.WithTransaction(ctx, s.repo.DB(), func(tx *sql.Tx) error {
		if err := s.repo.DeactivateWith(ctx, tx, inst.ID); err != nil {
			return err
		}
		var err error
		referenced, err = s.repo.IsReferencedWith(ctx, tx, inst.ID)
		if err != nil || referenced {
			return err
		}
		return s.repo.DeleteWith(ctx, tx, inst.ID)
	})
	if err != nil {
		return false, err
	}

	if referenced {
		s.log.Info().Str("ticker", inst.Ticker).Msg("Instrument deactivated (has ledger history)")
	}
	s.events.Emit(events.InstrumentChanged, "instruments", map[string]interface{}{
		"ticker": inst.Ticker, "action": "deleted", "deactivated": referenced,
	})
	return referenced, nil
}
