package redeem

import (
	"context"
	"errors"
	"time"

	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/pkg/logger"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// DefineInput describes a code definition.
type DefineInput struct {
	Code    string
	Amount  int64
	MaxUses int
	Expiry  time.Duration
}

type Config struct {
	Now func() time.Time
}

// Service is the redeem code registry.
type Service struct {
	db       sqlstore.Backend
	repo     *Repository
	accounts *account.Repository
	throttle Throttle
	now      func() time.Time
}

// NewService creates the registry. throttle may be nil.
func NewService(db sqlstore.Backend, repo *Repository, accounts *account.Repository, throttle Throttle, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{db: db, repo: repo, accounts: accounts, throttle: throttle, now: cfg.Now}
}

// Define creates or replaces a code. Prior claims and current uses survive a
// redefinition, and the expiry window restarts from now.
func (s *Service) Define(ctx context.Context, in DefineInput) (*Code, error) {
	code := NormalizeCode(in.Code)
	switch {
	case !validCode(code):
		return nil, ErrInvalidCode
	case in.Amount <= 0:
		return nil, ErrInvalidAmount
	case in.MaxUses <= 0:
		return nil, ErrInvalidMaxUses
	case in.Expiry < 0 || in.Expiry%time.Minute != 0:
		return nil, ErrInvalidExpiry
	}

	c := &Code{
		Code:          code,
		Amount:        in.Amount,
		MaxUses:       in.MaxUses,
		ExpiryMinutes: int(in.Expiry / time.Minute),
		CreatedAt:     s.now().UTC(),
		IsActive:      true,
	}
	written, err := s.repo.Upsert(ctx, c)
	if err != nil {
		return nil, err
	}
	if !written {
		return nil, ErrMaxUsesBelowCurrent
	}

	logger.FromContext(ctx).Info().
		Str("code", code).
		Int64("amount", c.Amount).
		Int("max_uses", c.MaxUses).
		Int("expiry_minutes", c.ExpiryMinutes).
		Msg("redeem code defined")

	return s.repo.Get(ctx, code)
}

// Generate defines a code with a random name under prefix.
func (s *Service) Generate(ctx context.Context, prefix string, amount int64, maxUses int, expiry time.Duration) (*Code, error) {
	code, err := GenerateCode(prefix)
	if err != nil {
		return nil, err
	}
	return s.Define(ctx, DefineInput{Code: code, Amount: amount, MaxUses: maxUses, Expiry: expiry})
}

type rejection ClaimStatus

func (r rejection) Error() string { return "claim rejected: " + string(r) }

// Claim redeems code for accountID. Business outcomes come back as a status;
// infrastructure faults come back as StatusStorageFailure and leave nothing
// applied.
func (s *Service) Claim(ctx context.Context, accountID int64, raw string) ClaimResult {
	l := logger.FromContext(ctx).With().Int64("account_id", accountID).Logger()
	code := NormalizeCode(raw)

	if s.throttle != nil {
		blocked, err := s.throttle.Blocked(ctx, accountID)
		if err != nil {
			l.Warn().Err(err).Msg("redeem throttle unavailable")
		} else if blocked {
			l.Info().Msg("redeem throttled")
			return ClaimResult{Status: StatusThrottled}
		}
	}

	if !validCode(code) {
		s.recordFailure(ctx, accountID)
		return ClaimResult{Status: StatusNotFound}
	}

	var amount int64
	err := s.db.WithTx(ctx, func(ctx context.Context, q sqlstore.Querier) error {
		claimed, err := s.repo.ClaimExistsTx(ctx, q, accountID, code)
		if err != nil {
			return err
		}
		if claimed {
			return rejection(StatusAlreadyClaimed)
		}

		c, err := s.repo.GetTx(ctx, q, code)
		if errors.Is(err, ErrCodeNotFound) {
			return rejection(StatusNotFound)
		}
		if err != nil {
			return err
		}
		switch {
		case !c.IsActive:
			return rejection(StatusInactive)
		case c.ExpiredAt(s.now()):
			return rejection(StatusExpired)
		case c.Exhausted():
			return rejection(StatusLimitReached)
		}

		ok, err := s.repo.IncrementUsesTx(ctx, q, code)
		if err != nil {
			return err
		}
		if !ok {
			return rejection(StatusLimitReached)
		}

		if err := s.accounts.AdjustTx(ctx, q, accountID, c.Amount); err != nil {
			if errors.Is(err, account.ErrAccountNotFound) {
				return rejection(StatusAccountNotFound)
			}
			return err
		}

		if err := s.repo.InsertClaimTx(ctx, q, accountID, code, s.now().UTC()); err != nil {
			if errors.Is(err, sqlstore.ErrConflict) {
				return rejection(StatusAlreadyClaimed)
			}
			return err
		}
		amount = c.Amount
		return nil
	})

	var rej rejection
	switch {
	case err == nil:
		l.Info().Str("code", code).Int64("amount", amount).Msg("code redeemed")
		if s.throttle != nil {
			if err := s.throttle.Reset(ctx, accountID); err != nil {
				l.Warn().Err(err).Msg("reset redeem throttle")
			}
		}
		return ClaimResult{Status: StatusGranted, Amount: amount}
	case errors.As(err, &rej):
		status := ClaimStatus(rej)
		l.Info().Str("code", code).Str("status", string(status)).Msg("redeem rejected")
		switch status {
		case StatusNotFound, StatusInactive, StatusExpired:
			s.recordFailure(ctx, accountID)
		}
		return ClaimResult{Status: status}
	default:
		l.Error().Err(err).Str("code", code).Msg("redeem failed")
		return ClaimResult{Status: StatusStorageFailure, Detail: err.Error()}
	}
}

func (s *Service) recordFailure(ctx context.Context, accountID int64) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, accountID); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Int64("account_id", accountID).Msg("record redeem failure")
	}
}

func (s *Service) Get(ctx context.Context, code string) (*Code, error) {
	return s.repo.Get(ctx, NormalizeCode(code))
}

// Deactivate stops a code from being redeemed without deleting it.
func (s *Service) Deactivate(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if err := s.repo.SetActive(ctx, code, false); err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Str("code", code).Msg("redeem code deactivated")
	return nil
}

func (s *Service) Delete(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if err := s.repo.Delete(ctx, code); err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Str("code", code).Msg("redeem code deleted")
	return nil
}

func (s *Service) ListActive(ctx context.Context) ([]Code, error) {
	return s.repo.ListByActive(ctx, true)
}

func (s *Service) ListInactive(ctx context.Context) ([]Code, error) {
	return s.repo.ListByActive(ctx, false)
}

func (s *Service) ListAll(ctx context.Context) ([]Code, error) {
	return s.repo.ListAll(ctx)
}

// ListExpired returns every code whose expiry window has elapsed, whatever
// its active flag.
func (s *Service) ListExpired(ctx context.Context) ([]Code, error) {
	codes, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	expired := make([]Code, 0)
	for _, c := range codes {
		if c.ExpiredAt(now) {
			expired = append(expired, c)
		}
	}
	return expired, nil
}

// List dispatches on filter; an unknown filter lists everything.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Code, error) {
	switch filter {
	case FilterActive:
		return s.ListActive(ctx)
	case FilterInactive:
		return s.ListInactive(ctx)
	case FilterExpired:
		return s.ListExpired(ctx)
	default:
		return s.ListAll(ctx)
	}
}

func (s *Service) UsageStats(ctx context.Context, code string) (*UsageStats, error) {
	c, err := s.repo.Get(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	claimants, err := s.repo.Claimants(ctx, c.Code)
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{
		Code:              c.Code,
		Amount:            c.Amount,
		MaxUses:           c.MaxUses,
		CurrentUses:       c.CurrentUses,
		DistinctClaimants: len(claimants),
		Claimants:         claimants,
		IsActive:          c.IsActive,
	}
	if at, ok := c.ExpiresAt(); ok {
		stats.ExpiresAt = &at
	}
	return stats, nil
}

// History lists the latest claims made by accountID.
func (s *Service) History(ctx context.Context, accountID int64, limit int) ([]ClaimRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.History(ctx, accountID, limit)
}
