package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nullprotocol/creditledger/internal/pkg/logger"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

const (
	maxDisplayName = 128
	defaultLimit   = 10
	maxLimit       = 500

	defaultStatDays = 7
	maxStatDays     = 90
)

// ReferralGranter credits a referrer when a referred account is created.
// GrantTx runs inside the creating transaction; Announce runs after commit.
type ReferralGranter interface {
	GrantTx(ctx context.Context, q sqlstore.Querier, referrerID, referredID int64) error
	Announce(referrerID, referredID int64)
}

// Config tunes account creation.
type Config struct {
	StartingCredits int64
	Now             func() time.Time
}

// Service is the account ledger.
type Service struct {
	db        sqlstore.Backend
	repo      *Repository
	referrals ReferralGranter
	cfg       Config
}

// NewService creates the account ledger. referrals may be nil, in which case
// no referral bonus is ever granted.
func NewService(db sqlstore.Backend, repo *Repository, referrals ReferralGranter, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{db: db, repo: repo, referrals: referrals, cfg: cfg}
}

func (s *Service) now() time.Time {
	return s.cfg.Now().UTC()
}

// Get returns the account or nil when none exists.
func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, nil
	}
	return a, err
}

// CreateIfAbsent registers id on first contact and reports whether a new
// account was created. A referrer equal to id, or one that does not exist,
// is dropped. The referral bonus commits or rolls back with the creation.
func (s *Service) CreateIfAbsent(ctx context.Context, id int64, displayName string, referrerID *int64) (bool, error) {
	if id <= 0 {
		return false, ErrInvalidAccountID
	}
	name, err := normalizeName(displayName)
	if err != nil {
		return false, err
	}

	var referrer *int64
	if referrerID != nil && *referrerID != id && *referrerID > 0 {
		ref := *referrerID
		referrer = &ref
	}

	var created bool
	err = s.db.WithTx(ctx, func(ctx context.Context, q sqlstore.Querier) error {
		created = false
		if referrer != nil {
			ok, err := s.repo.ExistsTx(ctx, q, *referrer)
			if err != nil {
				return err
			}
			if !ok {
				referrer = nil
			}
		}

		var err error
		now := s.now()
		created, err = s.repo.InsertIfAbsentTx(ctx, q, &Account{
			ID:          id,
			DisplayName: name,
			Credits:     s.cfg.StartingCredits,
			JoinedAt:    now,
			ReferrerID:  referrer,
			LastActive:  now,
		})
		if err != nil || !created || referrer == nil || s.referrals == nil {
			return err
		}
		return s.referrals.GrantTx(ctx, q, *referrer, id)
	})
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Int64("account_id", id).Msg("create account failed")
		return false, err
	}

	if created {
		event := logger.FromContext(ctx).Info().Int64("account_id", id).Int64("credits", s.cfg.StartingCredits)
		if referrer != nil {
			event = event.Int64("referrer_id", *referrer)
		}
		event.Msg("account created")

		if referrer != nil && s.referrals != nil {
			s.referrals.Announce(*referrer, id)
		}
	}
	return created, nil
}

// AdjustCredits adds delta to the balance. Positive deltas also raise
// total_earned; negative ones may take the balance below zero.
func (s *Service) AdjustCredits(ctx context.Context, id, delta int64) error {
	if err := s.repo.Adjust(ctx, id, delta); err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Int64("account_id", id).Int64("delta", delta).Msg("credits adjusted")
	return nil
}

// AdjustCreditsBulk applies AdjustCredits to every distinct id in one
// transaction. An unknown id rolls the whole batch back.
func (s *Service) AdjustCreditsBulk(ctx context.Context, ids []int64, delta int64) (int, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return 0, nil
	}

	err := s.db.WithTx(ctx, func(ctx context.Context, q sqlstore.Querier) error {
		for _, id := range unique {
			if err := s.repo.AdjustTx(ctx, q, id, delta); err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return fmt.Errorf("%w: %d", ErrAccountNotFound, id)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.FromContext(ctx).Info().
		Int("accounts", len(unique)).
		Int64("delta", delta).
		Msg("bulk adjustment applied")
	return len(unique), nil
}

func (s *Service) SetBanned(ctx context.Context, id int64, banned bool) error {
	if err := s.repo.SetBanned(ctx, id, banned); err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Int64("account_id", id).Bool("banned", banned).Msg("ban flag updated")
	return nil
}

// ResetCredits zeroes the balance. total_earned is untouched.
func (s *Service) ResetCredits(ctx context.Context, id int64) error {
	if err := s.repo.ResetCredits(ctx, id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Int64("account_id", id).Msg("credits reset")
	return nil
}

// Delete removes the account together with its claims, and clears the
// referrer of every account it referred.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.db.WithTx(ctx, func(ctx context.Context, q sqlstore.Querier) error {
		return s.repo.DeleteTx(ctx, q, id)
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Int64("account_id", id).Msg("account deleted")
	return nil
}

func (s *Service) UpdateDisplayName(ctx context.Context, id int64, displayName string) error {
	name, err := normalizeName(displayName)
	if err != nil {
		return err
	}
	return s.repo.UpdateDisplayName(ctx, id, name)
}

// Touch records activity for id.
func (s *Service) Touch(ctx context.Context, id int64) error {
	return s.repo.Touch(ctx, id, s.now())
}

func (s *Service) Stats(ctx context.Context, id int64) (*Stats, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Stats(ctx, id)
}

func (s *Service) LedgerStats(ctx context.Context) (*LedgerStats, error) {
	return s.repo.LedgerStats(ctx)
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Account, error) {
	return s.repo.Leaderboard(ctx, clampLimit(limit))
}

// ListPremium returns accounts holding at least PremiumCredits.
func (s *Service) ListPremium(ctx context.Context, limit int) ([]Account, error) {
	return s.repo.ListMinCredits(ctx, PremiumCredits, clampLimit(limit))
}

// ListLowCredits returns accounts holding at most LowCredits.
func (s *Service) ListLowCredits(ctx context.Context, limit int) ([]Account, error) {
	return s.repo.ListMaxCredits(ctx, LowCredits, clampLimit(limit))
}

// ListInactive returns unbanned accounts with no activity in the last days.
func (s *Service) ListInactive(ctx context.Context, days int, limit int) ([]Account, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	return s.repo.ListInactiveSince(ctx, cutoff, clampLimit(limit))
}

// ListJoinedBetween returns accounts registered between from and to,
// both inclusive.
func (s *Service) ListJoinedBetween(ctx context.Context, from, to time.Time, limit int) ([]Account, error) {
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	return s.repo.ListJoinedBetween(ctx, from.UTC(), to.UTC(), clampLimit(limit))
}

// ListRecent returns the newest registrations first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Account, error) {
	return s.repo.ListRecent(ctx, clampLimit(limit))
}

// DailyStats reports new accounts and claims for each of the last days UTC
// days, today included, oldest first. Quiet days are reported with zeros.
func (s *Service) DailyStats(ctx context.Context, days int) ([]DailyStat, error) {
	if days <= 0 {
		days = defaultStatDays
	}
	if days > maxStatDays {
		days = maxStatDays
	}
	today := s.now().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -(days - 1))

	counted, err := s.repo.DailyStats(ctx, first)
	if err != nil {
		return nil, err
	}

	stats := make([]DailyStat, 0, days)
	for d := first; !d.After(today); d = d.AddDate(0, 0, 1) {
		day := d.Format(time.DateOnly)
		if c, ok := counted[day]; ok {
			stats = append(stats, *c)
			continue
		}
		stats = append(stats, DailyStat{Day: day})
	}
	return stats, nil
}

func (s *Service) Search(ctx context.Context, query string, limit int) ([]Account, error) {
	query = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(query), "@"))
	if query == "" {
		return []Account{}, nil
	}
	id, _ := strconv.ParseInt(query, 10, 64)
	return s.repo.Search(ctx, query, id, clampLimit(limit))
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxDisplayName {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	// Fixed order keeps concurrent batches from deadlocking on postgres.
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
