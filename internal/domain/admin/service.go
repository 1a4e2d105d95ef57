package admin

import (
	"context"
	"errors"
	"time"

	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/domain/redeem"
	"github.com/nullprotocol/creditledger/internal/pkg/logger"
)

// Service holds admin membership and the bulk operations built on the
// account ledger and code registry.
type Service struct {
	repo     *Repository
	accounts *account.Service
	codes    *redeem.Service
	ownerID  int64
	now      func() time.Time
}

// NewService creates the admin service. ownerID is always treated as an
// owner-level admin; zero means no owner is configured.
func NewService(repo *Repository, accounts *account.Service, codes *redeem.Service, ownerID int64) *Service {
	return &Service{repo: repo, accounts: accounts, codes: codes, ownerID: ownerID, now: time.Now}
}

// LevelOf returns the level of id, or ErrAdminNotFound.
func (s *Service) LevelOf(ctx context.Context, id int64) (Level, error) {
	if s.ownerID != 0 && id == s.ownerID {
		return LevelOwner, nil
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return a.Level, nil
}

func (s *Service) IsAdmin(ctx context.Context, id int64) (bool, error) {
	_, err := s.LevelOf(ctx, id)
	if errors.Is(err, ErrAdminNotFound) {
		return false, nil
	}
	return err == nil, err
}

// AddAdmin grants level to id on behalf of actorID. The actor must outrank
// both the requested level and any level id already holds.
func (s *Service) AddAdmin(ctx context.Context, actorID, id int64, level Level) (*Admin, error) {
	if level == "" {
		level = LevelAdmin
	}
	if level != LevelAdmin && level != LevelModerator {
		return nil, ErrInvalidLevel
	}
	if id <= 0 {
		return nil, account.ErrInvalidAccountID
	}
	if id == s.ownerID {
		return nil, ErrInsufficientRank
	}

	actorLevel, err := s.LevelOf(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actorLevel.Outranks(level) {
		return nil, ErrInsufficientRank
	}
	if current, err := s.repo.Get(ctx, id); err == nil {
		if !actorLevel.Outranks(current.Level) {
			return nil, ErrInsufficientRank
		}
	} else if !errors.Is(err, ErrAdminNotFound) {
		return nil, err
	}

	addedBy := actorID
	a := &Admin{ID: id, Level: level, AddedBy: &addedBy, AddedAt: s.now().UTC()}
	if err := s.repo.Upsert(ctx, a); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Int64("admin_id", id).
		Str("level", string(level)).
		Int64("added_by", actorID).
		Msg("admin added")

	return s.repo.Get(ctx, id)
}

// RemoveAdmin revokes id's rights. The owner can never be removed.
func (s *Service) RemoveAdmin(ctx context.Context, actorID, id int64) error {
	if s.ownerID != 0 && id == s.ownerID {
		return ErrCannotRemoveOwner
	}
	actorLevel, err := s.LevelOf(ctx, actorID)
	if err != nil {
		return err
	}
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actorLevel.Outranks(target.Level) {
		return ErrInsufficientRank
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Int64("admin_id", id).Int64("removed_by", actorID).Msg("admin removed")
	return nil
}

// ListAdmins returns the configured owner first, then stored admins.
func (s *Service) ListAdmins(ctx context.Context) ([]Admin, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.ownerID == 0 {
		return stored, nil
	}
	admins := make([]Admin, 0, len(stored)+1)
	admins = append(admins, Admin{ID: s.ownerID, Level: LevelOwner})
	for _, a := range stored {
		if a.ID != s.ownerID {
			admins = append(admins, a)
		}
	}
	return admins, nil
}

// BulkAdjustCredits applies delta to every id atomically.
func (s *Service) BulkAdjustCredits(ctx context.Context, ids []int64, delta int64) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyTargets
	}
	if delta == 0 {
		return nil, ErrZeroDelta
	}
	n, err := s.accounts.AdjustCreditsBulk(ctx, ids, delta)
	if err != nil {
		return nil, err
	}
	return &BulkResult{Accounts: n, Delta: delta}, nil
}

// DeleteAllExpired removes every expired code one by one. A code deleted
// concurrently is not a failure.
func (s *Service) DeleteAllExpired(ctx context.Context) (*SweepResult, error) {
	expired, err := s.codes.ListExpired(ctx)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{Deleted: make([]string, 0, len(expired))}
	for _, c := range expired {
		err := s.codes.Delete(ctx, c.Code)
		switch {
		case err == nil:
			res.Deleted = append(res.Deleted, c.Code)
		case errors.Is(err, redeem.ErrCodeNotFound):
		default:
			logger.FromContext(ctx).Error().Err(err).Str("code", c.Code).Msg("delete expired code failed")
			res.Failed = append(res.Failed, c.Code)
		}
	}

	if len(res.Deleted) > 0 {
		logger.FromContext(ctx).Info().Int("count", len(res.Deleted)).Msg("expired codes deleted")
	}
	return res, nil
}
