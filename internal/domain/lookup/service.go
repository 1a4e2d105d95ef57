package lookup

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nullprotocol/creditledger/internal/pkg/logger"
)

var ErrInvalidAPIType = errors.New("api type is required")

const defaultActivityDays = 7

// Service records the lookup audit trail. It is append-only.
type Service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Append stores a lookup, truncating input and result to their column limits.
func (s *Service) Append(ctx context.Context, accountID int64, apiType, input, result string) error {
	apiType = strings.ToLower(strings.TrimSpace(apiType))
	if apiType == "" {
		return ErrInvalidAPIType
	}
	err := s.repo.Insert(ctx, &Log{
		AccountID:  accountID,
		APIType:    apiType,
		InputData:  truncate(input, MaxInputLength),
		Result:     truncate(result, MaxResultLength),
		LookedUpAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug().Int64("account_id", accountID).Str("api_type", apiType).Msg("lookup logged")
	return nil
}

// CountByType counts lookups per API type, for one account when accountID
// is non-nil.
func (s *Service) CountByType(ctx context.Context, accountID *int64) ([]TypeCount, error) {
	if accountID != nil {
		return s.repo.CountByTypeFor(ctx, *accountID)
	}
	return s.repo.CountByType(ctx)
}

func (s *Service) Recent(ctx context.Context, accountID int64, limit int) ([]Log, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.Recent(ctx, accountID, limit)
}

// CountSince counts the lookups accountID made in the last days days,
// seven when days is not positive.
func (s *Service) CountSince(ctx context.Context, accountID int64, days int) (int64, error) {
	if days <= 0 {
		days = defaultActivityDays
	}
	return s.repo.CountSince(ctx, accountID, s.now().UTC().AddDate(0, 0, -days))
}

// Total counts every lookup ever logged.
func (s *Service) Total(ctx context.Context) (int64, error) {
	return s.repo.Total(ctx)
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
