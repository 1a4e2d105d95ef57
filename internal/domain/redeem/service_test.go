package redeem_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/domain/redeem"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore/sqlstoretest"
)

type fixture struct {
	accounts *account.Service
	service  *redeem.Service

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T, b sqlstore.Backend, throttle redeem.Throttle) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	repo := account.NewRepository(b)
	f.accounts = account.NewService(b, repo, nil, account.Config{StartingCredits: 5, Now: f.clock})
	f.service = redeem.NewService(b, redeem.NewRepository(b), repo, throttle, redeem.Config{Now: f.clock})
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fixture) mustCreate(t *testing.T, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		if _, err := f.accounts.CreateIfAbsent(context.Background(), id, "", nil); err != nil {
			t.Fatalf("CreateIfAbsent(%d): %v", id, err)
		}
	}
}

func (f *fixture) mustDefine(t *testing.T, code string, amount int64, maxUses int, expiry time.Duration) {
	t.Helper()
	_, err := f.service.Define(context.Background(), redeem.DefineInput{
		Code: code, Amount: amount, MaxUses: maxUses, Expiry: expiry,
	})
	if err != nil {
		t.Fatalf("Define(%s): %v", code, err)
	}
}

func (f *fixture) credits(t *testing.T, id int64) (int64, int64) {
	t.Helper()
	a, err := f.accounts.Get(context.Background(), id)
	if err != nil || a == nil {
		t.Fatalf("Get(%d) = (%v, %v)", id, a, err)
	}
	return a.Credits, a.TotalEarned
}

func TestClaimRoundTrip(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		ctx := context.Background()
		f.mustCreate(t, 42)
		f.mustDefine(t, "WELCOME50", 50, 10, 0)

		res := f.service.Claim(ctx, 42, "welcome50")
		if res.Status != redeem.StatusGranted || res.Amount != 50 {
			t.Fatalf("Claim = %+v, want granted 50", res)
		}
		if credits, earned := f.credits(t, 42); credits != 55 || earned != 50 {
			t.Fatalf("credits/earned = %d/%d, want 55/50", credits, earned)
		}

		stats, err := f.service.UsageStats(ctx, "WELCOME50")
		if err != nil {
			t.Fatalf("UsageStats: %v", err)
		}
		if stats.CurrentUses != 1 || stats.DistinctClaimants != 1 || stats.Claimants[0] != 42 {
			t.Fatalf("stats = %+v", stats)
		}

		if res := f.service.Claim(ctx, 42, "WELCOME50"); res.Status != redeem.StatusAlreadyClaimed {
			t.Fatalf("second Claim = %+v, want already_claimed", res)
		}
		if credits, _ := f.credits(t, 42); credits != 55 {
			t.Fatalf("credits after repeat = %d, want 55", credits)
		}

		history, err := f.service.History(ctx, 42, 0)
		if err != nil || len(history) != 1 || history[0].Code != "WELCOME50" || history[0].Amount != 50 {
			t.Fatalf("History = (%+v, %v)", history, err)
		}
	})
}

func TestClaimRejections(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		ctx := context.Background()
		f.mustCreate(t, 1, 2)
		f.mustDefine(t, "OFF", 10, 5, 0)
		if err := f.service.Deactivate(ctx, "off"); err != nil {
			t.Fatalf("Deactivate: %v", err)
		}
		f.mustDefine(t, "ONCE", 10, 1, 0)

		tests := []struct {
			account int64
			code    string
			want    redeem.ClaimStatus
		}{
			{1, "MISSING", redeem.StatusNotFound},
			{1, "bad code!", redeem.StatusNotFound},
			{1, "OFF", redeem.StatusInactive},
			{1, "ONCE", redeem.StatusGranted},
			{2, "ONCE", redeem.StatusLimitReached},
			{99, "MISSING", redeem.StatusNotFound},
		}
		for _, tt := range tests {
			if got := f.service.Claim(ctx, tt.account, tt.code); got.Status != tt.want {
				t.Fatalf("Claim(%d, %q) = %+v, want %s", tt.account, tt.code, got, tt.want)
			}
		}

		if credits, earned := f.credits(t, 2); credits != 5 || earned != 0 {
			t.Fatalf("rejected claimant credits/earned = %d/%d, want 5/0", credits, earned)
		}
	})
}

func TestClaimByUnknownAccountRollsBack(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		ctx := context.Background()
		f.mustDefine(t, "GHOST", 10, 1, 0)

		if res := f.service.Claim(ctx, 404, "GHOST"); res.Status != redeem.StatusAccountNotFound {
			t.Fatalf("Claim = %+v, want account_not_found", res)
		}
		c, err := f.service.Get(ctx, "GHOST")
		if err != nil || c.CurrentUses != 0 {
			t.Fatalf("code after failed claim = (%+v, %v), want 0 uses", c, err)
		}
	})
}

func TestClaimStorageFailureAppliesNothing(t *testing.T) {
	b := sqlstoretest.SQLite(t)
	f := newFixture(t, b, nil)
	ctx := context.Background()
	f.mustCreate(t, 1)
	f.mustDefine(t, "FAULT", 10, 5, 0)

	// Fails the last statement of the claim, after uses and credits moved.
	if _, err := b.Exec(ctx, `
		CREATE TRIGGER claims_fail BEFORE INSERT ON claims
		BEGIN SELECT RAISE(ABORT, 'disk quota exceeded'); END
	`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	res := f.service.Claim(ctx, 1, "FAULT")
	if res.Status != redeem.StatusStorageFailure || res.Amount != 0 {
		t.Fatalf("Claim = %+v, want storage_failure", res)
	}
	if !strings.Contains(res.Detail, "disk quota exceeded") {
		t.Fatalf("detail = %q, want the engine diagnostic", res.Detail)
	}

	if credits, earned := f.credits(t, 1); credits != 5 || earned != 0 {
		t.Fatalf("credits/earned = %d/%d, want 5/0", credits, earned)
	}
	c, err := f.service.Get(ctx, "FAULT")
	if err != nil || c.CurrentUses != 0 {
		t.Fatalf("code after failed claim = (%+v, %v), want 0 uses", c, err)
	}
	if history, err := f.service.History(ctx, 1, 0); err != nil || len(history) != 0 {
		t.Fatalf("History = (%+v, %v), want empty", history, err)
	}
}

func TestClaimOnClosedBackend(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		f.mustCreate(t, 1)
		f.mustDefine(t, "X1", 10, 5, 0)
		if err := b.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		res := f.service.Claim(context.Background(), 1, "X1")
		if res.Status != redeem.StatusStorageFailure || res.Granted() {
			t.Fatalf("Claim = %+v, want storage_failure", res)
		}
		if !strings.Contains(res.Detail, "closed") {
			t.Fatalf("detail = %q, want the closed-database diagnostic", res.Detail)
		}
	})
}

func TestClaimExpiry(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		ctx := context.Background()
		f.mustCreate(t, 1, 2)
		f.mustDefine(t, "FLASH", 7, 100, time.Minute)

		f.advance(30 * time.Second)
		if res := f.service.Claim(ctx, 1, "FLASH"); res.Status != redeem.StatusGranted {
			t.Fatalf("Claim before expiry = %+v, want granted", res)
		}

		f.advance(31 * time.Second)
		if res := f.service.Claim(ctx, 2, "FLASH"); res.Status != redeem.StatusExpired {
			t.Fatalf("Claim after expiry = %+v, want expired", res)
		}

		expired, err := f.service.ListExpired(ctx)
		if err != nil || len(expired) != 1 || expired[0].Code != "FLASH" {
			t.Fatalf("ListExpired = (%+v, %v)", expired, err)
		}
	})
}

func TestConcurrentClaimsRespectMaxUses(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		ctx := context.Background()
		const maxUses, claimants = 3, 12

		ids := make([]int64, claimants)
		for i := range ids {
			ids[i] = int64(1000 + i)
		}
		f.mustCreate(t, ids...)
		f.mustDefine(t, "RUSH", 20, maxUses, 0)

		results := make([]redeem.ClaimResult, claimants)
		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			go func(i int, id int64) {
				defer wg.Done()
				results[i] = f.service.Claim(ctx, id, "RUSH")
			}(i, id)
		}
		wg.Wait()

		granted := 0
		for _, res := range results {
			switch res.Status {
			case redeem.StatusGranted:
				granted++
			case redeem.StatusLimitReached:
			default:
				t.Fatalf("unexpected result %+v", res)
			}
		}
		if granted != maxUses {
			t.Fatalf("granted = %d, want %d", granted, maxUses)
		}

		stats, err := f.service.UsageStats(ctx, "RUSH")
		if err != nil {
			t.Fatalf("UsageStats: %v", err)
		}
		if stats.CurrentUses != maxUses || stats.DistinctClaimants != maxUses {
			t.Fatalf("uses/claimants = %d/%d, want %d", stats.CurrentUses, stats.DistinctClaimants, maxUses)
		}
	})
}

func TestConcurrentClaimsBySameAccountGrantOnce(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		ctx := context.Background()
		f.mustCreate(t, 7)
		f.mustDefine(t, "TWICE", 10, 50, 0)

		const attempts = 8
		statuses := make(chan redeem.ClaimStatus, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				statuses <- f.service.Claim(ctx, 7, "TWICE").Status
			}()
		}
		wg.Wait()
		close(statuses)

		granted := 0
		for s := range statuses {
			switch s {
			case redeem.StatusGranted:
				granted++
			case redeem.StatusAlreadyClaimed:
			default:
				t.Fatalf("unexpected status %s", s)
			}
		}
		if granted != 1 {
			t.Fatalf("granted = %d, want 1", granted)
		}
		if credits, earned := f.credits(t, 7); credits != 15 || earned != 10 {
			t.Fatalf("credits/earned = %d/%d, want 15/10", credits, earned)
		}
		c, err := f.service.Get(ctx, "TWICE")
		if err != nil || c.CurrentUses != 1 {
			t.Fatalf("code = (%+v, %v), want 1 use", c, err)
		}
	})
}

func TestRedefineKeepsClaims(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		ctx := context.Background()
		f.mustCreate(t, 1, 2, 3)
		f.mustDefine(t, "EDIT", 10, 5, 0)

		for _, id := range []int64{1, 2} {
			if res := f.service.Claim(ctx, id, "EDIT"); !res.Granted() {
				t.Fatalf("Claim(%d) = %+v", id, res)
			}
		}

		f.mustDefine(t, "EDIT", 25, 3, 0)
		c, err := f.service.Get(ctx, "EDIT")
		if err != nil || c.Amount != 25 || c.MaxUses != 3 || c.CurrentUses != 2 {
			t.Fatalf("redefined code = (%+v, %v)", c, err)
		}
		if res := f.service.Claim(ctx, 1, "EDIT"); res.Status != redeem.StatusAlreadyClaimed {
			t.Fatalf("reclaim after redefine = %+v, want already_claimed", res)
		}

		_, err = f.service.Define(ctx, redeem.DefineInput{Code: "EDIT", Amount: 25, MaxUses: 1})
		if !errors.Is(err, redeem.ErrMaxUsesBelowCurrent) {
			t.Fatalf("shrinking below current uses err = %v, want ErrMaxUsesBelowCurrent", err)
		}

		if res := f.service.Claim(ctx, 3, "EDIT"); res.Status != redeem.StatusGranted || res.Amount != 25 {
			t.Fatalf("Claim(3) = %+v, want granted 25", res)
		}
	})
}

func TestDefineValidation(t *testing.T) {
	f := newFixture(t, sqlstoretest.SQLite(t), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   redeem.DefineInput
		want error
	}{
		{"empty code", redeem.DefineInput{Code: " ", Amount: 1, MaxUses: 1}, redeem.ErrInvalidCode},
		{"zero amount", redeem.DefineInput{Code: "A1", Amount: 0, MaxUses: 1}, redeem.ErrInvalidAmount},
		{"zero uses", redeem.DefineInput{Code: "A1", Amount: 1, MaxUses: 0}, redeem.ErrInvalidMaxUses},
		{"seconds", redeem.DefineInput{Code: "A1", Amount: 1, MaxUses: 1, Expiry: 90 * time.Second}, redeem.ErrInvalidExpiry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.Define(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("Define err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestListingsAndDelete(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b, nil)
		ctx := context.Background()
		f.mustCreate(t, 1)
		f.mustDefine(t, "LIVE", 5, 5, 0)
		f.mustDefine(t, "PAUSED", 5, 5, 0)
		if err := f.service.Deactivate(ctx, "PAUSED"); err != nil {
			t.Fatalf("Deactivate: %v", err)
		}

		active, err := f.service.ListActive(ctx)
		if err != nil || len(active) != 1 || active[0].Code != "LIVE" {
			t.Fatalf("ListActive = (%+v, %v)", active, err)
		}
		inactive, err := f.service.ListInactive(ctx)
		if err != nil || len(inactive) != 1 || inactive[0].Code != "PAUSED" {
			t.Fatalf("ListInactive = (%+v, %v)", inactive, err)
		}

		if res := f.service.Claim(ctx, 1, "LIVE"); !res.Granted() {
			t.Fatalf("Claim = %+v", res)
		}
		if err := f.service.Delete(ctx, "live"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := f.service.Delete(ctx, "LIVE"); !errors.Is(err, redeem.ErrCodeNotFound) {
			t.Fatalf("second Delete err = %v, want ErrCodeNotFound", err)
		}

		// The claim outlives the definition.
		f.mustDefine(t, "LIVE", 5, 5, 0)
		if res := f.service.Claim(ctx, 1, "LIVE"); res.Status != redeem.StatusAlreadyClaimed {
			t.Fatalf("Claim of recreated code = %+v, want already_claimed", res)
		}
	})
}

type memThrottle struct {
	mu       sync.Mutex
	max      int
	failures map[int64]int
}

func (m *memThrottle) Blocked(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[id] >= m.max, nil
}

func (m *memThrottle) RecordFailure(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id]++
	return nil
}

func (m *memThrottle) Reset(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, id)
	return nil
}

func TestFailedGuessesAreThrottled(t *testing.T) {
	throttle := &memThrottle{max: 3, failures: map[int64]int{}}
	f := newFixture(t, sqlstoretest.SQLite(t), throttle)
	ctx := context.Background()
	f.mustCreate(t, 1)
	f.mustDefine(t, "REAL", 5, 5, 0)

	for i := 0; i < 3; i++ {
		if res := f.service.Claim(ctx, 1, "GUESS"); res.Status != redeem.StatusNotFound {
			t.Fatalf("guess %d = %+v, want not_found", i, res)
		}
	}
	if res := f.service.Claim(ctx, 1, "REAL"); res.Status != redeem.StatusThrottled {
		t.Fatalf("Claim while throttled = %+v, want throttled", res)
	}

	throttle.Reset(ctx, 1)
	if res := f.service.Claim(ctx, 1, "REAL"); !res.Granted() {
		t.Fatalf("Claim after reset = %+v, want granted", res)
	}
}
