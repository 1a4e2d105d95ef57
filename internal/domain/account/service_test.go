package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/domain/referral"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore/sqlstoretest"
)

type fixture struct {
	db      sqlstore.Backend
	repo    *account.Repository
	service *account.Service
	now     time.Time
}

func newFixture(t *testing.T, b sqlstore.Backend) *fixture {
	t.Helper()
	f := &fixture{db: b, repo: account.NewRepository(b), now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	engine := referral.NewEngine(b, f.repo, 3, nil)
	f.service = account.NewService(b, f.repo, engine, account.Config{
		StartingCredits: 5,
		Now:             func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) mustCreate(t *testing.T, id int64, referrer *int64) {
	t.Helper()
	created, err := f.service.CreateIfAbsent(context.Background(), id, "user", referrer)
	if err != nil {
		t.Fatalf("CreateIfAbsent(%d): %v", id, err)
	}
	if !created {
		t.Fatalf("CreateIfAbsent(%d) created = false, want true", id)
	}
}

func (f *fixture) mustGet(t *testing.T, id int64) *account.Account {
	t.Helper()
	a, err := f.service.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%d): %v", id, err)
	}
	if a == nil {
		t.Fatalf("Get(%d) = nil, want account", id)
	}
	return a
}

func ptr(v int64) *int64 { return &v }

func TestGetMissingReturnsNil(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		a, err := f.service.Get(context.Background(), 999)
		if err != nil || a != nil {
			t.Fatalf("Get = (%v, %v), want (nil, nil)", a, err)
		}
	})
}

func TestCreateIfAbsentIsIdempotent(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		ctx := context.Background()
		f.mustCreate(t, 100, nil)

		created, err := f.service.CreateIfAbsent(ctx, 200, "bob", ptr(100))
		if err != nil || !created {
			t.Fatalf("first create = (%v, %v)", created, err)
		}
		created, err = f.service.CreateIfAbsent(ctx, 200, "bob again", ptr(100))
		if err != nil || created {
			t.Fatalf("second create = (%v, %v), want (false, nil)", created, err)
		}

		referrer := f.mustGet(t, 100)
		if referrer.Credits != 5+3 || referrer.TotalEarned != 3 {
			t.Fatalf("referrer credits/earned = %d/%d, want 8/3", referrer.Credits, referrer.TotalEarned)
		}

		bob := f.mustGet(t, 200)
		if bob.Credits != 5 || bob.DisplayName != "bob" {
			t.Fatalf("bob = %+v", bob)
		}
		if bob.ReferrerID == nil || *bob.ReferrerID != 100 {
			t.Fatalf("bob.ReferrerID = %v, want 100", bob.ReferrerID)
		}
	})
}

func TestSelfAndUnknownReferrersAreDropped(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)

		f.mustCreate(t, 300, ptr(300))
		if a := f.mustGet(t, 300); a.ReferrerID != nil || a.Credits != 5 {
			t.Fatalf("self referral: %+v", a)
		}

		f.mustCreate(t, 301, ptr(424242))
		if a := f.mustGet(t, 301); a.ReferrerID != nil {
			t.Fatalf("unknown referrer stored: %v", *a.ReferrerID)
		}
	})
}

func TestConcurrentCreateGrantsBonusOnce(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		f.mustCreate(t, 1, nil)

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := f.service.CreateIfAbsent(context.Background(), 2, "racer", ptr(1))
				if err != nil {
					t.Errorf("CreateIfAbsent: %v", err)
					return
				}
				if ok {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if created != 1 {
			t.Fatalf("created = %d, want 1", created)
		}
		if a := f.mustGet(t, 1); a.Credits != 8 {
			t.Fatalf("referrer credits = %d, want 8", a.Credits)
		}
	})
}

type failingGranter struct{}

func (failingGranter) GrantTx(ctx context.Context, q sqlstore.Querier, referrerID, referredID int64) error {
	return errors.New("bonus ledger unavailable")
}

func (failingGranter) Announce(referrerID, referredID int64) {}

func TestReferralFailureRollsBackCreation(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		repo := account.NewRepository(b)
		svc := account.NewService(b, repo, failingGranter{}, account.Config{StartingCredits: 5})
		ctx := context.Background()

		if _, err := svc.CreateIfAbsent(ctx, 10, "", nil); err != nil {
			t.Fatalf("create referrer: %v", err)
		}
		if _, err := svc.CreateIfAbsent(ctx, 11, "", ptr(10)); err == nil {
			t.Fatal("expected referral failure to surface")
		}

		a, err := svc.Get(ctx, 11)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if a != nil {
			t.Fatal("account must not exist after a failed referral grant")
		}
	})
}

func TestAdjustCredits(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		ctx := context.Background()
		f.mustCreate(t, 7, nil)

		if err := f.service.AdjustCredits(ctx, 7, 10); err != nil {
			t.Fatalf("credit: %v", err)
		}
		a := f.mustGet(t, 7)
		if a.Credits != 15 || a.TotalEarned != 10 {
			t.Fatalf("after +10: credits/earned = %d/%d, want 15/10", a.Credits, a.TotalEarned)
		}

		if err := f.service.AdjustCredits(ctx, 7, -20); err != nil {
			t.Fatalf("debit: %v", err)
		}
		a = f.mustGet(t, 7)
		if a.Credits != -5 || a.TotalEarned != 10 {
			t.Fatalf("after -20: credits/earned = %d/%d, want -5/10", a.Credits, a.TotalEarned)
		}

		if err := f.service.AdjustCredits(ctx, 8, 1); !errors.Is(err, account.ErrAccountNotFound) {
			t.Fatalf("unknown account err = %v, want ErrAccountNotFound", err)
		}
	})
}

func TestConcurrentAdjustmentsAreNotLost(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		f.mustCreate(t, 70, nil)

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				delta := int64(1)
				if i%2 == 1 {
					delta = -1
				}
				if err := f.service.AdjustCredits(context.Background(), 70, delta); err != nil {
					t.Errorf("AdjustCredits: %v", err)
				}
			}(i)
		}
		wg.Wait()

		a := f.mustGet(t, 70)
		if a.Credits != 5 || a.TotalEarned != workers/2 {
			t.Fatalf("credits/earned = %d/%d, want 5/%d", a.Credits, a.TotalEarned, workers/2)
		}
	})
}

func TestAdjustCreditsBulk(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		ctx := context.Background()
		for _, id := range []int64{21, 22, 23} {
			f.mustCreate(t, id, nil)
		}

		n, err := f.service.AdjustCreditsBulk(ctx, []int64{21, 22, 22, 23}, 4)
		if err != nil {
			t.Fatalf("bulk: %v", err)
		}
		if n != 3 {
			t.Fatalf("adjusted = %d, want 3", n)
		}
		for _, id := range []int64{21, 22, 23} {
			if a := f.mustGet(t, id); a.Credits != 9 {
				t.Fatalf("account %d credits = %d, want 9", id, a.Credits)
			}
		}

		_, err = f.service.AdjustCreditsBulk(ctx, []int64{21, 99, 23}, 100)
		if !errors.Is(err, account.ErrAccountNotFound) {
			t.Fatalf("err = %v, want ErrAccountNotFound", err)
		}
		for _, id := range []int64{21, 23} {
			if a := f.mustGet(t, id); a.Credits != 9 {
				t.Fatalf("account %d credits = %d after rollback, want 9", id, a.Credits)
			}
		}

		if n, err := f.service.AdjustCreditsBulk(ctx, nil, 5); n != 0 || err != nil {
			t.Fatalf("empty bulk = (%d, %v), want (0, nil)", n, err)
		}
	})
}

func TestResetAndBan(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		ctx := context.Background()
		f.mustCreate(t, 40, nil)

		if err := f.service.AdjustCredits(ctx, 40, 50); err != nil {
			t.Fatalf("credit: %v", err)
		}
		if err := f.service.ResetCredits(ctx, 40); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if err := f.service.SetBanned(ctx, 40, true); err != nil {
			t.Fatalf("ban: %v", err)
		}

		a := f.mustGet(t, 40)
		if a.Credits != 0 || a.TotalEarned != 50 || !a.IsBanned {
			t.Fatalf("account = %+v", a)
		}

		if err := f.service.SetBanned(ctx, 41, true); !errors.Is(err, account.ErrAccountNotFound) {
			t.Fatalf("ban unknown err = %v", err)
		}
	})
}

func TestDeleteRemovesClaimsAndBackReferences(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		ctx := context.Background()
		f.mustCreate(t, 50, nil)
		f.mustCreate(t, 51, ptr(50))
		f.mustCreate(t, 52, nil)

		for _, id := range []int64{50, 52} {
			if _, err := b.Exec(ctx, `INSERT INTO claims (account_id, code, claimed_at) VALUES (?, ?, ?)`, id, "WELCOME", f.now); err != nil {
				t.Fatalf("seed claim: %v", err)
			}
		}

		if err := f.service.Delete(ctx, 50); err != nil {
			t.Fatalf("Delete: %v", err)
		}

		if a, _ := f.service.Get(ctx, 50); a != nil {
			t.Fatal("deleted account still present")
		}
		if a := f.mustGet(t, 51); a.ReferrerID != nil || a.Credits != 5 {
			t.Fatalf("referred account = %+v", a)
		}
		if a := f.mustGet(t, 52); a.Credits != 5 {
			t.Fatalf("unrelated account credits = %d, want 5", a.Credits)
		}

		var claims int64
		if err := b.Get(ctx, &claims, `SELECT COUNT(*) FROM claims WHERE account_id = ?`, 50); err != nil {
			t.Fatalf("count claims: %v", err)
		}
		if claims != 0 {
			t.Fatalf("claims for deleted account = %d, want 0", claims)
		}
		if err := b.Get(ctx, &claims, `SELECT COUNT(*) FROM claims`); err != nil || claims != 1 {
			t.Fatalf("remaining claims = %d (%v), want 1", claims, err)
		}

		if err := f.service.Delete(ctx, 50); !errors.Is(err, account.ErrAccountNotFound) {
			t.Fatalf("second delete err = %v, want ErrAccountNotFound", err)
		}
	})
}

func TestListingsAndStats(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		ctx := context.Background()

		f.mustCreate(t, 60, nil)
		f.mustCreate(t, 61, ptr(60))
		f.now = f.now.Add(45 * 24 * time.Hour)
		f.mustCreate(t, 62, nil)

		if err := f.service.AdjustCredits(ctx, 62, 200); err != nil {
			t.Fatalf("credit: %v", err)
		}
		if err := f.service.UpdateDisplayName(ctx, 62, "Big_Spender"); err != nil {
			t.Fatalf("rename: %v", err)
		}

		top, err := f.service.Leaderboard(ctx, 2)
		if err != nil {
			t.Fatalf("Leaderboard: %v", err)
		}
		if len(top) != 2 || top[0].ID != 62 || top[1].ID != 60 {
			t.Fatalf("leaderboard = %+v", top)
		}

		premium, err := f.service.ListPremium(ctx, 0)
		if err != nil || len(premium) != 1 || premium[0].ID != 62 {
			t.Fatalf("premium = %+v (%v)", premium, err)
		}

		low, err := f.service.ListLowCredits(ctx, 0)
		if err != nil || len(low) != 1 || low[0].ID != 61 {
			t.Fatalf("low = %+v (%v)", low, err)
		}

		inactive, err := f.service.ListInactive(ctx, 30, 0)
		if err != nil || len(inactive) != 2 {
			t.Fatalf("inactive = %+v (%v)", inactive, err)
		}

		found, err := f.service.Search(ctx, "big_", 0)
		if err != nil || len(found) != 1 || found[0].ID != 62 {
			t.Fatalf("search = %+v (%v)", found, err)
		}

		stats, err := f.service.Stats(ctx, 60)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.Referrals != 1 || stats.CodesClaimed != 0 {
			t.Fatalf("stats = %+v", stats)
		}

		ledger, err := f.service.LedgerStats(ctx)
		if err != nil {
			t.Fatalf("LedgerStats: %v", err)
		}
		want := account.LedgerStats{TotalAccounts: 3, FundedAccounts: 3, TotalCredits: 8 + 5 + 205, TotalEarned: 3 + 200}
		if *ledger != want {
			t.Fatalf("ledger = %+v, want %+v", *ledger, want)
		}
	})
}

func TestJoinedRecentAndDailyReports(t *testing.T) {
	sqlstoretest.Each(t, func(t *testing.T, b sqlstore.Backend) {
		f := newFixture(t, b)
		ctx := context.Background()

		f.mustCreate(t, 70, nil)
		f.now = f.now.Add(24 * time.Hour)
		f.mustCreate(t, 71, nil)
		f.now = f.now.Add(2 * time.Hour)
		f.mustCreate(t, 72, nil)

		seed := []struct {
			id int64
			at time.Time
		}{
			{70, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)},
			{71, time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)},
		}
		for _, c := range seed {
			if _, err := b.Exec(ctx, `INSERT INTO claims (account_id, code, claimed_at) VALUES (?, ?, ?)`, c.id, "WELCOME", c.at); err != nil {
				t.Fatalf("seed claim: %v", err)
			}
		}

		from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		joined, err := f.service.ListJoinedBetween(ctx, from, from.Add(24*time.Hour-time.Second), 0)
		if err != nil {
			t.Fatalf("ListJoinedBetween: %v", err)
		}
		if len(joined) != 2 || joined[0].ID != 71 || joined[1].ID != 72 {
			t.Fatalf("joined = %+v, want [71 72]", joined)
		}

		if _, err := f.service.ListJoinedBetween(ctx, from, from.Add(-time.Hour), 0); !errors.Is(err, account.ErrInvalidRange) {
			t.Fatalf("reversed range err = %v, want ErrInvalidRange", err)
		}

		recent, err := f.service.ListRecent(ctx, 2)
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		if len(recent) != 2 || recent[0].ID != 72 || recent[1].ID != 71 {
			t.Fatalf("recent = %+v, want [72 71]", recent)
		}

		daily, err := f.service.DailyStats(ctx, 3)
		if err != nil {
			t.Fatalf("DailyStats: %v", err)
		}
		want := []account.DailyStat{
			{Day: "2026-02-28"},
			{Day: "2026-03-01", NewAccounts: 1},
			{Day: "2026-03-02", NewAccounts: 2, Claims: 1},
		}
		if len(daily) != len(want) {
			t.Fatalf("daily = %+v, want %+v", daily, want)
		}
		for i := range want {
			if daily[i] != want[i] {
				t.Fatalf("daily[%d] = %+v, want %+v", i, daily[i], want[i])
			}
		}

		week, err := f.service.DailyStats(ctx, 0)
		if err != nil || len(week) != 7 || week[6].Day != "2026-03-02" {
			t.Fatalf("default daily = %+v (%v), want 7 days ending today", week, err)
		}
	})
}
