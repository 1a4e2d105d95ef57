// Package snapshot exports the ledger tables as a JSON document to an
// object store.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nullprotocol/creditledger/internal/domain/account"
	"github.com/nullprotocol/creditledger/internal/domain/admin"
	"github.com/nullprotocol/creditledger/internal/domain/redeem"
	"github.com/nullprotocol/creditledger/internal/pkg/logger"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
	"github.com/nullprotocol/creditledger/internal/pkg/storage"
)

const (
	keyPrefix     = "snapshots/"
	formatVersion = 1
)

// Claim is a raw row of the claims table.
type Claim struct {
	ID        int64     `db:"id" json:"id"`
	AccountID int64     `db:"account_id" json:"account_id"`
	Code      string    `db:"code" json:"code"`
	ClaimedAt time.Time `db:"claimed_at" json:"claimed_at"`
}

// Document is the exported form of the ledger.
type Document struct {
	Version  int               `json:"version"`
	TakenAt  time.Time         `json:"taken_at"`
	Engine   sqlstore.Engine   `json:"engine"`
	Accounts []account.Account `json:"accounts"`
	Codes    []redeem.Code     `json:"codes"`
	Claims   []Claim           `json:"claims"`
	Admins   []admin.Admin     `json:"admins"`
}

// Info describes a stored snapshot.
type Info struct {
	Key      string `json:"key"`
	Accounts int    `json:"accounts"`
	Codes    int    `json:"codes"`
	Claims   int    `json:"claims"`
	Size     int    `json:"size"`
}

// Exporter reads the ledger in one transaction and uploads it.
type Exporter struct {
	db    sqlstore.Backend
	store storage.ObjectStore
	now   func() time.Time
}

func NewExporter(db sqlstore.Backend, store storage.ObjectStore) *Exporter {
	return &Exporter{db: db, store: store, now: time.Now}
}

// Collect reads every table inside one repeatable-read, read-only
// transaction, so claim rows always agree with each code's current_uses.
func (e *Exporter) Collect(ctx context.Context) (*Document, error) {
	doc := &Document{
		Version:  formatVersion,
		TakenAt:  e.now().UTC(),
		Engine:   e.db.Engine(),
		Accounts: make([]account.Account, 0),
		Codes:    make([]redeem.Code, 0),
		Claims:   make([]Claim, 0),
		Admins:   make([]admin.Admin, 0),
	}

	err := e.db.WithTxOptions(ctx, sqlstore.SnapshotTxOptions(), func(ctx context.Context, q sqlstore.Querier) error {
		if err := q.Select(ctx, &doc.Accounts, `
			SELECT id, display_name, credits, total_earned, joined_at, referrer_id, is_banned, last_active
			FROM accounts ORDER BY id
		`); err != nil {
			return fmt.Errorf("read accounts: %w", err)
		}
		if err := q.Select(ctx, &doc.Codes, `
			SELECT code, amount, max_uses, current_uses, expiry_minutes, created_at, is_active
			FROM redeem_codes ORDER BY code
		`); err != nil {
			return fmt.Errorf("read codes: %w", err)
		}
		if err := q.Select(ctx, &doc.Claims, `
			SELECT id, account_id, code, claimed_at FROM claims ORDER BY id
		`); err != nil {
			return fmt.Errorf("read claims: %w", err)
		}
		if err := q.Select(ctx, &doc.Admins, `
			SELECT id, level, added_by, added_at FROM admins ORDER BY id
		`); err != nil {
			return fmt.Errorf("read admins: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Take collects and uploads a snapshot under
// snapshots/YYYY/MM/DD/<timestamp>-<uuid>.json.
func (e *Exporter) Take(ctx context.Context) (*Info, error) {
	doc, err := e.Collect(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	key := fmt.Sprintf("%s%s/%s-%s.json",
		keyPrefix,
		doc.TakenAt.Format("2006/01/02"),
		doc.TakenAt.Format("20060102T150405Z"),
		uuid.NewString(),
	)
	if err := e.store.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return nil, err
	}

	info := &Info{
		Key:      key,
		Accounts: len(doc.Accounts),
		Codes:    len(doc.Codes),
		Claims:   len(doc.Claims),
		Size:     len(body),
	}
	logger.FromContext(ctx).Info().
		Str("key", key).
		Int("accounts", info.Accounts).
		Int("codes", info.Codes).
		Int("claims", info.Claims).
		Int("bytes", info.Size).
		Msg("snapshot stored")
	return info, nil
}

// List returns the newest stored snapshots.
func (e *Exporter) List(ctx context.Context, limit int) ([]storage.ObjectInfo, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return e.store.List(ctx, keyPrefix, limit)
}
