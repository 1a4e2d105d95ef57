package redeem_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/nullprotocol/creditledger/internal/domain/redeem"
	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore/sqlstoretest"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func perform(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Code != http.StatusNoContent {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s response: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestRedeemEndpoints(t *testing.T) {
	b := sqlstoretest.SQLite(t)
	f := newFixture(t, b, nil)
	f.mustCreate(t, 77)
	h := redeem.NewHandler(f.service)

	r := chi.NewRouter()
	r.Mount("/api/v1/redeem", h.Routes())
	r.Mount("/api/admin/codes", h.AdminRoutes(nil, nil))

	t.Run("define", func(t *testing.T) {
		rec, resp := perform(t, r, http.MethodPost, "/api/admin/codes", map[string]any{
			"code": "welcome50", "amount": 50, "max_uses": 10, "expiry": "2h",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var c redeem.Code
		json.Unmarshal(resp.Data, &c)
		if c.Code != "WELCOME50" || c.ExpiryMinutes != 120 || !c.IsActive {
			t.Fatalf("defined code = %+v", c)
		}
	})

	t.Run("define rejects bad expiry", func(t *testing.T) {
		rec, resp := perform(t, r, http.MethodPost, "/api/admin/codes", map[string]any{
			"code": "LATER", "amount": 5, "max_uses": 1, "expiry": "tomorrow",
		})
		if rec.Code != http.StatusUnprocessableEntity || resp.Error.Details["expiry"] == "" {
			t.Fatalf("expected 422 on expiry, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("claim", func(t *testing.T) {
		rec, resp := perform(t, r, http.MethodPost, "/api/v1/redeem", map[string]any{
			"account_id": 77, "code": "WELCOME50",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var res redeem.ClaimResult
		json.Unmarshal(resp.Data, &res)
		if res.Status != redeem.StatusGranted || res.Amount != 50 {
			t.Fatalf("claim result = %+v", res)
		}

		_, resp = perform(t, r, http.MethodPost, "/api/v1/redeem", map[string]any{
			"account_id": 77, "code": "WELCOME50",
		})
		json.Unmarshal(resp.Data, &res)
		if res.Status != redeem.StatusAlreadyClaimed {
			t.Fatalf("repeat claim result = %+v", res)
		}
	})

	t.Run("claim validates input", func(t *testing.T) {
		rec, _ := perform(t, r, http.MethodPost, "/api/v1/redeem", map[string]any{"account_id": 0, "code": "x"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("stats and history", func(t *testing.T) {
		rec, resp := perform(t, r, http.MethodGet, "/api/admin/codes/welcome50/stats", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var stats redeem.UsageStats
		json.Unmarshal(resp.Data, &stats)
		if stats.CurrentUses != 1 || stats.DistinctClaimants != 1 || stats.ExpiresAt == nil {
			t.Fatalf("stats = %+v", stats)
		}

		rec, resp = perform(t, r, http.MethodGet, "/api/v1/redeem/history/77", nil)
		var history []redeem.ClaimRecord
		json.Unmarshal(resp.Data, &history)
		if rec.Code != http.StatusOK || len(history) != 1 {
			t.Fatalf("history = %d %+v", rec.Code, history)
		}
	})

	t.Run("generate, deactivate and delete", func(t *testing.T) {
		rec, resp := perform(t, r, http.MethodPost, "/api/admin/codes/generate", map[string]any{
			"amount": 5, "max_uses": 1,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var c redeem.Code
		json.Unmarshal(resp.Data, &c)

		rec, _ = perform(t, r, http.MethodPost, "/api/admin/codes/"+c.Code+"/deactivate", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("deactivate expected 204, got %d", rec.Code)
		}

		_, resp = perform(t, r, http.MethodGet, "/api/admin/codes?status=inactive", nil)
		var codes []redeem.Code
		json.Unmarshal(resp.Data, &codes)
		if len(codes) != 1 || codes[0].Code != c.Code {
			t.Fatalf("inactive codes = %+v", codes)
		}

		rec, _ = perform(t, r, http.MethodDelete, "/api/admin/codes/"+c.Code, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete expected 204, got %d", rec.Code)
		}
		rec, _ = perform(t, r, http.MethodDelete, "/api/admin/codes/"+c.Code, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("second delete expected 404, got %d", rec.Code)
		}
	})

	t.Run("unknown status filter", func(t *testing.T) {
		rec, _ := perform(t, r, http.MethodGet, "/api/admin/codes?status=bogus", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	if credits, _ := f.credits(t, 77); credits != 5+50 {
		t.Fatalf("credits = %d, want 55", credits)
	}
}

func TestClaimStorageFailureIsUnavailable(t *testing.T) {
	b := sqlstoretest.SQLite(t)
	f := newFixture(t, b, nil)
	f.mustCreate(t, 77)
	f.mustDefine(t, "DOWN1", 10, 5, 0)
	b.Close()

	r := chi.NewRouter()
	r.Mount("/api/v1/redeem", redeem.NewHandler(f.service).Routes())

	rec, resp := perform(t, r, http.MethodPost, "/api/v1/redeem", map[string]any{
		"account_id": 77, "code": "DOWN1",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Success || resp.Error == nil || resp.Error.Code != "STORAGE_UNAVAILABLE" {
		t.Fatalf("response = %+v", resp)
	}
}
