package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

type fakePolicyStore struct {
	policies map[string]domain.SellerPolicy
	err      error
}

func (f *fakePolicyStore) GetBySeller(ctx context.Context, sellerID string) (domain.SellerPolicy, error) {
	if f.err != nil {
		return domain.SellerPolicy{}, f.err
	}
	p, ok := f.policies[sellerID]
	if !ok {
		return domain.SellerPolicy{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePolicyStore) Upsert(ctx context.Context, p domain.SellerPolicy) error {
	if f.err != nil {
		return f.err
	}
	f.policies[p.SellerID] = p
	return nil
}

func policyMux(store domain.PolicyStore) *http.ServeMux {
	h := NewPolicyHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sellers/{id}/policy", h.Get)
	mux.HandleFunc("PUT /api/v1/sellers/{id}/policy", h.Update)
	return mux
}

func TestPolicyGetReturnsStored(t *testing.T) {
	store := &fakePolicyStore{policies: map[string]domain.SellerPolicy{
		"seller-1": {
			SellerID:            "seller-1",
			Enabled:             true,
			Aggressiveness:      0.7,
			AutoAcceptThreshold: 0.9,
			MinAcceptableRatio:  0.8,
			MaxRounds:           6,
			ResponseDelay:       2 * time.Second,
			AutoAcceptRule:      domain.AutoAcceptTarget,
		},
	}}

	rec := httptest.NewRecorder()
	policyMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sellers/seller-1/policy", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		SellerID        string  `json:"sellerId"`
		Aggressiveness  float64 `json:"aggressiveness"`
		ResponseDelayMs int64   `json:"responseDelayMs"`
		AutoAcceptRule  string  `json:"autoAcceptRule"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "seller-1", payload.SellerID)
	require.InDelta(t, 0.7, payload.Aggressiveness, 1e-9)
	require.Equal(t, int64(2000), payload.ResponseDelayMs)
	require.Equal(t, "target", payload.AutoAcceptRule)
}

func TestPolicyGetFallsBackToDefaults(t *testing.T) {
	store := &fakePolicyStore{policies: map[string]domain.SellerPolicy{}}

	rec := httptest.NewRecorder()
	policyMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sellers/new-seller/policy", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		SellerID            string  `json:"sellerId"`
		Enabled             bool    `json:"enabled"`
		AutoAcceptThreshold float64 `json:"autoAcceptThreshold"`
		MinAcceptableRatio  float64 `json:"minAcceptableRatio"`
		MaxRounds           int     `json:"maxRounds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "new-seller", payload.SellerID)
	require.True(t, payload.Enabled)
	require.InDelta(t, 0.95, payload.AutoAcceptThreshold, 1e-9)
	require.InDelta(t, 0.75, payload.MinAcceptableRatio, 1e-9)
	require.Equal(t, 8, payload.MaxRounds)
}

func TestPolicyUpdatePersists(t *testing.T) {
	store := &fakePolicyStore{policies: map[string]domain.SellerPolicy{}}

	body := `{
		"enabled": true,
		"aggressiveness": 0.6,
		"autoAcceptThreshold": 0.92,
		"minAcceptableRatio": 0.7,
		"maxRounds": 5,
		"responseDelayMs": 1500,
		"autoAcceptRule": "either"
	}`
	rec := httptest.NewRecorder()
	policyMux(store).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/sellers/seller-1/policy", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	saved := store.policies["seller-1"]
	require.Equal(t, "seller-1", saved.SellerID)
	require.InDelta(t, 0.92, saved.AutoAcceptThreshold, 1e-9)
	require.Equal(t, 1500*time.Millisecond, saved.ResponseDelay)
	require.Equal(t, domain.AutoAcceptEither, saved.AutoAcceptRule)
}

func TestPolicyUpdateValidation(t *testing.T) {
	store := &fakePolicyStore{policies: map[string]domain.SellerPolicy{}}
	mux := policyMux(store)

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"aggressiveness out of range", `{"aggressiveness":2,"autoAcceptThreshold":0.95,"minAcceptableRatio":0.75,"maxRounds":8,"autoAcceptRule":"either"}`},
		{"zero floor", `{"aggressiveness":0.5,"autoAcceptThreshold":0.95,"minAcceptableRatio":0,"maxRounds":8,"autoAcceptRule":"either"}`},
		{"bad rule", `{"aggressiveness":0.5,"autoAcceptThreshold":0.95,"minAcceptableRatio":0.75,"maxRounds":8,"autoAcceptRule":"sometimes"}`},
		{"too many rounds", `{"aggressiveness":0.5,"autoAcceptThreshold":0.95,"minAcceptableRatio":0.75,"maxRounds":50,"autoAcceptRule":"either"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/sellers/seller-1/policy", strings.NewReader(tc.body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Empty(t, store.policies)
		})
	}
}
