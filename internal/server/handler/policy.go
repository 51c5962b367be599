package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// PolicyHandler exposes per-seller agent policy management.
type PolicyHandler struct {
	policies domain.PolicyStore
	logger   *slog.Logger
}

// NewPolicyHandler creates a PolicyHandler.
func NewPolicyHandler(policies domain.PolicyStore, logger *slog.Logger) *PolicyHandler {
	return &PolicyHandler{
		policies: policies,
		logger:   logHandler(logger, "policy"),
	}
}

// policyPayload is the wire form of a seller policy. The response delay is
// expressed in milliseconds.
type policyPayload struct {
	SellerID            string  `json:"sellerId"`
	Enabled             bool    `json:"enabled"`
	Aggressiveness      float64 `json:"aggressiveness"`
	AutoAcceptThreshold float64 `json:"autoAcceptThreshold"`
	MinAcceptableRatio  float64 `json:"minAcceptableRatio"`
	MaxRounds           int     `json:"maxRounds"`
	ResponseDelayMs     int64   `json:"responseDelayMs"`
	AutoAcceptRule      string  `json:"autoAcceptRule"`
}

func toPayload(p domain.SellerPolicy) policyPayload {
	return policyPayload{
		SellerID:            p.SellerID,
		Enabled:             p.Enabled,
		Aggressiveness:      p.Aggressiveness,
		AutoAcceptThreshold: p.AutoAcceptThreshold,
		MinAcceptableRatio:  p.MinAcceptableRatio,
		MaxRounds:           p.MaxRounds,
		ResponseDelayMs:     p.ResponseDelay.Milliseconds(),
		AutoAcceptRule:      string(p.AutoAcceptRule),
	}
}

// Get returns the seller's policy, falling back to defaults when the seller
// has never customized it.
// GET /api/v1/sellers/{id}/policy
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	sellerID := pathParam(r, "id")
	if sellerID == "" {
		writeError(w, http.StatusBadRequest, "missing seller id")
		return
	}

	p, err := h.policies.GetBySeller(r.Context(), sellerID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, toPayload(domain.DefaultPolicy(sellerID)))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get policy failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not load policy")
		return
	}
	writeJSON(w, http.StatusOK, toPayload(p))
}

// Update writes the seller's policy.
// PUT /api/v1/sellers/{id}/policy
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	sellerID := pathParam(r, "id")
	if sellerID == "" {
		writeError(w, http.StatusBadRequest, "missing seller id")
		return
	}

	var payload policyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy payload")
		return
	}

	p := domain.SellerPolicy{
		SellerID:            sellerID,
		Enabled:             payload.Enabled,
		Aggressiveness:      payload.Aggressiveness,
		AutoAcceptThreshold: payload.AutoAcceptThreshold,
		MinAcceptableRatio:  payload.MinAcceptableRatio,
		MaxRounds:           payload.MaxRounds,
		ResponseDelay:       time.Duration(payload.ResponseDelayMs) * time.Millisecond,
		AutoAcceptRule:      domain.AutoAcceptRule(payload.AutoAcceptRule),
	}
	if msg := validatePolicy(p); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.policies.Upsert(r.Context(), p); err != nil {
		h.logger.ErrorContext(r.Context(), "update policy failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not save policy")
		return
	}
	writeJSON(w, http.StatusOK, toPayload(p))
}

func validatePolicy(p domain.SellerPolicy) string {
	if p.Aggressiveness < 0 || p.Aggressiveness > 1 {
		return "aggressiveness must be between 0 and 1"
	}
	if p.AutoAcceptThreshold <= 0 || p.AutoAcceptThreshold > 1.5 {
		return "autoAcceptThreshold must be between 0 and 1.5"
	}
	if p.MinAcceptableRatio <= 0 || p.MinAcceptableRatio > 1 {
		return "minAcceptableRatio must be between 0 and 1"
	}
	if p.MaxRounds < 1 || p.MaxRounds > 20 {
		return "maxRounds must be between 1 and 20"
	}
	switch p.AutoAcceptRule {
	case domain.AutoAcceptEither, domain.AutoAcceptTarget, domain.AutoAcceptThreshold:
	default:
		return "autoAcceptRule must be either, target, or threshold"
	}
	return ""
}
