package api

import (
	"net/http"

	"github.com/lodgeline/lodgeline/internal/ledger"
	"github.com/lodgeline/lodgeline/internal/middleware"
)

// LedgerHandlers holds dependencies for ledger HTTP handlers.
type LedgerHandlers struct {
	repo ledger.Repository
}

// NewLedgerHandlers creates a new LedgerHandlers instance.
func NewLedgerHandlers(repo ledger.Repository) *LedgerHandlers {
	return &LedgerHandlers{repo: repo}
}

// TrialBalance handles GET /v1/ledger/trial-balance. The account nets
// sum to zero whenever every posting set was balanced.
func (h *LedgerHandlers) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "tenant context required")
		return
	}
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if account := r.URL.Query().Get("account"); account != "" {
		if !ledger.ValidAccounts[account] {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unknown ledger account")
			return
		}
		net, err := h.repo.AccountBalance(tenantID, account)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute account balance")
			return
		}
		WriteJSON(w, http.StatusOK, ledger.Balance{Account: account, Net: net})
		return
	}

	balances, err := h.repo.TrialBalance(tenantID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute trial balance")
		return
	}

	var total int64
	for _, b := range balances {
		total += b.Net
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"balances": balances,
		"total":    total,
	})
}
