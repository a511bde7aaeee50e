package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lodgeline/lodgeline/internal/audit"
	"github.com/lodgeline/lodgeline/internal/middleware"
)

// MaxAuditQueryLimit caps the number of entries a single query returns.
const MaxAuditQueryLimit = 1000

// AuditEntryResponse is the JSON shape of one audit entry.
type AuditEntryResponse struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	Seq        int64  `json:"seq"`
	Timestamp  string `json:"timestamp"`
	ActorID    string `json:"actor_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
	RequestID  string `json:"request_id,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	PrevHash   string `json:"prev_hash,omitempty"`
	Hash       string `json:"hash"`
}

// VerifyChainResponse is the result of an audit chain verification.
type VerifyChainResponse struct {
	Intact    bool  `json:"intact"`
	BrokenSeq int64 `json:"broken_seq,omitempty"`
}

// AuditHandlers holds dependencies for audit HTTP handlers.
type AuditHandlers struct {
	repo audit.Repository
}

// NewAuditHandlers creates a new AuditHandlers instance.
func NewAuditHandlers(repo audit.Repository) *AuditHandlers {
	return &AuditHandlers{repo: repo}
}

func toEntryResponses(entries []*audit.Entry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:         e.ID,
			TenantID:   e.TenantID,
			Seq:        e.Seq,
			Timestamp:  e.CreatedAt.Format(time.RFC3339Nano),
			ActorID:    e.ActorID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     e.Action,
			Outcome:    e.Outcome,
			RequestID:  e.RequestID,
			IPAddress:  e.IPAddress,
			UserAgent:  e.UserAgent,
			PrevHash:   e.PrevHash,
			Hash:       e.Hash,
		}
	}
	return out
}

// Query handles GET /v1/audit. Entries are filtered by entity_type and
// entity_id together, or by actor_id; without filters the tenant's full
// chain is returned in chain order.
func (h *AuditHandlers) Query(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()
	limit, errMsg := parseLimit(q.Get("limit"))
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	entityType := q.Get("entity_type")
	entityID := q.Get("entity_id")
	actorID := q.Get("actor_id")

	var (
		entries []*audit.Entry
		err     error
	)
	switch {
	case entityType != "" || entityID != "":
		if entityType == "" || entityID == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "entity_type and entity_id must be supplied together")
			return
		}
		entries, err = h.repo.QueryByEntity(tenantID, entityType, entityID, limit)
	case actorID != "":
		entries, err = h.repo.QueryByActor(tenantID, actorID, limit)
	default:
		entries, err = h.repo.QueryByTenant(tenantID, limit)
	}
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to query audit entries")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"entries": toEntryResponses(entries)})
}

// VerifyChain handles GET /v1/audit/verify. The verification itself is
// recorded on the chain after the check runs.
func (h *AuditHandlers) VerifyChain(w http.ResponseWriter, r *http.Request) {
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

	brokenSeq, err := h.repo.VerifyChain(tenantID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to verify audit chain")
		return
	}

	outcome := audit.OutcomeSuccess
	if brokenSeq != 0 {
		outcome = audit.OutcomeFailure
	}
	if err := audit.LogAction(r.Context(), h.repo, "ledger", tenantID, "chain_verify", outcome); err != nil {
		slog.ErrorContext(r.Context(), "failed to audit chain verification", "error", err)
	}

	WriteJSON(w, http.StatusOK, VerifyChainResponse{
		Intact:    brokenSeq == 0,
		BrokenSeq: brokenSeq,
	})
}

// Export handles GET /v1/audit/export. Supports csv and json formats
// with optional time range, actor, and limit filters. The export itself
// is recorded on the chain.
func (h *AuditHandlers) Export(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()

	format := audit.ExportFormat(q.Get("format"))
	if format == "" {
		format = audit.ExportFormatJSON
	}
	if format != audit.ExportFormatCSV && format != audit.ExportFormatJSON {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "format must be 'csv' or 'json'")
		return
	}

	limit, errMsg := parseLimit(q.Get("limit"))
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	opts := audit.ExportOptions{
		Format:  format,
		ActorID: q.Get("actor_id"),
		Limit:   limit,
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "from must be an RFC 3339 timestamp")
			return
		}
		opts.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "to must be an RFC 3339 timestamp")
			return
		}
		opts.To = to
	}

	data, err := audit.Export(h.repo, tenantID, opts)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to export audit entries")
		return
	}

	if err := audit.LogAction(r.Context(), h.repo, "export", tenantID, "audit_export", audit.OutcomeSuccess); err != nil {
		slog.ErrorContext(r.Context(), "failed to audit export", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record audit entry")
		return
	}

	switch format {
	case audit.ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="audit-export.csv"`)
	default:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to write export response", "error", err)
	}
}

// parseLimit parses an optional limit query parameter. Returns an error
// message if the value is not a non-negative integer within bounds.
func parseLimit(s string) (int, string) {
	if s == "" {
		return 0, ""
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, "limit must be a non-negative integer"
	}
	if n > MaxAuditQueryLimit {
		return 0, "limit must not exceed 1000"
	}
	return n, ""
}
