package audit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/lodgeline/lodgeline/internal/middleware"
)

var (
	// ErrNilRepository is returned when a nil repository is passed to logging functions.
	ErrNilRepository = errors.New("audit repository cannot be nil")
	// ErrInvalidTenantID is returned when the tenant ID is empty.
	ErrInvalidTenantID = errors.New("tenant ID cannot be empty")
	// ErrInvalidEntityType is returned when an invalid entity type is provided.
	ErrInvalidEntityType = errors.New("entity type cannot be empty")
	// ErrInvalidEntityID is returned when an invalid entity ID is provided.
	ErrInvalidEntityID = errors.New("entity ID cannot be empty")
	// ErrInvalidAction is returned when an invalid action is provided.
	ErrInvalidAction = errors.New("action cannot be empty")
)

// ValidEntityTypes defines the allowed entity types for audit entries.
var ValidEntityTypes = map[string]bool{
	"booking":   true,
	"invoice":   true,
	"rate_plan": true,
	"tenant":    true,
	"ledger":    true,
	"export":    true,
}

// ValidActions defines the allowed actions for audit entries.
var ValidActions = map[string]bool{
	"booking_create":      true,
	"booking_hold":        true,
	"booking_confirm":     true,
	"booking_check_in":    true,
	"booking_check_out":   true,
	"booking_cancel":      true,
	"booking_no_show":     true,
	"booking_hold_expire": true,
	"payment_record":      true,
	"refund_record":       true,
	"invoice_create":      true,
	"invoice_settle":      true,
	"rate_plan_update":    true,
	"tenant_update":       true,
	"audit_export":        true,
	"chain_verify":        true,
}

// validateRecord validates the required fields of a record against whitelists.
func validateRecord(entityType, entityID, action string) error {
	if entityType == "" {
		return ErrInvalidEntityType
	}
	if entityID == "" {
		return ErrInvalidEntityID
	}
	if action == "" {
		return ErrInvalidAction
	}

	if !ValidEntityTypes[entityType] {
		return ErrInvalidEntityType
	}
	if !ValidActions[action] {
		return ErrInvalidAction
	}

	return nil
}

// extractIPAddress extracts the client IP address from an HTTP request.
// It checks X-Forwarded-For, X-Real-IP, and RemoteAddr in that order.
// The port is stripped so the value can be stored and anonymized uniformly.
func extractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Use the first IP in the chain, trimming whitespace per RFC 7239
		var firstIP string
		if idx := strings.Index(xff, ","); idx != -1 {
			firstIP = strings.TrimSpace(xff[:idx])
		} else {
			firstIP = strings.TrimSpace(xff)
		}
		if firstIP != "" {
			host, _, err := net.SplitHostPort(firstIP)
			if err != nil {
				// IP might not have a port
				return firstIP
			}
			return host
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		xri = strings.TrimSpace(xri)
		host, _, err := net.SplitHostPort(xri)
		if err != nil {
			return xri
		}
		return host
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LogAction records an audit event, pulling tenant, actor, and request ID
// from the context if available.
//
// Error handling is fail-closed: if the audit append fails, the error is
// returned to the caller so a lifecycle operation cannot complete without
// its audit entry.
func LogAction(ctx context.Context, repo Repository, entityType, entityID, action, outcome string) error {
	if repo == nil {
		return ErrNilRepository
	}

	if err := validateRecord(entityType, entityID, action); err != nil {
		return err
	}

	rec := Record{
		TenantID:   middleware.GetTenantID(ctx),
		ActorID:    middleware.GetActorID(ctx),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Outcome:    outcome,
		RequestID:  middleware.GetRequestID(ctx),
	}

	_, err := repo.Append(rec)
	return err
}

// LogActionFromRequest records an audit event with HTTP request metadata
// (client IP and user agent) in addition to the context fields.
func LogActionFromRequest(r *http.Request, repo Repository, entityType, entityID, action, outcome string) error {
	if repo == nil {
		return ErrNilRepository
	}

	if err := validateRecord(entityType, entityID, action); err != nil {
		return err
	}

	ctx := r.Context()
	rec := Record{
		TenantID:   middleware.GetTenantID(ctx),
		ActorID:    middleware.GetActorID(ctx),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Outcome:    outcome,
		RequestID:  middleware.GetRequestID(ctx),
		IPAddress:  extractIPAddress(r),
		UserAgent:  r.UserAgent(),
	}

	_, err := repo.Append(rec)
	return err
}
