package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports entries as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatJSON exports entries as a JSON array.
	ExportFormatJSON ExportFormat = "json"
)

// ExportOptions configures audit ledger export parameters.
type ExportOptions struct {
	Format  ExportFormat // Export format (csv or json)
	From    time.Time    // Start of time range (inclusive)
	To      time.Time    // End of time range (inclusive)
	ActorID string       // Filter by actor (optional)
	Limit   int          // Maximum number of entries to export (0 = no limit)
}

// Export exports a tenant's audit entries matching the given options.
// Returns the exported data as bytes in the specified format.
func Export(repo Repository, tenantID string, opts ExportOptions) ([]byte, error) {
	if opts.Format != ExportFormatCSV && opts.Format != ExportFormatJSON {
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}
	if tenantID == "" {
		return nil, ErrInvalidTenantID
	}

	// Query without limit first so the time filter sees the full set,
	// then apply the limit to the filtered results.
	var entries []*Entry
	var err error
	if opts.ActorID != "" {
		entries, err = repo.QueryByActor(tenantID, opts.ActorID, 0)
	} else {
		entries, err = repo.QueryByTenant(tenantID, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	if !opts.From.IsZero() || !opts.To.IsZero() {
		entries = filterByTimeRange(entries, opts.From, opts.To)
	}

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	switch opts.Format {
	case ExportFormatCSV:
		return exportToCSV(entries)
	case ExportFormatJSON:
		return exportToJSON(entries)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}
}

// filterByTimeRange filters entries to only include those within the range.
func filterByTimeRange(entries []*Entry, from, to time.Time) []*Entry {
	var filtered []*Entry
	for _, e := range entries {
		if !from.IsZero() && e.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.CreatedAt.After(to) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// exportToCSV exports audit entries to CSV format.
func exportToCSV(entries []*Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	header := []string{
		"ID",
		"Tenant ID",
		"Seq",
		"Timestamp (UTC)",
		"Actor ID",
		"Entity Type",
		"Entity ID",
		"Action",
		"Outcome",
		"Request ID",
		"IP Address",
		"User Agent",
		"Previous Hash",
		"Hash",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			e.ID,
			e.TenantID,
			fmt.Sprintf("%d", e.Seq),
			e.CreatedAt.Format(time.RFC3339),
			e.ActorID,
			e.EntityType,
			e.EntityID,
			e.Action,
			e.Outcome,
			e.RequestID,
			e.IPAddress,
			e.UserAgent,
			e.PrevHash,
			e.Hash,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// exportEntry is the serialized representation used for JSON and CBOR exports.
type exportEntry struct {
	ID         string `json:"id" cbor:"id"`
	TenantID   string `json:"tenant_id" cbor:"tenant_id"`
	Seq        int64  `json:"seq" cbor:"seq"`
	Timestamp  string `json:"timestamp" cbor:"timestamp"` // RFC 3339
	ActorID    string `json:"actor_id" cbor:"actor_id"`
	EntityType string `json:"entity_type" cbor:"entity_type"`
	EntityID   string `json:"entity_id" cbor:"entity_id"`
	Action     string `json:"action" cbor:"action"`
	Outcome    string `json:"outcome" cbor:"outcome"`
	RequestID  string `json:"request_id,omitempty" cbor:"request_id,omitempty"`
	IPAddress  string `json:"ip_address,omitempty" cbor:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty" cbor:"user_agent,omitempty"`
	PrevHash   string `json:"prev_hash,omitempty" cbor:"prev_hash,omitempty"`
	Hash       string `json:"hash" cbor:"hash"`
}

func toExportEntries(entries []*Entry) []exportEntry {
	out := make([]exportEntry, len(entries))
	for i, e := range entries {
		out[i] = exportEntry{
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

// exportToJSON exports audit entries to JSON format.
func exportToJSON(entries []*Entry) ([]byte, error) {
	data, err := json.MarshalIndent(toExportEntries(entries), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// ArchiveSnapshot is a self-contained CBOR snapshot of a tenant's chain,
// suitable for upload to cold storage. HeadHash is the newest entry's hash
// at snapshot time so the archive can later be matched against the live chain.
type ArchiveSnapshot struct {
	TenantID   string        `cbor:"tenant_id"`
	TakenAt    string        `cbor:"taken_at"` // RFC 3339
	EntryCount int           `cbor:"entry_count"`
	HeadHash   string        `cbor:"head_hash"`
	Entries    []exportEntry `cbor:"entries"`
}

// Snapshot builds a CBOR-encoded archive snapshot of the tenant's full chain.
func Snapshot(repo Repository, tenantID string) ([]byte, error) {
	if tenantID == "" {
		return nil, ErrInvalidTenantID
	}

	entries, err := repo.QueryByTenant(tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	headHash := ""
	if n := len(entries); n > 0 {
		headHash = entries[n-1].Hash
	}

	snap := ArchiveSnapshot{
		TenantID:   tenantID,
		TakenAt:    time.Now().UTC().Format(time.RFC3339),
		EntryCount: len(entries),
		HeadHash:   headHash,
		Entries:    toExportEntries(entries),
	}

	data, err := cbor.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot decodes a CBOR archive snapshot.
func DecodeSnapshot(data []byte) (*ArchiveSnapshot, error) {
	var snap ArchiveSnapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
