package audit

import (
	"context"
	"log/slog"
	"time"
)

// Anonymizer is implemented by repositories that support rewriting stored
// client IPs after the retention window.
type Anonymizer interface {
	AnonymizeIPsBefore(cutoff time.Time) (int, error)
}

// AnonymizationJobConfig configures the IP anonymization job.
type AnonymizationJobConfig struct {
	Anonymizer Anonymizer
	Logger     *slog.Logger
	DryRun     bool // If true, only log what would be anonymized
}

// AnonymizationJob rewrites client IPs on audit entries older than the
// retention cutoff. Chain hashes are unaffected because IPs are excluded
// from the hash input.
type AnonymizationJob struct {
	config AnonymizationJobConfig
}

// NewAnonymizationJob creates a new IP anonymization job.
func NewAnonymizationJob(config AnonymizationJobConfig) *AnonymizationJob {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &AnonymizationJob{config: config}
}

// Run executes one anonymization pass. Returns the number of entries updated.
func (j *AnonymizationJob) Run(ctx context.Context) (int, error) {
	cutoff := IPAnonymizationCutoff()
	j.config.Logger.Info("starting IP anonymization",
		"cutoff", cutoff,
		"dry_run", j.config.DryRun,
	)

	if j.config.DryRun {
		return 0, nil
	}

	updated, err := j.config.Anonymizer.AnonymizeIPsBefore(cutoff)
	if err != nil {
		j.config.Logger.Error("IP anonymization failed", "error", err)
		return updated, err
	}

	j.config.Logger.Info("IP anonymization complete", "updated", updated)
	return updated, nil
}
