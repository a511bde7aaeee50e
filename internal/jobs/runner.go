package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lodgeline/lodgeline/internal/archive"
	"github.com/lodgeline/lodgeline/internal/audit"
	"github.com/lodgeline/lodgeline/internal/booking"
	"github.com/lodgeline/lodgeline/internal/idempotency"
	"github.com/lodgeline/lodgeline/internal/tenant"
)

// JobFunc is one background job execution. Implementations return how
// many items were processed.
type JobFunc func(ctx context.Context) (int, error)

// Runner schedules periodic background jobs and records their outcomes
// as Prometheus metrics. Stop waits for in-flight runs to finish.
type Runner struct {
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	wg      sync.WaitGroup
	stop    chan struct{}
	stopped bool
}

// NewRunner creates a job runner. A nil metrics disables instrumentation.
func NewRunner(logger *slog.Logger, metrics *Metrics) *Runner {
	return &Runner{
		logger:  logger,
		metrics: metrics,
		stop:    make(chan struct{}),
	}
}

// Every runs fn at the given interval until Stop is called. The first
// run happens after one interval, not immediately.
func (r *Runner) Every(interval time.Duration, jobType string, fn JobFunc) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.runOnce(jobType, fn)
			}
		}
	}()
}

// RunNow executes fn once, synchronously, with instrumentation.
func (r *Runner) RunNow(jobType string, fn JobFunc) {
	r.runOnce(jobType, fn)
}

func (r *Runner) runOnce(jobType string, fn JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	processed, err := fn(ctx)
	elapsed := time.Since(start)

	if r.metrics != nil {
		r.metrics.ObserveJobDuration(jobType, elapsed.Seconds())
	}
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncJobsTotal(jobType, StatusFailure)
			r.metrics.IncJobErrors(jobType, "run_error")
		}
		r.logger.Error("background job failed", "job_type", jobType, "error", err, "duration", elapsed)
		return
	}
	if r.metrics != nil {
		r.metrics.IncJobsTotal(jobType, StatusSuccess)
	}
	r.logger.Info("background job completed", "job_type", jobType, "processed", processed, "duration", elapsed)
}

// Stop shuts down all scheduled jobs and waits for them to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.stop)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// HoldExpiryJob releases expired holds in batches.
func HoldExpiryJob(svc *booking.Service, batchSize int) JobFunc {
	return func(ctx context.Context) (int, error) {
		return svc.ExpireHolds(ctx, batchSize)
	}
}

// ChainVerifyJob verifies every tenant's audit chain. A broken or
// unverifiable chain does not stop the sweep; the job reports every bad
// tenant after checking them all.
func ChainVerifyJob(tenants tenant.Repository, audits audit.Repository) JobFunc {
	return func(ctx context.Context) (int, error) {
		all, err := tenants.List()
		if err != nil {
			return 0, fmt.Errorf("failed to list tenants: %w", err)
		}

		verified := 0
		var failures []error
		for _, t := range all {
			brokenSeq, err := audits.VerifyChain(t.ID)
			if err != nil {
				failures = append(failures, fmt.Errorf("failed to verify chain for tenant %s: %w", t.ID, err))
				continue
			}
			if brokenSeq != 0 {
				failures = append(failures, fmt.Errorf("audit chain broken for tenant %s at seq %d", t.ID, brokenSeq))
				continue
			}
			verified++
		}
		return verified, errors.Join(failures...)
	}
}

// AnonymizationJob blanks IP addresses on audit entries older than the
// retention window.
func AnonymizationJob(job *audit.AnonymizationJob) JobFunc {
	return func(ctx context.Context) (int, error) {
		return job.Run(ctx)
	}
}

// ArchiveUploadJob snapshots every tenant's audit chain to object
// storage.
func ArchiveUploadJob(tenants tenant.Repository, audits audit.Repository, svc *archive.Service) JobFunc {
	return func(ctx context.Context) (int, error) {
		all, err := tenants.List()
		if err != nil {
			return 0, fmt.Errorf("failed to list tenants: %w", err)
		}

		uploaded := 0
		for _, t := range all {
			if _, err := svc.Upload(ctx, audits, t.ID); err != nil {
				return uploaded, fmt.Errorf("failed to upload snapshot for tenant %s: %w", t.ID, err)
			}
			uploaded++
		}
		return uploaded, nil
	}
}

// IdempotencyCleanupJob deletes idempotency keys past their expiry.
func IdempotencyCleanupJob(repo idempotency.Repository, expiry time.Duration) JobFunc {
	return func(ctx context.Context) (int, error) {
		deleted, err := idempotency.CleanupOldKeys(repo, expiry)
		return int(deleted), err
	}
}
