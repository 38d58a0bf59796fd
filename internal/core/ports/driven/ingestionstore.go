package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// IngestionStore persists ingestion lifecycle state and progress marks.
// Every transition targets an active (unfinished) ingestion and returns
// domain.ErrNotFound when the ingestion is missing or already finished.
type IngestionStore interface {
	// GetCurrentIngestion returns the active ingestion for a provider.
	// Returns nil and no error if none exists.
	GetCurrentIngestion(ctx context.Context, providerName string) (*domain.Ingestion, error)

	// CreateIngestion creates an ingestion with action ingest for a provider.
	// If an active ingestion already exists it is returned unchanged.
	CreateIngestion(ctx context.Context, providerName string, at time.Time) (*domain.Ingestion, error)

	// SetIngesting resets the ingestion to ingest, keeping its attempt count.
	SetIngesting(ctx context.Context, ingestionID string, at time.Time) error

	// SetBursting marks the ingestion as actively bursting.
	// It fails with domain.ErrIngestionBusy when the next action is no longer
	// ingest or another burst started less than lease ago.
	//
	// The post-burst transitions SetInterstitial, SetResting and SetBackoff
	// take the burstStartedAt that was claimed. They fail with
	// domain.ErrBurstSuperseded unless the ingestion is still in that burst.
	SetBursting(ctx context.Context, ingestionID string, at time.Time, lease time.Duration) error

	// SetInterstitial records a successful partial burst and resets attempts.
	SetInterstitial(ctx context.Context, ingestionID string, burstStartedAt, at time.Time) error

	// SetResting records a completed cycle; the ingestion rests until at+restLength.
	SetResting(ctx context.Context, ingestionID string, burstStartedAt, at time.Time, restLength time.Duration) error

	// SetBackoff records a failed burst; the ingestion waits until at+delay.
	SetBackoff(
		ctx context.Context,
		ingestionID string,
		burstStartedAt, at time.Time,
		attempts int,
		errText string,
		delay time.Duration,
	) error

	// SetCanceling moves the ingestion to the cancel action.
	SetCanceling(ctx context.Context, ingestionID string, at time.Time, reason string) error

	// SetCanceled finishes a canceled ingestion.
	SetCanceled(ctx context.Context, ingestionID string, at time.Time) error

	// SetComplete finishes an ingestion whose rest period elapsed.
	SetComplete(ctx context.Context, ingestionID string, at time.Time) error

	// ClearFinishedIngestions removes finished ingestions of a provider and their marks.
	ClearFinishedIngestions(ctx context.Context, providerName string) error

	// GetLastMark returns the highest-sequence mark of an ingestion.
	// Returns nil and no error if the ingestion has no marks.
	GetLastMark(ctx context.Context, ingestionID string) (*domain.Mark, error)

	// CreateMark persists a mark and its entities atomically.
	// It fails with domain.ErrMarkOutOfOrder unless the sequence directly
	// follows the ingestion's last mark.
	CreateMark(ctx context.Context, mark domain.Mark) error

	// ComputeRemoved returns the entities the provider's most recently completed
	// ingestion recorded at the mark preceding sequence that the current
	// ingestion has not recorded in any mark. Reconciliation runs one page
	// behind so an entity pushed onto the next page is not removed. Sequence 0
	// has no candidates.
	ComputeRemoved(ctx context.Context, providerName, ingestionID string, sequence int) ([]domain.Entity, error)

	// ListMarks returns an ingestion's marks ordered by sequence, without entities.
	ListMarks(ctx context.Context, ingestionID string) ([]domain.Mark, error)
}
