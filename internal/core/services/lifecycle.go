package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// maxErrorText bounds error text written to logs and to the store.
const maxErrorText = 1024

// Lifecycle is the per-provider ingestion state machine.
// Each Tick reads the persisted ingestion, performs exactly one transition
// and writes the result back; no state survives in memory between ticks.
type Lifecycle struct {
	store  driven.IngestionStore
	source driven.Source
	burst  *BurstExecutor
	config domain.IngestionConfig

	now func() time.Time
}

// NewLifecycle creates the state machine for one source.
// Zero-valued config fields fall back to domain.DefaultIngestionConfig.
func NewLifecycle(
	store driven.IngestionStore,
	source driven.Source,
	target driven.TargetStore,
	config domain.IngestionConfig,
) *Lifecycle {
	config = config.WithDefaults()
	return &Lifecycle{
		store:  store,
		source: source,
		burst:  NewBurstExecutor(store, source, target, config.BurstPageLimit),
		config: config,
		now:    time.Now,
	}
}

// ProviderName returns the provider this lifecycle drives.
func (l *Lifecycle) ProviderName() string {
	return l.source.ProviderName()
}

// Tick evaluates the state machine once.
//
// ctx is the cancellation signal: it stops a running burst between pages.
// Bookkeeping writes are detached from it so a cancelled tick still records
// its transition. Failures reading or writing the ingestion record are
// logged and returned; burst failures become transitions instead.
func (l *Lifecycle) Tick(ctx context.Context) error {
	provider := l.ProviderName()
	logger.Debug("tick %s", provider)

	if err := l.evaluate(ctx); err != nil {
		logger.Error("ingestion %s: tick failed: %s", provider, logger.Truncate(err.Error(), maxErrorText))
		return fmt.Errorf("tick %s: %w", provider, err)
	}
	return nil
}

// evaluate dispatches on the current action.
func (l *Lifecycle) evaluate(ctx context.Context) error {
	bg := context.WithoutCancel(ctx)
	provider := l.ProviderName()

	ing, err := l.current(bg)
	if err != nil {
		return err
	}
	if ing == nil {
		logger.Error("ingestion %s: no ingestion record after create, skipping tick", provider)
		return nil
	}

	switch ing.NextAction {
	case domain.ActionRest:
		return l.handleRest(bg, ing)
	case domain.ActionIngest:
		return l.handleIngest(ctx, ing)
	case domain.ActionBackoff:
		return l.handleBackoff(bg, ing)
	case domain.ActionCancel:
		return l.handleCancel(bg, ing)
	default:
		logger.Error("ingestion %s: unrecognized action %q on %s, no action taken", provider, ing.NextAction, ing.ID)
		return nil
	}
}

// current returns the active ingestion, creating one when none exists.
func (l *Lifecycle) current(ctx context.Context) (*domain.Ingestion, error) {
	provider := l.ProviderName()
	ing, err := l.store.GetCurrentIngestion(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("get current ingestion: %w", err)
	}
	if ing != nil {
		return ing, nil
	}

	ing, err = l.store.CreateIngestion(ctx, provider, l.now())
	if err != nil {
		return nil, fmt.Errorf("create ingestion: %w", err)
	}
	if ing != nil {
		logger.Info("ingestion %s: created %s", provider, ing.ID)
	}
	return ing, nil
}

// handleRest starts a fresh cycle once the rest period has elapsed.
func (l *Lifecycle) handleRest(ctx context.Context, ing *domain.Ingestion) error {
	now := l.now()
	if ing.Waiting(now) {
		logger.Debug("ingestion %s: resting until %s", ing.ProviderName, ing.NextActionAt.Format(time.RFC3339))
		return nil
	}

	if err := l.store.ClearFinishedIngestions(ctx, ing.ProviderName); err != nil {
		return fmt.Errorf("clear finished ingestions: %w", err)
	}
	if err := l.store.SetComplete(ctx, ing.ID, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info("ingestion %s: %s already finished elsewhere", ing.ProviderName, ing.ID)
			return nil
		}
		return fmt.Errorf("set complete: %w", err)
	}
	logger.Info("ingestion %s: %s complete, starting a fresh cycle", ing.ProviderName, ing.ID)

	next, err := l.store.CreateIngestion(ctx, ing.ProviderName, now)
	if err != nil {
		return fmt.Errorf("create ingestion: %w", err)
	}
	if next != nil {
		logger.Info("ingestion %s: created %s", ing.ProviderName, next.ID)
	}
	return nil
}

// handleIngest runs one burst and records its outcome.
func (l *Lifecycle) handleIngest(ctx context.Context, ing *domain.Ingestion) error {
	bg := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		logger.Debug("ingestion %s: stop requested before burst, skipping", ing.ProviderName)
		return nil
	}

	burstAt := l.now()
	if err := l.store.SetBursting(bg, ing.ID, burstAt, l.config.BurstLease); err != nil {
		if errors.Is(err, domain.ErrIngestionBusy) {
			logger.Info("ingestion %s: %s is bursting elsewhere", ing.ProviderName, ing.ID)
			return nil
		}
		return fmt.Errorf("set bursting: %w", err)
	}

	completed, burstErr := l.burst.Run(ctx, ing.ID)
	now := l.now()

	switch {
	case burstErr != nil && domain.IsCanceled(burstErr):
		reason := logger.Truncate(domain.CancelReason(burstErr), maxErrorText)
		logger.Warn("ingestion %s: burst canceled: %s", ing.ProviderName, reason)
		if err := l.store.SetCanceling(bg, ing.ID, now, reason); err != nil {
			return fmt.Errorf("set canceling: %w", err)
		}
		return nil

	case burstErr != nil:
		delay := l.config.Backoff.Delay(ing.Attempts)
		attempts := ing.Attempts + 1
		errText := logger.Truncate(burstErr.Error(), maxErrorText)
		logger.Warn("ingestion %s: burst failed (attempt %d), backing off %s: %s",
			ing.ProviderName, attempts, delay, errText)
		err := l.store.SetBackoff(bg, ing.ID, burstAt, now, attempts, errText, delay)
		return l.settle(ing, "set backoff", err)

	case completed:
		logger.Info("ingestion %s: cycle complete, resting %s", ing.ProviderName, l.config.RestLength)
		err := l.store.SetResting(bg, ing.ID, burstAt, now, l.config.RestLength)
		return l.settle(ing, "set resting", err)

	default:
		logger.Debug("ingestion %s: burst paused, continuing next tick", ing.ProviderName)
		err := l.store.SetInterstitial(bg, ing.ID, burstAt, now)
		return l.settle(ing, "set interstitial", err)
	}
}

// settle interprets the result of a post-burst transition. A burst that was
// superseded while it ran leaves the newer state in place.
func (l *Lifecycle) settle(ing *domain.Ingestion, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrBurstSuperseded), errors.Is(err, domain.ErrNotFound):
		logger.Info("ingestion %s: burst on %s superseded, keeping the newer state", ing.ProviderName, ing.ID)
		return nil
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// handleBackoff resumes ingesting once the backoff delay has elapsed.
func (l *Lifecycle) handleBackoff(ctx context.Context, ing *domain.Ingestion) error {
	now := l.now()
	if ing.Waiting(now) {
		logger.Debug("ingestion %s: backing off until %s", ing.ProviderName, ing.NextActionAt.Format(time.RFC3339))
		return nil
	}

	if err := l.store.SetIngesting(ctx, ing.ID, now); err != nil {
		return fmt.Errorf("set ingesting: %w", err)
	}
	logger.Info("ingestion %s: backoff elapsed, resuming after %d failed attempts", ing.ProviderName, ing.Attempts)
	return nil
}

// handleCancel finalizes a cancellation and restarts the cycle under a new identity.
func (l *Lifecycle) handleCancel(ctx context.Context, ing *domain.Ingestion) error {
	now := l.now()
	if err := l.store.SetCanceled(ctx, ing.ID, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info("ingestion %s: %s already finished elsewhere", ing.ProviderName, ing.ID)
			return nil
		}
		return fmt.Errorf("set canceled: %w", err)
	}
	logger.Info("ingestion %s: %s canceled (%s), restarting", ing.ProviderName, ing.ID, ing.CancelReason)

	next, err := l.store.CreateIngestion(ctx, ing.ProviderName, now)
	if err != nil {
		return fmt.Errorf("create ingestion: %w", err)
	}
	if next != nil {
		logger.Info("ingestion %s: created %s", ing.ProviderName, next.ID)
	}
	return nil
}

// Cancel requests cancellation of the active ingestion.
// The next tick finalizes it and starts over.
func (l *Lifecycle) Cancel(ctx context.Context, reason string) error {
	provider := l.ProviderName()
	ing, err := l.store.GetCurrentIngestion(ctx, provider)
	if err != nil {
		return fmt.Errorf("get current ingestion: %w", err)
	}
	if ing == nil {
		return fmt.Errorf("ingestion %s: %w", provider, domain.ErrNotFound)
	}
	if reason == "" {
		reason = "canceled by operator"
	}
	if err := l.store.SetCanceling(ctx, ing.ID, l.now(), reason); err != nil {
		return fmt.Errorf("set canceling: %w", err)
	}
	logger.Info("ingestion %s: cancellation requested for %s: %s", provider, ing.ID, reason)
	return nil
}

// Status returns the active ingestion and its last mark.
// Both are nil when no ingestion exists yet.
func (l *Lifecycle) Status(ctx context.Context) (*domain.Ingestion, *domain.Mark, error) {
	ing, err := l.store.GetCurrentIngestion(ctx, l.ProviderName())
	if err != nil {
		return nil, nil, fmt.Errorf("get current ingestion: %w", err)
	}
	if ing == nil {
		return nil, nil, nil
	}
	last, err := l.store.GetLastMark(ctx, ing.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get last mark: %w", err)
	}
	return ing, last, nil
}
