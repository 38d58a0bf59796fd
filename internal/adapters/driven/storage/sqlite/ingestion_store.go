package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// ingestionStore implements driven.IngestionStore.
type ingestionStore struct {
	store *Store
}

var _ driven.IngestionStore = (*ingestionStore)(nil)

const ingestionColumns = `id, provider_name, next_action, next_action_at, attempts, status,
	last_error, cancel_reason, burst_started_at, created_at, updated_at, finished_at`

// GetCurrentIngestion returns the active ingestion for a provider.
// Returns nil and no error if none exists.
func (s *ingestionStore) GetCurrentIngestion(ctx context.Context, providerName string) (*domain.Ingestion, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+ingestionColumns+`
		FROM ingestions WHERE provider_name = ? AND finished_at IS NULL
	`, providerName)

	ing, err := scanIngestion(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // Per interface: return nil and no error if not found
	}
	if err != nil {
		return nil, err
	}
	return ing, nil
}

// CreateIngestion creates an ingestion unless one is already active.
// The partial unique index on active ingestions makes concurrent creates
// converge on one record.
func (s *ingestionStore) CreateIngestion(ctx context.Context, providerName string, at time.Time) (*domain.Ingestion, error) {
	if providerName == "" {
		return nil, domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ingestions (id, provider_name, next_action, attempts, status, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)
	`, uuid.NewString(), providerName, string(domain.ActionIngest), string(domain.StatusPending),
		at.UnixMilli(), at.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("creating ingestion: %w", err)
	}

	return s.GetCurrentIngestion(ctx, providerName)
}

// SetIngesting resets the ingestion to ingest, keeping its attempt count.
func (s *ingestionStore) SetIngesting(ctx context.Context, ingestionID string, at time.Time) error {
	return s.transition(ctx, ingestionID, `
		UPDATE ingestions
		SET next_action = ?, status = ?, next_action_at = NULL, updated_at = ?
		WHERE id = ? AND finished_at IS NULL
	`, string(domain.ActionIngest), string(domain.StatusPending), at.UnixMilli(), ingestionID)
}

// SetBursting claims the burst unless another burst holds an unexpired lease.
func (s *ingestionStore) SetBursting(ctx context.Context, ingestionID string, at time.Time, lease time.Duration) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE ingestions
		SET next_action = ?, status = ?, burst_started_at = ?, updated_at = ?
		WHERE id = ? AND finished_at IS NULL AND next_action = ?
		  AND (status != ? OR burst_started_at IS NULL OR burst_started_at + ? <= ?)
	`, string(domain.ActionIngest), string(domain.StatusBursting), at.UnixMilli(), at.UnixMilli(),
		ingestionID, string(domain.ActionIngest), string(domain.StatusBursting), lease.Milliseconds(), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("setting bursting: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting bursting: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Distinguish a held lease from a missing ingestion
	var exists int
	err = s.store.db.QueryRowContext(ctx,
		"SELECT 1 FROM ingestions WHERE id = ? AND finished_at IS NULL", ingestionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking ingestion: %w", err)
	}
	return domain.ErrIngestionBusy
}

// SetInterstitial records a successful partial burst.
func (s *ingestionStore) SetInterstitial(ctx context.Context, ingestionID string, burstStartedAt, at time.Time) error {
	return s.burstTransition(ctx, ingestionID, burstStartedAt, `
		UPDATE ingestions
		SET next_action = ?, status = ?, attempts = 0, last_error = NULL, updated_at = ?
		WHERE id = ? AND finished_at IS NULL AND status = ? AND burst_started_at = ?
	`, string(domain.ActionIngest), string(domain.StatusInterstitial), at.UnixMilli(), ingestionID)
}

// SetResting records a completed cycle.
func (s *ingestionStore) SetResting(
	ctx context.Context,
	ingestionID string,
	burstStartedAt, at time.Time,
	restLength time.Duration,
) error {
	return s.burstTransition(ctx, ingestionID, burstStartedAt, `
		UPDATE ingestions
		SET next_action = ?, status = ?, next_action_at = ?, attempts = 0, last_error = NULL, updated_at = ?
		WHERE id = ? AND finished_at IS NULL AND status = ? AND burst_started_at = ?
	`, string(domain.ActionRest), string(domain.StatusResting), at.Add(restLength).UnixMilli(),
		at.UnixMilli(), ingestionID)
}

// SetBackoff records a failed burst.
func (s *ingestionStore) SetBackoff(
	ctx context.Context,
	ingestionID string,
	burstStartedAt, at time.Time,
	attempts int,
	errText string,
	delay time.Duration,
) error {
	return s.burstTransition(ctx, ingestionID, burstStartedAt, `
		UPDATE ingestions
		SET next_action = ?, status = ?, next_action_at = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND finished_at IS NULL AND status = ? AND burst_started_at = ?
	`, string(domain.ActionBackoff), string(domain.StatusBackingOff), at.Add(delay).UnixMilli(),
		attempts, nullString(errText), at.UnixMilli(), ingestionID)
}

// SetCanceling moves the ingestion to the cancel action.
func (s *ingestionStore) SetCanceling(ctx context.Context, ingestionID string, at time.Time, reason string) error {
	return s.transition(ctx, ingestionID, `
		UPDATE ingestions
		SET next_action = ?, status = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ? AND finished_at IS NULL
	`, string(domain.ActionCancel), string(domain.StatusCanceling), nullString(reason), at.UnixMilli(), ingestionID)
}

// SetCanceled finishes a canceled ingestion.
func (s *ingestionStore) SetCanceled(ctx context.Context, ingestionID string, at time.Time) error {
	return s.transition(ctx, ingestionID, `
		UPDATE ingestions
		SET status = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND finished_at IS NULL
	`, string(domain.StatusCanceled), at.UnixMilli(), at.UnixMilli(), ingestionID)
}

// SetComplete finishes an ingestion whose rest period elapsed.
func (s *ingestionStore) SetComplete(ctx context.Context, ingestionID string, at time.Time) error {
	return s.transition(ctx, ingestionID, `
		UPDATE ingestions
		SET status = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND finished_at IS NULL
	`, string(domain.StatusComplete), at.UnixMilli(), at.UnixMilli(), ingestionID)
}

// ClearFinishedIngestions removes finished ingestions of a provider.
// Marks and mark entities go with them through ON DELETE CASCADE.
func (s *ingestionStore) ClearFinishedIngestions(ctx context.Context, providerName string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM ingestions WHERE provider_name = ? AND finished_at IS NOT NULL", providerName)
	if err != nil {
		return fmt.Errorf("clearing finished ingestions: %w", err)
	}
	return nil
}

// GetLastMark returns the highest-sequence mark of an ingestion with its entities.
// Returns nil and no error if the ingestion has no marks.
func (s *ingestionStore) GetLastMark(ctx context.Context, ingestionID string) (*domain.Mark, error) {
	var mark domain.Mark
	var provider string
	var createdAt sql.NullInt64

	err := s.store.db.QueryRowContext(ctx, `
		SELECT m.id, m.ingestion_id, m.sequence, m.cursor, m.created_at, i.provider_name
		FROM marks m JOIN ingestions i ON i.id = m.ingestion_id
		WHERE m.ingestion_id = ?
		ORDER BY m.sequence DESC LIMIT 1
	`, ingestionID).Scan(&mark.ID, &mark.IngestionID, &mark.Sequence, &mark.Cursor, &createdAt, &provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning mark: %w", err)
	}
	mark.CreatedAt = fromMillis(createdAt)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT entity_key, kind, attributes FROM mark_entities
		WHERE mark_id = ? ORDER BY entity_key
	`, mark.ID)
	if err != nil {
		return nil, fmt.Errorf("querying mark entities: %w", err)
	}
	defer rows.Close()

	mark.Entities, err = scanEntities(rows, provider)
	if err != nil {
		return nil, err
	}
	return &mark, nil
}

// CreateMark persists a mark and its entities in one transaction.
func (s *ingestionStore) CreateMark(ctx context.Context, mark domain.Mark) error {
	if mark.ID == "" || mark.IngestionID == "" {
		return domain.ErrInvalidInput
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		var last sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			SELECT (SELECT MAX(sequence) FROM marks WHERE ingestion_id = i.id)
			FROM ingestions i WHERE i.id = ?
		`, mark.IngestionID).Scan(&last)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("reading last sequence: %w", err)
		}

		next := 0
		if last.Valid {
			next = int(last.Int64) + 1
		}
		if mark.Sequence != next {
			return domain.ErrMarkOutOfOrder
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO marks (id, ingestion_id, sequence, cursor, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, mark.ID, mark.IngestionID, mark.Sequence, mark.Cursor, mark.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("inserting mark: %w", err)
		}

		return insertMarkEntities(ctx, tx, mark.ID, mark.Entities)
	})
}

// ComputeRemoved returns entities the provider's most recently completed
// ingestion recorded at the mark before sequence that the current ingestion
// has not recorded.
func (s *ingestionStore) ComputeRemoved(
	ctx context.Context,
	providerName, ingestionID string,
	sequence int,
) ([]domain.Entity, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT me.entity_key, me.kind, me.attributes
		FROM mark_entities me
		JOIN marks m ON m.id = me.mark_id
		WHERE m.ingestion_id = (
			SELECT id FROM ingestions
			WHERE provider_name = ? AND status = ?
			ORDER BY finished_at DESC LIMIT 1
		)
		AND m.sequence = ? - 1
		AND me.entity_key NOT IN (
			SELECT ce.entity_key FROM mark_entities ce
			JOIN marks cm ON cm.id = ce.mark_id
			WHERE cm.ingestion_id = ?
		)
		ORDER BY me.entity_key
	`, providerName, string(domain.StatusComplete), sequence, ingestionID)
	if err != nil {
		return nil, fmt.Errorf("computing removed entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows, providerName)
}

// ListMarks returns an ingestion's marks ordered by sequence, without entities.
func (s *ingestionStore) ListMarks(ctx context.Context, ingestionID string) ([]domain.Mark, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, ingestion_id, sequence, cursor, created_at
		FROM marks WHERE ingestion_id = ?
		ORDER BY sequence
	`, ingestionID)
	if err != nil {
		return nil, fmt.Errorf("querying marks: %w", err)
	}
	defer rows.Close()

	marks := []domain.Mark{}
	for rows.Next() {
		var m domain.Mark
		var createdAt sql.NullInt64
		if err := rows.Scan(&m.ID, &m.IngestionID, &m.Sequence, &m.Cursor, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning mark: %w", err)
		}
		m.CreatedAt = fromMillis(createdAt)
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating marks: %w", err)
	}
	return marks, nil
}

// transition runs a guarded UPDATE and maps zero affected rows to ErrNotFound.
func (s *ingestionStore) transition(ctx context.Context, ingestionID, query string, args ...interface{}) error {
	res, err := s.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating ingestion %s: %w", ingestionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating ingestion %s: %w", ingestionID, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// burstTransition runs a post-burst UPDATE whose WHERE clause ends with the
// status and burst_started_at guards. Zero affected rows on an active
// ingestion map to ErrBurstSuperseded.
func (s *ingestionStore) burstTransition(
	ctx context.Context,
	ingestionID string,
	burstStartedAt time.Time,
	query string,
	args ...interface{},
) error {
	args = append(args, string(domain.StatusBursting), burstStartedAt.UnixMilli())
	err := s.transition(ctx, ingestionID, query, args...)
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	var exists int
	err = s.store.db.QueryRowContext(ctx,
		"SELECT 1 FROM ingestions WHERE id = ? AND finished_at IS NULL", ingestionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking ingestion: %w", err)
	}
	return domain.ErrBurstSuperseded
}

// insertMarkEntities upserts entities against a mark.
func insertMarkEntities(ctx context.Context, tx *sql.Tx, markID string, entities []domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mark_entities (mark_id, entity_key, kind, attributes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(mark_id, entity_key) DO UPDATE SET
			kind = excluded.kind,
			attributes = excluded.attributes
	`)
	if err != nil {
		return fmt.Errorf("preparing mark entity insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		attrs, err := marshalAttributes(e.Attributes)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, markID, e.Key, e.Kind, attrs); err != nil {
			return fmt.Errorf("inserting mark entity %s: %w", e.Key, err)
		}
	}
	return nil
}

// scanIngestion scans a single ingestion row.
func scanIngestion(row *sql.Row) (*domain.Ingestion, error) {
	var ing domain.Ingestion
	var action, status string
	var lastError, cancelReason sql.NullString
	var nextActionAt, burstStartedAt, createdAt, updatedAt, finishedAt sql.NullInt64

	if err := row.Scan(&ing.ID, &ing.ProviderName, &action, &nextActionAt, &ing.Attempts, &status,
		&lastError, &cancelReason, &burstStartedAt, &createdAt, &updatedAt, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning ingestion: %w", err)
	}

	ing.NextAction = domain.Action(action)
	ing.Status = domain.IngestionStatus(status)
	ing.NextActionAt = fromMillis(nextActionAt)
	ing.LastError = lastError.String
	ing.CancelReason = cancelReason.String
	ing.BurstStartedAt = fromMillis(burstStartedAt)
	ing.CreatedAt = fromMillis(createdAt)
	ing.UpdatedAt = fromMillis(updatedAt)
	ing.FinishedAt = fromMillis(finishedAt)

	return &ing, nil
}

// scanEntities scans entity_key, kind, attributes rows tagged with provider.
func scanEntities(rows *sql.Rows, provider string) ([]domain.Entity, error) {
	entities := []domain.Entity{}
	for rows.Next() {
		var e domain.Entity
		var attrs string
		if err := rows.Scan(&e.Key, &e.Kind, &attrs); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		parsed, err := unmarshalAttributes(attrs)
		if err != nil {
			return nil, err
		}
		e.Attributes = parsed
		e.Provider = provider
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}
