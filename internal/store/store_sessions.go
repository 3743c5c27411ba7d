package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CurrentSample describes the next sample a specialist should annotate,
// with the open session if one exists.
type CurrentSample struct {
	SessionID       *int64
	SessionUUID     string
	SessionStatus   SessionStatus
	SpecialistOrder int
	OrderEntry      OrderedSample
}

// SessionCompletion carries the payload persisted when a session finishes.
type SessionCompletion struct {
	AudioFilename       string
	AudioDurationMS     *int64
	ImageDimensionsJSON string
	LayoutSettingsJSON  string
}

// NewAnnotation is one annotation shape submitted at session completion.
type NewAnnotation struct {
	Type                 string
	Color                string
	LanesJSON            string
	BBoxNormalizedJSON   string
	PointsNormalizedJSON string
	TimestampStartMS     *int64
	TimestampEndMS       *int64
}

// CreateSession opens an annotation session for one sample of an assignment
// and returns it. The session UUID is generated here.
func (s *Store) CreateSession(ctx context.Context, assignmentID, experimentSampleID int64) (*AnnotationSession, error) {
	sessionUUID := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO annotation_sessions (assignment_id, experiment_sample_id, session_uuid, status, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		assignmentID, experimentSampleID, sessionUUID, string(SessionInProgress), nowTimestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	if _, err := res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSessionByUUID(ctx, sessionUUID)
}

// GetSessionByUUID returns an annotation session by its UUID.
func (s *Store) GetSessionByUUID(ctx context.Context, sessionUUID string) (*AnnotationSession, error) {
	row := s.db.QueryRowContext(ctx, sessionSelect+" WHERE session_uuid = ?", sessionUUID)
	return scanSession(row)
}

// CurrentSessionSample returns the next incomplete sample in an assignment's
// randomized order, joined with its open session when one exists. ErrNotFound
// means the assignment is fully annotated.
func (s *Store) CurrentSessionSample(ctx context.Context, assignmentID int64) (*CurrentSample, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ans.id, ans.session_uuid, ans.status,
            sso.specialist_order, sso.experiment_sample_id,
            s.id, s.drug_name, s.drug_name_display, s.card_id, s.filename,
            s.image_path, s.quantity, s.image_type, s.created_at
         FROM specialist_sample_order sso
         JOIN experiment_samples es ON sso.experiment_sample_id = es.id
         JOIN samples s ON es.sample_id = s.id
         LEFT JOIN annotation_sessions ans ON ans.assignment_id = sso.assignment_id
            AND ans.experiment_sample_id = sso.experiment_sample_id
         WHERE sso.assignment_id = ?
            AND (ans.status IS NULL OR ans.status != ?)
         ORDER BY sso.specialist_order
         LIMIT 1`,
		assignmentID, string(SessionCompleted),
	)

	var (
		current       CurrentSample
		sessionID     sql.NullInt64
		sessionUUID   sql.NullString
		sessionStatus sql.NullString
		quantity      sql.NullInt64
		imageType     sql.NullString
		createdAt     string
	)
	err := row.Scan(
		&sessionID, &sessionUUID, &sessionStatus,
		&current.SpecialistOrder, &current.OrderEntry.ExperimentSampleID,
		&current.OrderEntry.Sample.ID, &current.OrderEntry.Sample.DrugName,
		&current.OrderEntry.Sample.DrugNameDisplay, &current.OrderEntry.Sample.CardID,
		&current.OrderEntry.Sample.Filename, &current.OrderEntry.Sample.ImagePath,
		&quantity, &imageType, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no remaining samples: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan current sample: %w", err)
	}

	current.SessionID = int64Pointer(sessionID)
	current.SessionUUID = sessionUUID.String
	current.SessionStatus = SessionStatus(sessionStatus.String)
	current.OrderEntry.SpecialistOrder = current.SpecialistOrder
	current.OrderEntry.Sample.Quantity = intPointer(quantity)
	current.OrderEntry.Sample.ImageType = imageType.String
	if current.OrderEntry.Sample.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	return &current, nil
}

// CompleteSession marks a session completed and stores its annotations in
// one transaction.
func (s *Store) CompleteSession(ctx context.Context, sessionID int64, completion SessionCompletion, annotations []NewAnnotation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE annotation_sessions
         SET status = ?, audio_filename = ?, audio_duration_ms = ?,
             image_dimensions_json = ?, layout_settings_json = ?, completed_at = ?
         WHERE id = ? AND status != ?`,
		string(SessionCompleted),
		nullableString(completion.AudioFilename),
		nullableInt64(completion.AudioDurationMS),
		nullableString(completion.ImageDimensionsJSON),
		nullableString(completion.LayoutSettingsJSON),
		nowTimestamp(),
		sessionID,
		string(SessionCompleted),
	)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %d missing or already completed: %w", sessionID, ErrConflict)
	}

	timestamp := nowTimestamp()
	for _, annotation := range annotations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO annotations (
                session_id, annotation_type, color, lanes_json,
                bbox_normalized_json, points_normalized_json,
                timestamp_start_ms, timestamp_end_ms, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID,
			annotation.Type,
			nullableString(annotation.Color),
			nullableString(annotation.LanesJSON),
			nullableString(annotation.BBoxNormalizedJSON),
			nullableString(annotation.PointsNormalizedJSON),
			nullableInt64(annotation.TimestampStartMS),
			nullableInt64(annotation.TimestampEndMS),
			timestamp,
		); err != nil {
			return fmt.Errorf("insert annotation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session completion: %w", err)
	}
	return nil
}

// SessionAnnotations returns the annotations stored for a session.
func (s *Store) SessionAnnotations(ctx context.Context, sessionID int64) ([]*Annotation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, annotation_type, color, lanes_json,
            bbox_normalized_json, points_normalized_json,
            timestamp_start_ms, timestamp_end_ms, created_at
         FROM annotations WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var annotations []*Annotation
	for rows.Next() {
		var (
			annotation Annotation
			color      sql.NullString
			lanes      sql.NullString
			bbox       sql.NullString
			points     sql.NullString
			startMS    sql.NullInt64
			endMS      sql.NullInt64
			createdAt  string
		)
		err := rows.Scan(
			&annotation.ID, &annotation.SessionID, &annotation.Type, &color,
			&lanes, &bbox, &points, &startMS, &endMS, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		annotation.Color = color.String
		annotation.LanesJSON = lanes.String
		annotation.BBoxNormalizedJSON = bbox.String
		annotation.PointsNormalizedJSON = points.String
		annotation.TimestampStartMS = int64Pointer(startMS)
		annotation.TimestampEndMS = int64Pointer(endMS)
		if annotation.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		annotations = append(annotations, &annotation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return annotations, nil
}

const sessionSelect = `SELECT id, assignment_id, experiment_sample_id, session_uuid,
    status, audio_filename, audio_duration_ms, image_dimensions_json,
    layout_settings_json, created_at, completed_at FROM annotation_sessions`

func scanSession(row rowScanner) (*AnnotationSession, error) {
	var (
		session       AnnotationSession
		status        string
		audioFilename sql.NullString
		audioDuration sql.NullInt64
		dimensions    sql.NullString
		layout        sql.NullString
		createdAt     string
		completedAt   sql.NullString
	)
	err := row.Scan(
		&session.ID, &session.AssignmentID, &session.ExperimentSampleID,
		&session.SessionUUID, &status, &audioFilename, &audioDuration,
		&dimensions, &layout, &createdAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.Status = SessionStatus(status)
	session.AudioFilename = audioFilename.String
	session.AudioDurationMS = int64Pointer(audioDuration)
	session.ImageDimensionsJSON = dimensions.String
	session.LayoutSettingsJSON = layout.String
	if session.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if session.CompletedAt, err = parseOptionalTimestamp(completedAt); err != nil {
		return nil, err
	}
	return &session, nil
}
