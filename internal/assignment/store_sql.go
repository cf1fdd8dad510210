package assignment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const selectCols = `id,application_id,exam_id,note,assigned_by,invitation_code,deadline,status,score,needs_review,
	start_time,end_time,progress_json,answers_json,created_at,updated_at`

func (s *SQLStore) Create(ctx context.Context, a Assignment) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO exam_assignments
		(id,application_id,exam_id,note,assigned_by,invitation_code,deadline,status,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'PENDING',$8,$9)`,
		a.ID, a.ApplicationID, a.ExamID, a.Note, a.AssignedBy, a.Code,
		a.Deadline.Unix(), a.CreatedAt.Unix(), a.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM exam_assignments WHERE id=$1`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) GetByCode(ctx context.Context, code string) (Assignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM exam_assignments WHERE invitation_code=$1`, code)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assignment{}, ErrInvalidCode
	}
	return a, err
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Assignment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.ApplicationID != "" {
		add("application_id=$%d", opts.ApplicationID)
	}
	if opts.AssignedBy != "" {
		add("assigned_by=$%d", opts.AssignedBy)
	}
	if opts.Status != "" {
		add("status=$%d", string(opts.Status))
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + selectCols + ` FROM exam_assignments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, opts.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Assignment, 0, limit)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkStarted(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.exec(ctx, `UPDATE exam_assignments SET start_time=$1, updated_at=$1
		WHERE id=$2 AND status='PENDING' AND start_time IS NULL`, at.Unix(), id)
}

func (s *SQLStore) SaveProgress(ctx context.Context, id string, progress json.RawMessage, at time.Time) (bool, error) {
	return s.exec(ctx, `UPDATE exam_assignments SET progress_json=$1, updated_at=$2
		WHERE id=$3 AND status='PENDING' AND start_time IS NOT NULL`, string(progress), at.Unix(), id)
}

func (s *SQLStore) Complete(ctx context.Context, id string, c Completed, answers json.RawMessage) (bool, error) {
	return s.exec(ctx, `UPDATE exam_assignments
		SET status='COMPLETED', score=$1, needs_review=$2, end_time=$3, answers_json=$4, updated_at=$3
		WHERE id=$5 AND status='PENDING'`,
		c.Score, c.NeedsReview, c.EndTime.Unix(), string(answers), id)
}

func (s *SQLStore) Expire(ctx context.Context, id string, now time.Time) (bool, error) {
	return s.exec(ctx, `UPDATE exam_assignments
		SET status='EXPIRED', end_time=deadline, score=NULL, updated_at=$1
		WHERE id=$2 AND status='PENDING' AND deadline < $1`, now.Unix(), id)
}

func (s *SQLStore) Extend(ctx context.Context, id string, deadline, now time.Time) (bool, error) {
	return s.exec(ctx, `UPDATE exam_assignments SET deadline=$1, updated_at=$2
		WHERE id=$3 AND status='PENDING' AND deadline >= $2`, deadline.Unix(), now.Unix(), id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) (bool, error) {
	return s.exec(ctx, `DELETE FROM exam_assignments WHERE id=$1 AND status='PENDING'`, id)
}

func (s *SQLStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM exam_assignments
		WHERE status='PENDING' AND deadline < $1 ORDER BY deadline LIMIT $2`, now.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) exec(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(r scanner) (Assignment, error) {
	var (
		a                 Assignment
		status            string
		score             sql.NullFloat64
		needsReview       bool
		deadline          int64
		start, end        sql.NullInt64
		progress, answers sql.NullString
		created, updated  int64
	)
	if err := r.Scan(&a.ID, &a.ApplicationID, &a.ExamID, &a.Note, &a.AssignedBy, &a.Code, &deadline, &status,
		&score, &needsReview, &start, &end, &progress, &answers, &created, &updated); err != nil {
		return Assignment{}, err
	}
	a.Deadline = time.Unix(deadline, 0)
	a.CreatedAt = time.Unix(created, 0)
	a.UpdatedAt = time.Unix(updated, 0)
	if start.Valid {
		t := time.Unix(start.Int64, 0)
		a.StartTime = &t
	}
	if progress.Valid && progress.String != "" {
		a.Progress = json.RawMessage(progress.String)
	}
	if answers.Valid && answers.String != "" {
		a.Answers = json.RawMessage(answers.String)
	}

	switch Status(status) {
	case StatusPending:
		a.State = Pending{}
	case StatusCompleted:
		if !score.Valid || !end.Valid {
			return Assignment{}, fmt.Errorf("assignment %s: completed without score or end time", a.ID)
		}
		a.State = Completed{Score: score.Float64, EndTime: time.Unix(end.Int64, 0), NeedsReview: needsReview}
	case StatusExpired:
		if !end.Valid {
			return Assignment{}, fmt.Errorf("assignment %s: expired without end time", a.ID)
		}
		a.State = Expired{EndTime: time.Unix(end.Int64, 0)}
	default:
		return Assignment{}, fmt.Errorf("assignment %s: unknown status %q", a.ID, status)
	}
	return a, nil
}
