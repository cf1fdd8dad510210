package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) PutPaper(ctx context.Context, p Paper) error {
	qj, err := json.Marshal(p.Questions)
	if err != nil {
		return err
	}
	var sub sql.NullInt64
	if p.SubCategoryID != nil {
		sub = sql.NullInt64{Int64: *p.SubCategoryID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO exam_papers
		(id,name,description,category_id,sub_category_id,owner_id,is_private,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Description, p.CategoryID, sub, p.OwnerID, p.Private, string(qj), p.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert paper: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPaperExists
	}
	return nil
}

func (s *SQLStore) GetPaper(ctx context.Context, id string) (Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,name,description,category_id,sub_category_id,owner_id,is_private,questions_json,created_at
		FROM exam_papers WHERE id=$1`, id)
	var (
		p       Paper
		sub     sql.NullInt64
		qjson   string
		created int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &sub, &p.OwnerID, &p.Private, &qjson, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Paper{}, ErrPaperNotFound
		}
		return Paper{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &p.Questions); err != nil {
		return Paper{}, fmt.Errorf("decode questions of %s: %w", id, err)
	}
	if sub.Valid {
		v := sub.Int64
		p.SubCategoryID = &v
	}
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}
