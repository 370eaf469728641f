package subscription

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	pdb "MESS-backend/internal/platform/db"
)

// subscriptions スキーマ（参考）:
//
//	CREATE TABLE subscriptions (
//	  sub_id     BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	  sub_ulid   CHAR(26)    NOT NULL,
//	  user_id    VARCHAR(64) NOT NULL,
//	  plan       VARCHAR(16) NOT NULL,
//	  starts_on  DATE        NOT NULL,
//	  ends_on    DATE        NOT NULL,
//	  status     VARCHAR(16) NOT NULL,
//	  created_at DATETIME(6) NOT NULL,
//	  UNIQUE KEY uq_sub_ulid (sub_ulid),
//	  KEY idx_user_status (user_id, status)
//	);

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const selectCols = `
	SELECT sub_id, sub_ulid, user_id, plan,
	       DATE_FORMAT(starts_on, '%Y-%m-%d'), DATE_FORMAT(ends_on, '%Y-%m-%d'),
	       status, created_at`

// Tx内外どちらからも使えるよう DBTX を受ける（lends系と同じ作り）

func insertTx(ctx context.Context, q pdb.DBTX, sub *Subscription) error {
	const stmt = `
	INSERT INTO subscriptions (sub_ulid, user_id, plan, starts_on, ends_on, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, NOW(6))`
	res, err := q.ExecContext(ctx, stmt, sub.SubULID, sub.UserID, sub.Plan, sub.StartsOn, sub.EndsOn, sub.Status)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		sub.SubID = id
	}
	return nil
}

// getActiveTx: 指定日に有効な契約。複数あれば開始日が新しいもの
func getActiveTx(ctx context.Context, q pdb.DBTX, userID, onDate string) (*Subscription, error) {
	row := q.QueryRowContext(ctx, selectCols+`
	FROM subscriptions
	WHERE user_id = ? AND status = ? AND starts_on <= ? AND ends_on >= ?
	ORDER BY starts_on DESC, sub_id DESC
	LIMIT 1`, userID, StatusActive, onDate, onDate)
	var sub Subscription
	err := row.Scan(&sub.SubID, &sub.SubULID, &sub.UserID, &sub.Plan, &sub.StartsOn, &sub.EndsOn, &sub.Status, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) GetActive(ctx context.Context, userID, onDate string) (*Subscription, error) {
	return getActiveTx(ctx, s.db, userID, onDate)
}

func (s *Store) GetByULID(ctx context.Context, subULID string) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` FROM subscriptions WHERE sub_ulid = ?`, subULID)
	var sub Subscription
	err := row.Scan(&sub.SubID, &sub.SubULID, &sub.UserID, &sub.Plan, &sub.StartsOn, &sub.EndsOn, &sub.Status, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]Subscription, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)
	buf.WriteString(selectCols)
	buf.WriteString(" FROM subscriptions")

	if f.UserID != "" {
		wheres = append(wheres, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		wheres = append(wheres, "status = ?")
		args = append(args, f.Status)
	}
	if f.ActiveOn != "" {
		wheres = append(wheres, "starts_on <= ? AND ends_on >= ?")
		args = append(args, f.ActiveOn, f.ActiveOn)
	}
	if len(wheres) > 0 {
		buf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}
	buf.WriteString(" ORDER BY starts_on DESC, sub_id DESC")

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, f.Offset))

	var out []Subscription
	// 一覧は読み取り専用Txで
	err := pdb.ReadOnly(ctx, s.db, func(ctx context.Context, tx pdb.DBTX) error {
		rows, err := tx.QueryContext(ctx, buf.String(), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var sub Subscription
			if err := rows.Scan(&sub.SubID, &sub.SubULID, &sub.UserID, &sub.Plan, &sub.StartsOn, &sub.EndsOn, &sub.Status, &sub.CreatedAt); err != nil {
				return err
			}
			out = append(out, sub)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, subULID, status string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE subscriptions SET status = ? WHERE sub_ulid = ?`, status, subULID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
