package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// meal_scans スキーマ（参考）:
//
//	CREATE TABLE meal_scans (
//	  scan_id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	  scan_ulid         CHAR(26)     NOT NULL,
//	  user_id           VARCHAR(64)  NOT NULL,
//	  subscription_ulid CHAR(26)     NULL,
//	  meal_type         VARCHAR(16)  NOT NULL,
//	  scan_date         DATE         NOT NULL,
//	  scanned_at        DATETIME(6)  NOT NULL,
//	  latitude          DOUBLE       NULL,
//	  longitude         DOUBLE       NULL,
//	  distance_m        DOUBLE       NULL,
//	  qr_code           VARCHAR(255) NOT NULL DEFAULT '',
//	  is_valid          TINYINT(1)   NOT NULL,
//	  valid_marker      TINYINT      NULL,
//	  errors            JSON         NOT NULL,
//	  created_at        DATETIME(6)  NOT NULL,
//	  UNIQUE KEY uq_scan_ulid (scan_ulid),
//	  UNIQUE KEY uq_valid_scan (user_id, scan_date, meal_type, valid_marker),
//	  KEY idx_user_date (user_id, scan_date)
//	);
//
// valid_marker は有効スキャンで1、無効スキャンでNULL。MySQLのユニーク索引は
// NULL同士を衝突させないので、(user, scan_date, meal_type) につき有効行は
// 高々1件、無効行（監査用）は無制限になる。check-then-act の競合はここで落ちる

type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

// ErrDuplicateValidScan: uq_valid_scan 違反。重複チェック失敗と同じ扱いにする
var ErrDuplicateValidScan = errors.New("valid scan already recorded for this user/date/meal")

type Store struct{ db DBTX }

func NewStore(db DBTX) *Store { return &Store{db: db} }

// InsertScan: 判定結果付きで1行挿入。scan_id を書き戻す。
// 有効スキャン同士のユニーク制約違反は ErrDuplicateValidScan に写す
func (s *Store) InsertScan(ctx context.Context, sc *Scan) error {
	errsJSON, err := json.Marshal(sc.Errors)
	if err != nil {
		return err
	}

	var lat, lng, dist any
	if sc.Geo != nil {
		lat, lng = sc.Geo.Lat, sc.Geo.Lng
	}
	if sc.DistanceM != nil {
		dist = *sc.DistanceM
	}
	var subULID any
	if sc.SubscriptionULID != nil {
		subULID = *sc.SubscriptionULID
	}
	var marker any
	if sc.IsValid {
		marker = 1
	}

	const q = `
	INSERT INTO meal_scans
	(scan_ulid, user_id, subscription_ulid, meal_type, scan_date, scanned_at,
	 latitude, longitude, distance_m, qr_code, is_valid, valid_marker, errors, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6))`

	res, err := s.db.ExecContext(ctx, q,
		sc.ScanULID, sc.UserID, subULID, sc.MealType, sc.ScanDate, sc.ScannedAt.UTC(),
		lat, lng, dist, sc.QRCode, sc.IsValid, marker, string(errsJSON),
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 && strings.Contains(me.Message, "uq_valid_scan") {
			return ErrDuplicateValidScan
		}
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		sc.ScanID = uint64(id)
	}
	return nil
}

// HasValidScan: 同一 (user, scan_date, meal_type) の有効スキャンが既に
// あるか。excludeULID は再検証中の自分自身を除外するため
func (s *Store) HasValidScan(ctx context.Context, userID, scanDate, mealType, excludeULID string) (bool, error) {
	var (
		buf  bytes.Buffer
		args []any
	)
	buf.WriteString(`
	SELECT 1 FROM meal_scans
	WHERE user_id = ? AND scan_date = ? AND meal_type = ? AND is_valid = 1`)
	args = append(args, userID, scanDate, mealType)
	if excludeULID != "" {
		buf.WriteString(" AND scan_ulid <> ?")
		args = append(args, excludeULID)
	}
	buf.WriteString(" LIMIT 1")

	var one int
	err := s.db.QueryRowContext(ctx, buf.String(), args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetByULID(ctx context.Context, scanULID string) (*Scan, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` FROM meal_scans WHERE scan_ulid = ?`, scanULID)
	var r scanRow
	if err := scanOne(row, &r); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m := r.toModel()
	return &m, nil
}

const selectCols = `
	SELECT scan_id, scan_ulid, user_id, subscription_ulid, meal_type,
	       DATE_FORMAT(scan_date, '%Y-%m-%d') AS scan_date, scanned_at,
	       latitude, longitude, distance_m, qr_code, is_valid, errors`

// List: 条件に応じて動的WHERE + ORDER + LIMIT/OFFSET
func (s *Store) List(ctx context.Context, q ListQuery) ([]Scan, int64, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)

	buf.WriteString(selectCols)
	buf.WriteString(" FROM meal_scans")

	if q.UserID != nil && *q.UserID != "" {
		wheres = append(wheres, "user_id = ?")
		args = append(args, *q.UserID)
	}
	if q.MealType != nil && *q.MealType != "" {
		wheres = append(wheres, "meal_type = ?")
		args = append(args, *q.MealType)
	}
	if q.ValidOnly {
		wheres = append(wheres, "is_valid = 1")
	}
	if q.On != nil && *q.On != "" {
		wheres = append(wheres, "scan_date = ?")
		args = append(args, *q.On)
	} else {
		if q.From != nil && *q.From != "" {
			wheres = append(wheres, "scan_date >= ?")
			args = append(args, *q.From)
		}
		if q.To != nil && *q.To != "" {
			wheres = append(wheres, "scan_date <= ?")
			args = append(args, *q.To)
		}
	}
	if len(wheres) > 0 {
		buf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}

	switch q.Sort {
	case SortScannedAtAsc:
		buf.WriteString(" ORDER BY scanned_at ASC, scan_id ASC")
	case SortScanDateDesc:
		buf.WriteString(" ORDER BY scan_date DESC, scanned_at DESC, scan_id DESC")
	case SortScanDateAsc:
		buf.WriteString(" ORDER BY scan_date ASC, scanned_at ASC, scan_id ASC")
	default:
		buf.WriteString(" ORDER BY scanned_at DESC, scan_id DESC")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, q.Offset))

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		var r scanRow
		if err := rows.Scan(
			&r.ScanID, &r.ScanULID, &r.UserID, &r.SubscriptionULID, &r.MealType,
			&r.ScanDate, &r.ScannedAt, &r.Latitude, &r.Longitude, &r.DistanceM,
			&r.QRCode, &r.IsValid, &r.ErrorsJSON,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, r.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// COUNT（ORDER BY より前までを再構築）
	var cntBuf bytes.Buffer
	cntBuf.WriteString("SELECT COUNT(*) FROM meal_scans")
	if len(wheres) > 0 {
		cntBuf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, cntBuf.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Stats: 期間内の有効スキャン数をユーザ別合計（TOP N）
func (s *Store) Stats(ctx context.Context, from, to time.Time, limit int) ([]StatsRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT user_id, COUNT(*) AS cnt
	FROM meal_scans
	WHERE is_valid = 1 AND scan_date BETWEEN ? AND ?
	GROUP BY user_id
	ORDER BY cnt DESC, user_id ASC
	LIMIT ?`, from.Format(DateLayout), to.Format(DateLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var row StatsRow
		if err := rows.Scan(&row.UserID, &row.Count); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanOne(row *sql.Row, r *scanRow) error {
	return row.Scan(
		&r.ScanID, &r.ScanULID, &r.UserID, &r.SubscriptionULID, &r.MealType,
		&r.ScanDate, &r.ScannedAt, &r.Latitude, &r.Longitude, &r.DistanceM,
		&r.QRCode, &r.IsValid, &r.ErrorsJSON,
	)
}
