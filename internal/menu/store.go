package menu

import (
	"context"
	"database/sql"
)

// weekly_menus スキーマ（参考）:
//
//	CREATE TABLE weekly_menus (
//	  menu_id     BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	  day_of_week TINYINT     NOT NULL,
//	  meal_type   VARCHAR(16) NOT NULL,
//	  items       TEXT        NOT NULL,
//	  updated_at  DATETIME(6) NOT NULL,
//	  UNIQUE KEY uq_day_meal (day_of_week, meal_type)
//	);

type DBTX interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

type Store struct{ db DBTX }

func NewStore(db DBTX) *Store { return &Store{db: db} }

// Upsert: (day_of_week, meal_type) のUNIQUEキーでINSERTまたはUPDATE
func (s *Store) Upsert(ctx context.Context, dayOfWeek int, mealType, items string) (MenuEntry, error) {
	const q = `
	INSERT INTO weekly_menus (day_of_week, meal_type, items, updated_at)
	VALUES (?, ?, ?, NOW(6))
	ON DUPLICATE KEY UPDATE
	items      = VALUES(items),
	updated_at = VALUES(updated_at)`

	if _, err := s.db.ExecContext(ctx, q, dayOfWeek, mealType, items); err != nil {
		return MenuEntry{}, err
	}

	row := s.db.QueryRowContext(ctx, `
	SELECT menu_id, day_of_week, meal_type, items, updated_at
	FROM weekly_menus
	WHERE day_of_week = ? AND meal_type = ?`, dayOfWeek, mealType)
	var e MenuEntry
	if err := row.Scan(&e.MenuID, &e.DayOfWeek, &e.MealType, &e.Items, &e.UpdatedAt); err != nil {
		return MenuEntry{}, err
	}
	return e, nil
}

// Week: 全枠を曜日→食事種別順で
func (s *Store) Week(ctx context.Context) ([]MenuEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT menu_id, day_of_week, meal_type, items, updated_at
	FROM weekly_menus
	ORDER BY day_of_week ASC, FIELD(meal_type, 'breakfast', 'lunch', 'dinner')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MenuEntry
	for rows.Next() {
		var e MenuEntry
		if err := rows.Scan(&e.MenuID, &e.DayOfWeek, &e.MealType, &e.Items, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ForDay: 指定曜日の3枠
func (s *Store) ForDay(ctx context.Context, dayOfWeek int) ([]MenuEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT menu_id, day_of_week, meal_type, items, updated_at
	FROM weekly_menus
	WHERE day_of_week = ?
	ORDER BY FIELD(meal_type, 'breakfast', 'lunch', 'dinner')`, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MenuEntry
	for rows.Next() {
		var e MenuEntry
		if err := rows.Scan(&e.MenuID, &e.DayOfWeek, &e.MealType, &e.Items, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
