package menu

import "time"

// 週次メニュー。曜日×食事種別で1枠（上書き更新、履歴は持たない）
type MenuEntry struct {
	MenuID    uint64    `json:"menu_id"`
	DayOfWeek int       `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	MealType  string    `json:"meal_type"`
	Items     string    `json:"items"` // "dal, rice, roti" のような自由記述
	UpdatedAt time.Time `json:"updated_at"`
}

type UpsertMenuRequest struct {
	DayOfWeek *int   `json:"day_of_week" binding:"required"`
	MealType  string `json:"meal_type" binding:"required"`
	Items     string `json:"items" binding:"required"`
}
