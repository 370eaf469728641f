package subscription

import "time"

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"

	DateLayout = "2006-01-02"
)

// 契約プラン（食数ベース）
const (
	PlanFull   = "full"   // 3食
	PlanTwo    = "two"    // 2食
	PlanSingle = "single" // 1食
)

// subscriptions テーブルの1行
type Subscription struct {
	SubID     int64
	SubULID   string
	UserID    string
	Plan      string
	StartsOn  string // "YYYY-MM-DD"
	EndsOn    string
	Status    string
	CreatedAt time.Time
}

// 一覧取得用の検索条件
type Filter struct {
	UserID   string
	Status   string
	ActiveOn string // この日付で有効なものに絞る
	Limit    int
	Offset   int
}
