package attendance

import "time"

const (
	SortScannedAtDesc = "scanned_at_desc"
	SortScannedAtAsc  = "scanned_at_asc"
	SortScanDateDesc  = "scan_date_desc"
	SortScanDateAsc   = "scan_date_asc"
	DefaultPageLimit  = 50
	MaxPageLimit      = 200
	DefaultSort       = SortScannedAtDesc
)

type GeoLocationDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ConfirmRequest struct {
	MealType string `json:"meal_type" binding:"required"`
	// RFC3339。省略時はサーバ受信時刻
	ScanTime       *string         `json:"scan_time,omitempty"`
	GeoLocation    *GeoLocationDTO `json:"geo_location,omitempty"`
	QRCode         string          `json:"qr_code"`
	SubscriptionID *string         `json:"subscription_id,omitempty"`
}

type ScanResponse struct {
	ScanID         uint64          `json:"scan_id"`
	ScanULID       string          `json:"scan_ulid"`
	UserID         string          `json:"user_id"`
	SubscriptionID *string         `json:"subscription_id,omitempty"`
	MealType       string          `json:"meal_type"`
	ScanDate       string          `json:"scan_date"` // YYYY-MM-DD
	ScannedAt      time.Time       `json:"scanned_at"`
	GeoLocation    *GeoLocationDTO `json:"geo_location,omitempty"`
	DistanceMeters *float64        `json:"distance_meters,omitempty"`
	IsValid        bool            `json:"is_valid"`
	Errors         []string        `json:"errors"`
}

type ListQuery struct {
	UserID    *string
	On        *string
	From      *string
	To        *string
	MealType  *string
	ValidOnly bool
	Limit     int
	Offset    int
	Sort      string
}

type StatsRequest struct {
	From  string // YYYY-MM-DD
	To    string // YYYY-MM-DD
	Limit int
}

type StatsRow struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}
