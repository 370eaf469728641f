package attendance

import (
	"database/sql"
	"encoding/json"
	"time"
)

// DB行に対応（meal_scans）
type scanRow struct {
	ScanID           uint64
	ScanULID         string
	UserID           string
	SubscriptionULID sql.NullString
	MealType         string
	ScanDate         string // DATE → "YYYY-MM-DD"
	ScannedAt        time.Time
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	DistanceM        sql.NullFloat64
	QRCode           string
	IsValid          bool
	ErrorsJSON       string // 検証失敗理由のJSON配列
}

// Service ↔ Store で使うモデル。監査のため無効スキャンも1行になる
type Scan struct {
	ScanID           uint64
	ScanULID         string
	UserID           string
	SubscriptionULID *string
	MealType         string
	ScanDate         string
	ScannedAt        time.Time
	Geo              *Coordinate
	DistanceM        *float64
	QRCode           string
	IsValid          bool
	Errors           []string
}

func (r scanRow) toModel() Scan {
	s := Scan{
		ScanID:    r.ScanID,
		ScanULID:  r.ScanULID,
		UserID:    r.UserID,
		MealType:  r.MealType,
		ScanDate:  r.ScanDate,
		ScannedAt: r.ScannedAt.UTC(),
		QRCode:    r.QRCode,
		IsValid:   r.IsValid,
		Errors:    []string{},
	}
	if r.SubscriptionULID.Valid {
		v := r.SubscriptionULID.String
		s.SubscriptionULID = &v
	}
	if r.Latitude.Valid && r.Longitude.Valid {
		s.Geo = &Coordinate{Lat: r.Latitude.Float64, Lng: r.Longitude.Float64}
	}
	if r.DistanceM.Valid {
		v := r.DistanceM.Float64
		s.DistanceM = &v
	}
	if r.ErrorsJSON != "" {
		// 壊れた行でも一覧取得は止めない
		_ = json.Unmarshal([]byte(r.ErrorsJSON), &s.Errors)
	}
	return s
}

func (s Scan) toDTO() ScanResponse {
	resp := ScanResponse{
		ScanID:         s.ScanID,
		ScanULID:       s.ScanULID,
		UserID:         s.UserID,
		SubscriptionID: s.SubscriptionULID,
		MealType:       s.MealType,
		ScanDate:       s.ScanDate,
		ScannedAt:      s.ScannedAt,
		DistanceMeters: s.DistanceM,
		IsValid:        s.IsValid,
		Errors:         s.Errors,
	}
	if s.Geo != nil {
		resp.GeoLocation = &GeoLocationDTO{Latitude: s.Geo.Lat, Longitude: s.Geo.Lng}
	}
	return resp
}
