package attendance

import (
	"context"
	"fmt"
	"time"
)

// 検証失敗の文言。検証順（食事時間帯→位置→QR→重複）で errors に積まれる
const (
	ReasonUnknownMeal = "unrecognized meal type"
	ReasonInvalidQR   = "invalid or expired QR code"
	ReasonDuplicate   = "attendance already marked for this meal."
)

// Candidate はリクエストから組み立てる検証対象。永続化前の一時データ
type Candidate struct {
	UserID           string
	SubscriptionULID *string
	MealType         string
	ScanInstant      time.Time
	ScanDate         string // 参照タイムゾーンで正規化済み "YYYY-MM-DD"
	PresentedGeo     *Coordinate
	PresentedQR      string
	ExcludeULID      string // 再検証時に重複チェックから除外する自分のID
}

// Verdict は1回のスキャンに対する集約判定
type Verdict struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
	// 位置が提示された場合のみ記録（チェックの成否に関わらず）
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// UniquenessGuard: (user, scan_date, meal_type) につき有効スキャン高々1件の
// 先読みチェック。真の保証はストレージ側のユニーク制約（store.go 参照）
type UniquenessGuard interface {
	HasValidScan(ctx context.Context, userID, scanDate, mealType, excludeULID string) (bool, error)
}

type Validator struct {
	cfg   Config
	qr    QRAuthenticator
	guard UniquenessGuard
}

func NewValidator(cfg Config, qr QRAuthenticator, guard UniquenessGuard) *Validator {
	return &Validator{cfg: cfg, qr: qr, guard: guard}
}

// PerformFullValidation: 4つのチェックを固定順で全て実行し、失敗理由を
// すべて集めて返す（最初の失敗で打ち切らない。利用者に一度で全理由を
// 提示するため）。エラーを返すのは重複チェックのDB読みとQR戦略の
// インフラ障害のみで、その場合 Verdict は採用しないこと
func (v *Validator) PerformFullValidation(ctx context.Context, cand Candidate) (Verdict, error) {
	verdict := Verdict{Errors: []string{}}

	// 1. 食事時間帯
	if ok, reason := v.cfg.IsWithinWindow(cand.MealType, cand.ScanInstant); !ok {
		verdict.Errors = append(verdict.Errors, reason)
	}

	// 2. 位置。未提示なら無条件で通す（任意のベストエフォート管理。
	// 省略でジオフェンスを抜けられるのは元設計どおりの割り切り）
	if cand.PresentedGeo != nil {
		d := Distance(*cand.PresentedGeo, v.cfg.MessLocation)
		verdict.DistanceMeters = &d
		if d > v.cfg.MaxRadiusM {
			verdict.Errors = append(verdict.Errors,
				fmt.Sprintf("outside geofence: %.0fm away (limit %.0fm)", d, v.cfg.MaxRadiusM))
		}
	}

	// 3. QR
	ok, err := v.qr.Authenticate(ctx, cand)
	if err != nil {
		return Verdict{}, fmt.Errorf("qr verification: %w", err)
	}
	if !ok {
		verdict.Errors = append(verdict.Errors, ReasonInvalidQR)
	}

	// 4. 重複（先読み。最終防衛線はINSERT時のユニーク制約）
	dup, err := v.guard.HasValidScan(ctx, cand.UserID, cand.ScanDate, cand.MealType, cand.ExcludeULID)
	if err != nil {
		return Verdict{}, fmt.Errorf("duplicate check: %w", err)
	}
	if dup {
		verdict.Errors = append(verdict.Errors, ReasonDuplicate)
	}

	verdict.IsValid = len(verdict.Errors) == 0
	return verdict, nil
}
