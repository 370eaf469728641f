package attendance

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// ===== Error model (platform共通の型) =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== Clock & ID =====

type Clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ New() (string, error) }

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ===== Service =====

// SubscriptionFinder: スキャンをどのサブスクに帰属させるかの解決。
// 見つからなくてもスキャン自体は無効にしない（帰属のみ）
type SubscriptionFinder interface {
	ActiveSubscriptionULID(ctx context.Context, userID, onDate string) (*string, error)
}

// ScanStore: Service が使う永続化の口（モック可能にinterfaceで持つ）
type ScanStore interface {
	UniquenessGuard
	InsertScan(ctx context.Context, sc *Scan) error
	GetByULID(ctx context.Context, scanULID string) (*Scan, error)
	List(ctx context.Context, q ListQuery) ([]Scan, int64, error)
	Stats(ctx context.Context, from, to time.Time, limit int) ([]StatsRow, error)
}

type Service struct {
	store     ScanStore
	validator *Validator
	cfg       Config
	subs      SubscriptionFinder
	clock     Clock
	id        IDGen
}

// NewService: cfg は Normalize 済みであること。subs は nil 可
func NewService(db *sql.DB, cfg Config, qr QRAuthenticator, subs SubscriptionFinder) *Service {
	store := NewStore(db)
	return &Service{
		store:     store,
		validator: NewValidator(cfg, qr, store),
		cfg:       cfg,
		subs:      subs,
		clock:     realClock{},
		id:        ulidGen{},
	}
}

// POST /attendances/confirm
// 判定の成否に関わらずスキャンは1行記録する（却下の監査証跡）。
// 戻り値のエラーはインフラ障害のみで、検証失敗は IsValid=false の応答になる
func (s *Service) Confirm(ctx context.Context, userID string, req ConfirmRequest) (*ScanResponse, error) {
	if userID == "" {
		return nil, ErrInvalid("user_id is required")
	}
	if req.MealType == "" {
		return nil, ErrInvalid("meal_type is required")
	}

	instant := s.clock.Now()
	if req.ScanTime != nil && *req.ScanTime != "" {
		parsed, err := time.Parse(time.RFC3339, *req.ScanTime)
		if err != nil {
			return nil, ErrInvalid("scan_time must be RFC3339")
		}
		instant = parsed
	}

	cand := Candidate{
		UserID:           userID,
		SubscriptionULID: req.SubscriptionID,
		MealType:         req.MealType,
		ScanInstant:      instant,
		ScanDate:         s.cfg.ScanDateOf(instant),
		PresentedQR:      req.QRCode,
	}
	if req.GeoLocation != nil {
		cand.PresentedGeo = &Coordinate{Lat: req.GeoLocation.Latitude, Lng: req.GeoLocation.Longitude}
	}

	// サブスク帰属の解決（任意）
	if cand.SubscriptionULID == nil && s.subs != nil {
		sid, err := s.subs.ActiveSubscriptionULID(ctx, userID, cand.ScanDate)
		if err != nil {
			return nil, ErrInternal("subscription lookup failed")
		}
		cand.SubscriptionULID = sid
	}

	verdict, err := s.validator.PerformFullValidation(ctx, cand)
	if err != nil {
		// 検証を完了できなかったので記録しない。呼び出し側はリトライ可能
		return nil, ErrInternal(err.Error())
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}

	scan := &Scan{
		ScanULID:         idStr,
		UserID:           cand.UserID,
		SubscriptionULID: cand.SubscriptionULID,
		MealType:         cand.MealType,
		ScanDate:         cand.ScanDate,
		ScannedAt:        instant,
		Geo:              cand.PresentedGeo,
		DistanceM:        verdict.DistanceMeters,
		QRCode:           cand.PresentedQR,
		IsValid:          verdict.IsValid,
		Errors:           verdict.Errors,
	}

	err = s.store.InsertScan(ctx, scan)
	if errors.Is(err, ErrDuplicateValidScan) {
		// check-then-act の競合で先を越された。重複チェック失敗と同じ
		// 扱いにして、無効行として記録し直す（利用者向けの文言も同一）
		scan.IsValid = false
		scan.Errors = append(scan.Errors, ReasonDuplicate)
		err = s.store.InsertScan(ctx, scan)
	}
	if err != nil {
		return nil, err
	}

	resp := scan.toDTO()
	return &resp, nil
}

// GET /attendances/:scan_ulid
func (s *Service) Get(ctx context.Context, scanULID string) (*ScanResponse, error) {
	if scanULID == "" {
		return nil, ErrInvalid("scan_ulid is required")
	}
	scan, err := s.store.GetByULID(ctx, scanULID)
	if err != nil {
		return nil, err
	}
	if scan == nil {
		return nil, ErrNotFound("scan not found")
	}
	resp := scan.toDTO()
	return &resp, nil
}

// HEAD /attendances?user_id=&on=&meal_type=
func (s *Service) Exists(ctx context.Context, userID, onStr, mealType string) (bool, error) {
	if userID == "" {
		return false, ErrInvalid("user_id is required")
	}
	on, err := s.parseOn(onStr)
	if err != nil {
		return false, ErrInvalid("on must be YYYY-MM-DD or 'today'")
	}
	if mealType == "" {
		return false, ErrInvalid("meal_type is required")
	}
	return s.store.HasValidScan(ctx, userID, on, mealType, "")
}

// GET /attendances
func (s *Service) List(ctx context.Context, q ListQuery) ([]ScanResponse, int64, error) {
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}

	rows, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ScanResponse, 0, len(rows))
	for i := 0; i < len(rows); i++ {
		out = append(out, rows[i].toDTO())
	}
	return out, total, nil
}

// GET /attendances/stats
func (s *Service) Stats(ctx context.Context, req StatsRequest) ([]StatsRow, error) {
	from, err := time.ParseInLocation(DateLayout, req.From, time.UTC)
	if err != nil {
		return nil, ErrInvalid("from must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation(DateLayout, req.To, time.UTC)
	if err != nil {
		return nil, ErrInvalid("to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, ErrInvalid("to must be >= from")
	}
	return s.store.Stats(ctx, from, to, req.Limit)
}

// "today" は参照タイムゾーンの今日
func (s *Service) parseOn(v string) (string, error) {
	if v == "today" || v == "" {
		return s.cfg.ScanDateOf(s.clock.Now()), nil
	}
	if _, err := time.ParseInLocation(DateLayout, v, time.UTC); err != nil {
		return "", err
	}
	return v, nil
}
