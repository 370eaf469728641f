package subscription

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	pdb "MESS-backend/internal/platform/db"
)

// ===== Error model (attendance と同型) =====
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

// ===== Service =====

type Service struct {
	db    *sql.DB
	store *Store
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, store: NewStore(db)}
}

func validPlan(p string) bool {
	return p == PlanFull || p == PlanTwo || p == PlanSingle
}

// POST /subscriptions
func (s *Service) Create(ctx context.Context, req CreateSubscriptionRequest) (*SubscriptionResponse, error) {
	if !validPlan(req.Plan) {
		return nil, ErrInvalid("plan must be one of full/two/single")
	}
	starts, err := time.ParseInLocation(DateLayout, req.StartsOn, time.UTC)
	if err != nil {
		return nil, ErrInvalid("starts_on must be YYYY-MM-DD")
	}
	ends, err := time.ParseInLocation(DateLayout, req.EndsOn, time.UTC)
	if err != nil {
		return nil, ErrInvalid("ends_on must be YYYY-MM-DD")
	}
	if ends.Before(starts) {
		return nil, ErrInvalid("ends_on must be >= starts_on")
	}

	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		SubULID:  id.String(),
		UserID:   req.UserID,
		Plan:     req.Plan,
		StartsOn: req.StartsOn,
		EndsOn:   req.EndsOn,
		Status:   StatusActive,
	}

	// 重複チェックと登録は同一Tx（請求期間の二重化防止）
	err = pdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx pdb.DBTX) error {
		existing, err := getActiveTx(ctx, tx, req.UserID, req.StartsOn)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrConflict("user already has an active subscription in this period")
		}
		return insertTx(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	resp := sub.toDTO()
	return &resp, nil
}

// GET /subscriptions/:sub_ulid
func (s *Service) Get(ctx context.Context, subULID string) (*SubscriptionResponse, error) {
	if subULID == "" {
		return nil, ErrInvalid("sub_ulid is required")
	}
	sub, err := s.store.GetByULID(ctx, subULID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNotFound("subscription not found")
	}
	resp := sub.toDTO()
	return &resp, nil
}

// GET /subscriptions
func (s *Service) List(ctx context.Context, f Filter) ([]SubscriptionResponse, error) {
	subs, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.toDTO())
	}
	return out, nil
}

// POST /subscriptions/:sub_ulid/cancel
func (s *Service) Cancel(ctx context.Context, subULID string) error {
	n, err := s.store.UpdateStatus(ctx, subULID, StatusCancelled)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound("subscription not found")
	}
	return nil
}

// ActiveSubscriptionULID: attendance.SubscriptionFinder 実装。
// 契約が無くても nil, nil（スキャンの帰属が付かないだけ）
func (s *Service) ActiveSubscriptionULID(ctx context.Context, userID, onDate string) (*string, error) {
	sub, err := s.store.GetActive(ctx, userID, onDate)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}
	v := sub.SubULID
	return &v, nil
}
