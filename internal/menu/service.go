package menu

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string     { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError { return &APIError{Code: CodeInvalidArgument, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) && api.Code == CodeInvalidArgument {
		return 400
	}
	return 500
}

type Service struct {
	store *Store
	loc   *time.Location // 「今日」の判定は食堂のタイムゾーン
}

func NewService(db *sql.DB, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: NewStore(db), loc: loc}
}

func validMeal(m string) bool {
	return m == "breakfast" || m == "lunch" || m == "dinner"
}

// PUT /menus
func (s *Service) Upsert(ctx context.Context, req UpsertMenuRequest) (*MenuEntry, error) {
	if req.DayOfWeek == nil || *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
		return nil, ErrInvalid("day_of_week must be 0..6")
	}
	if !validMeal(req.MealType) {
		return nil, ErrInvalid("meal_type must be one of breakfast/lunch/dinner")
	}
	if req.Items == "" {
		return nil, ErrInvalid("items is required")
	}

	e, err := s.store.Upsert(ctx, *req.DayOfWeek, req.MealType, req.Items)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GET /menus
func (s *Service) Week(ctx context.Context) ([]MenuEntry, error) {
	return s.store.Week(ctx)
}

// GET /menus/today
func (s *Service) Today(ctx context.Context, now time.Time) ([]MenuEntry, error) {
	dow := int(now.In(s.loc).Weekday())
	return s.store.ForDay(ctx, dow)
}
