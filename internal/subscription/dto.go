package subscription

import "time"

type CreateSubscriptionRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Plan     string `json:"plan" binding:"required"`
	StartsOn string `json:"starts_on" binding:"required"` // "YYYY-MM-DD"
	EndsOn   string `json:"ends_on" binding:"required"`
}

type SubscriptionResponse struct {
	SubID     int64     `json:"sub_id"`
	SubULID   string    `json:"sub_ulid"`
	UserID    string    `json:"user_id"`
	Plan      string    `json:"plan"`
	StartsOn  string    `json:"starts_on"`
	EndsOn    string    `json:"ends_on"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (s Subscription) toDTO() SubscriptionResponse {
	return SubscriptionResponse{
		SubID:     s.SubID,
		SubULID:   s.SubULID,
		UserID:    s.UserID,
		Plan:      s.Plan,
		StartsOn:  s.StartsOn,
		EndsOn:    s.EndsOn,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
	}
}
