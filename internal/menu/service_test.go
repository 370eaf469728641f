package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestUpsertValidation(t *testing.T) {
	svc := &Service{} // 入力検証はストアに触る前に落ちる

	cases := []struct {
		name string
		req  UpsertMenuRequest
	}{
		{"missing day", UpsertMenuRequest{MealType: "lunch", Items: "dal"}},
		{"day out of range", UpsertMenuRequest{DayOfWeek: intp(7), MealType: "lunch", Items: "dal"}},
		{"negative day", UpsertMenuRequest{DayOfWeek: intp(-1), MealType: "lunch", Items: "dal"}},
		{"unknown meal", UpsertMenuRequest{DayOfWeek: intp(1), MealType: "brunch", Items: "dal"}},
		{"empty items", UpsertMenuRequest{DayOfWeek: intp(1), MealType: "lunch"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), tc.req)
			require.Error(t, err)
		})
	}
}
