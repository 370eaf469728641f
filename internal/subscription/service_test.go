package subscription

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateValidation(t *testing.T) {
	svc := &Service{} // 入力検証はストアに触る前に落ちる

	cases := []struct {
		name string
		req  CreateSubscriptionRequest
		msg  string
	}{
		{
			name: "unknown plan",
			req:  CreateSubscriptionRequest{UserID: "U1", Plan: "deluxe", StartsOn: "2025-06-01", EndsOn: "2025-06-30"},
			msg:  "plan",
		},
		{
			name: "bad starts_on",
			req:  CreateSubscriptionRequest{UserID: "U1", Plan: PlanFull, StartsOn: "01-06-2025", EndsOn: "2025-06-30"},
			msg:  "starts_on",
		},
		{
			name: "bad ends_on",
			req:  CreateSubscriptionRequest{UserID: "U1", Plan: PlanFull, StartsOn: "2025-06-01", EndsOn: "June 30"},
			msg:  "ends_on",
		},
		{
			name: "ends before starts",
			req:  CreateSubscriptionRequest{UserID: "U1", Plan: PlanFull, StartsOn: "2025-06-30", EndsOn: "2025-06-01"},
			msg:  "ends_on must be >= starts_on",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestValidPlans(t *testing.T) {
	require.True(t, validPlan(PlanFull))
	require.True(t, validPlan(PlanTwo))
	require.True(t, validPlan(PlanSingle))
	require.False(t, validPlan(""))
	require.False(t, validPlan("deluxe"))
}
