package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGuard struct {
	dup bool
	err error
}

func (f fakeGuard) HasValidScan(ctx context.Context, userID, scanDate, mealType, excludeULID string) (bool, error) {
	return f.dup, f.err
}

func testCandidate(cfg Config, meal string, instant time.Time) Candidate {
	return Candidate{
		UserID:      "U100",
		MealType:    meal,
		ScanInstant: instant,
		ScanDate:    cfg.ScanDateOf(instant),
		PresentedQR: "ABC123",
	}
}

func TestPerformFullValidationAllPass(t *testing.T) {
	cfg := DefaultConfig()
	v := NewValidator(cfg, QRAuthenticator{Expected: "ABC123"}, fakeGuard{})

	cand := testCandidate(cfg, MealBreakfast, time.Date(2025, 6, 2, 8, 0, 0, 0, cfg.Location()))
	cand.PresentedGeo = &Coordinate{Lat: DefaultLat, Lng: DefaultLng} // 0m

	verdict, err := v.PerformFullValidation(context.Background(), cand)
	require.NoError(t, err)
	require.True(t, verdict.IsValid)
	require.Empty(t, verdict.Errors)
	require.NotNil(t, verdict.DistanceMeters)
	require.Zero(t, *verdict.DistanceMeters)
}

func TestPerformFullValidationCollectsAllFailuresInOrder(t *testing.T) {
	cfg := DefaultConfig()
	v := NewValidator(cfg, QRAuthenticator{Expected: "ABC123"}, fakeGuard{})

	// 昼食時間帯外 (08:00) かつジオフェンス外 (~500m)
	cand := testCandidate(cfg, MealLunch, time.Date(2025, 6, 2, 8, 0, 0, 0, cfg.Location()))
	cand.PresentedGeo = &Coordinate{Lat: DefaultLat + 0.0045, Lng: DefaultLng}

	verdict, err := v.PerformFullValidation(context.Background(), cand)
	require.NoError(t, err)
	require.False(t, verdict.IsValid)
	require.Len(t, verdict.Errors, 2)
	require.Contains(t, verdict.Errors[0], "outside lunch window (12:00-15:00)")
	require.Contains(t, verdict.Errors[1], "outside geofence")
	require.Contains(t, verdict.Errors[1], "limit 200m")
	require.NotNil(t, verdict.DistanceMeters)
	require.InDelta(t, 500, *verdict.DistanceMeters, 5)
}

func TestGeolocationAbsentAlwaysPasses(t *testing.T) {
	cfg := Config{MaxRadiusM: 1} // 極端に狭くても未提示なら通る
	require.NoError(t, cfg.Normalize())
	v := NewValidator(cfg, QRAuthenticator{}, fakeGuard{})

	cand := testCandidate(cfg, MealBreakfast, time.Date(2025, 6, 2, 8, 0, 0, 0, cfg.Location()))
	verdict, err := v.PerformFullValidation(context.Background(), cand)
	require.NoError(t, err)
	require.True(t, verdict.IsValid)
	require.Nil(t, verdict.DistanceMeters)
}

func TestQRMismatchReportsGenericReason(t *testing.T) {
	cfg := DefaultConfig()
	v := NewValidator(cfg, QRAuthenticator{Expected: "ABC123"}, fakeGuard{})

	cand := testCandidate(cfg, MealBreakfast, time.Date(2025, 6, 2, 8, 0, 0, 0, cfg.Location()))
	cand.PresentedQR = "abc123"

	verdict, err := v.PerformFullValidation(context.Background(), cand)
	require.NoError(t, err)
	require.False(t, verdict.IsValid)
	require.Equal(t, []string{ReasonInvalidQR}, verdict.Errors)
}

func TestDuplicateScanReported(t *testing.T) {
	cfg := DefaultConfig()
	v := NewValidator(cfg, QRAuthenticator{Expected: "ABC123"}, fakeGuard{dup: true})

	cand := testCandidate(cfg, MealBreakfast, time.Date(2025, 6, 2, 8, 0, 0, 0, cfg.Location()))
	verdict, err := v.PerformFullValidation(context.Background(), cand)
	require.NoError(t, err)
	require.False(t, verdict.IsValid)
	require.Equal(t, []string{ReasonDuplicate}, verdict.Errors)
}

func TestGuardInfrastructureErrorPropagates(t *testing.T) {
	cfg := DefaultConfig()
	boom := errors.New("db down")
	v := NewValidator(cfg, QRAuthenticator{Expected: "ABC123"}, fakeGuard{err: boom})

	cand := testCandidate(cfg, MealBreakfast, time.Date(2025, 6, 2, 8, 0, 0, 0, cfg.Location()))
	_, err := v.PerformFullValidation(context.Background(), cand)
	require.ErrorIs(t, err, boom)
}
