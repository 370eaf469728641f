package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ===== in-memory store（uq_valid_scan 相当の制約を再現） =====

type memStore struct {
	mu   sync.Mutex
	rows []Scan
}

func (m *memStore) InsertScan(ctx context.Context, sc *Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sc.IsValid {
		for _, r := range m.rows {
			if r.IsValid && r.UserID == sc.UserID && r.ScanDate == sc.ScanDate && r.MealType == sc.MealType {
				return ErrDuplicateValidScan
			}
		}
	}
	sc.ScanID = uint64(len(m.rows) + 1)
	m.rows = append(m.rows, *sc)
	return nil
}

func (m *memStore) HasValidScan(ctx context.Context, userID, scanDate, mealType, excludeULID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.IsValid && r.UserID == userID && r.ScanDate == scanDate && r.MealType == mealType && r.ScanULID != excludeULID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) GetByULID(ctx context.Context, scanULID string) (*Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ScanULID == scanULID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) List(ctx context.Context, q ListQuery) ([]Scan, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Scan
	for _, r := range m.rows {
		if q.UserID != nil && *q.UserID != "" && r.UserID != *q.UserID {
			continue
		}
		if q.ValidOnly && !r.IsValid {
			continue
		}
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) Stats(ctx context.Context, from, to time.Time, limit int) ([]StatsRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for _, r := range m.rows {
		if r.IsValid {
			counts[r.UserID]++
		}
	}
	var out []StatsRow
	for u, c := range counts {
		out = append(out, StatsRow{UserID: u, Count: c})
	}
	return out, nil
}

func (m *memStore) validCount(userID, scanDate, mealType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.IsValid && r.UserID == userID && r.ScanDate == scanDate && r.MealType == mealType {
			n++
		}
	}
	return n
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// 2025-06-02 08:00 IST（朝食時間帯内）
var testNow = time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC)

func newTestService(store ScanStore) *Service {
	cfg := DefaultConfig()
	qr := QRAuthenticator{Expected: "ABC123"}
	return &Service{
		store:     store,
		validator: NewValidator(cfg, qr, store),
		cfg:       cfg,
		clock:     fixedClock{t: testNow},
		id:        ulidGen{},
	}
}

func confirmReq(meal string) ConfirmRequest {
	return ConfirmRequest{MealType: meal, QRCode: "ABC123"}
}

// ===== tests =====

func TestConfirmValidScan(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	res, err := svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
	require.NoError(t, err)
	require.True(t, res.IsValid)
	require.Empty(t, res.Errors)
	require.Equal(t, "2025-06-02", res.ScanDate) // IST基準の暦日
	require.NotEmpty(t, res.ScanULID)
	require.Len(t, store.rows, 1)
}

func TestConfirmRecordsRejectedScanForAudit(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	// 昼食を朝食時間帯にスキャン → 無効だが行は残る
	res, err := svc.Confirm(context.Background(), "U100", confirmReq(MealLunch))
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	require.Len(t, store.rows, 1)
	require.False(t, store.rows[0].IsValid)
}

func TestConfirmDuplicateSameMealRejected(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	first, err := svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
	require.NoError(t, err)
	require.True(t, first.IsValid)

	second, err := svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
	require.NoError(t, err)
	require.False(t, second.IsValid)
	require.Contains(t, second.Errors, ReasonDuplicate)

	// 同日の別食事種別は影響を受けない（時間帯は無効になるが重複にはならない）
	lunch, err := svc.Confirm(context.Background(), "U100", confirmReq(MealLunch))
	require.NoError(t, err)
	require.NotContains(t, lunch.Errors, ReasonDuplicate)

	// 別ユーザも影響を受けない
	other, err := svc.Confirm(context.Background(), "U200", confirmReq(MealBreakfast))
	require.NoError(t, err)
	require.True(t, other.IsValid)
}

func TestConcurrentConfirmExactlyOneValid(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*ScanResponse, n)
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
		}(i)
	}
	close(start)
	wg.Wait()

	valid := 0
	for i, res := range results {
		require.NoError(t, errs[i])
		if res.IsValid {
			valid++
		} else {
			require.Contains(t, res.Errors, ReasonDuplicate)
		}
	}
	require.Equal(t, 1, valid)
	require.Equal(t, 1, store.validCount("U100", "2025-06-02", MealBreakfast))
	require.Len(t, store.rows, n) // 敗者も監査行として残る
}

func TestConfirmScanTimeOverride(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	// UTC深夜のスキャンはISTでは翌日の夜 → scan_date がローカル日付になる
	st := "2025-06-01T19:30:00Z" // = 6/2 01:00 IST
	req := confirmReq(MealDinner)
	req.ScanTime = &st

	res, err := svc.Confirm(context.Background(), "U100", req)
	require.NoError(t, err)
	require.Equal(t, "2025-06-02", res.ScanDate)

	bad := "yesterday evening"
	req.ScanTime = &bad
	_, err = svc.Confirm(context.Background(), "U100", req)
	require.Error(t, err)
	require.Contains(t, err.Error(), "RFC3339")
}

func TestConfirmRequiresUserAndMeal(t *testing.T) {
	svc := newTestService(&memStore{})

	_, err := svc.Confirm(context.Background(), "", confirmReq(MealBreakfast))
	require.Error(t, err)

	_, err = svc.Confirm(context.Background(), "U100", ConfirmRequest{})
	require.Error(t, err)
}

func TestConfirmUnrecognizedMealTypeIsVerdictNotFault(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	res, err := svc.Confirm(context.Background(), "U100", confirmReq("brunch"))
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Contains(t, res.Errors, ReasonUnknownMeal)
}

func TestExistsUsesReferenceTimezoneToday(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	_, err := svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
	require.NoError(t, err)

	ok, err := svc.Exists(context.Background(), "U100", "today", MealBreakfast)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.Exists(context.Background(), "U100", "today", MealDinner)
	require.NoError(t, err)
	require.False(t, ok)
}

type finderFunc func(ctx context.Context, userID, onDate string) (*string, error)

func (f finderFunc) ActiveSubscriptionULID(ctx context.Context, userID, onDate string) (*string, error) {
	return f(ctx, userID, onDate)
}

func TestConfirmAttributesActiveSubscription(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	subID := "01J0EXAMPLESUBSCRIPTION000"
	svc.subs = finderFunc(func(ctx context.Context, userID, onDate string) (*string, error) {
		require.Equal(t, "U100", userID)
		require.Equal(t, "2025-06-02", onDate)
		return &subID, nil
	})

	res, err := svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
	require.NoError(t, err)
	require.NotNil(t, res.SubscriptionID)
	require.Equal(t, subID, *res.SubscriptionID)
}

func TestConfirmWithoutSubscriptionStillValid(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	svc.subs = finderFunc(func(ctx context.Context, userID, onDate string) (*string, error) {
		return nil, nil
	})

	res, err := svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
	require.NoError(t, err)
	require.True(t, res.IsValid)
	require.Nil(t, res.SubscriptionID)
}
