package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"MESS-backend/internal/platform/auth"
)

func setupRouter(t *testing.T, svc *Service, userID, role string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// 認証ミドルウェアの代わりに固定の本人情報を詰める
	r.Use(func(c *gin.Context) {
		c.Set(auth.CtxUserIDKey, userID)
		c.Set(auth.CtxRoleKey, role)
		c.Next()
	})
	api := r.Group("/api/v1")
	RegisterRoutes(api, svc)
	RegisterAdminRoutes(api, svc)
	return r
}

func httpDo(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConfirmEndpoint(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	r := setupRouter(t, svc, "U100", auth.RoleMember)

	w := httpDo(r, "POST", "/api/v1/attendances/confirm", confirmReq(MealBreakfast))
	require.Equal(t, http.StatusCreated, w.Code)

	var res ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.True(t, res.IsValid)
	require.Equal(t, "U100", res.UserID)
	require.Equal(t, "/scans/"+res.ScanULID, w.Header().Get("Location"))

	// 同じ食事をもう一度 → 記録はされるが無効判定
	w = httpDo(r, "POST", "/api/v1/attendances/confirm", confirmReq(MealBreakfast))
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.False(t, res.IsValid)
	require.Contains(t, res.Errors, ReasonDuplicate)
}

func TestConfirmEndpointBadJSON(t *testing.T) {
	svc := newTestService(&memStore{})
	r := setupRouter(t, svc, "U100", auth.RoleMember)

	w := httpDo(r, "POST", "/api/v1/attendances/confirm", map[string]any{"scan_time": "x"}) // meal_type欠落
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListScopesMemberToSelf(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)

	// U100 と U200 のスキャンを作っておく
	_, err := svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
	require.NoError(t, err)
	_, err = svc.Confirm(context.Background(), "U200", confirmReq(MealBreakfast))
	require.NoError(t, err)

	r := setupRouter(t, svc, "U100", auth.RoleMember)
	w := httpDo(r, "GET", "/api/v1/attendances?user_id=U200", nil) // 他人指定は無視される
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []ScanResponse `json:"items"`
		Total int64          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "U100", body.Items[0].UserID)

	// admin は任意ユーザを見られる
	ra := setupRouter(t, svc, "A1", auth.RoleAdmin)
	w = httpDo(ra, "GET", "/api/v1/attendances?user_id=U200", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "U200", body.Items[0].UserID)
}

func TestExistsEndpoint(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	r := setupRouter(t, svc, "U100", auth.RoleMember)

	w := httpDo(r, "HEAD", "/api/v1/attendances?meal_type=breakfast", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	_, err := svc.Confirm(context.Background(), "U100", confirmReq(MealBreakfast))
	require.NoError(t, err)

	w = httpDo(r, "HEAD", "/api/v1/attendances?meal_type=breakfast", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}
