package attendance

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"MESS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	// 食券スキャン確定（利用者はJWTのsub）
	r.POST("/attendances/confirm", h.Confirm)

	r.GET("/attendances", h.List)
	r.HEAD("/attendances", h.Exists)
	// /attendances/:scan_ulid だと stats と経路が衝突するので別リソース名
	r.GET("/scans/:scan_ulid", h.Get)
}

// 集計は admin 側のグループに登録する
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/attendances/stats", h.Stats)
}

// ---------- handlers ----------

func (h *Handler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}

	userID := c.GetString(auth.CtxUserIDKey)
	res, err := h.svc.Confirm(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}

	// 無効判定でも監査行は作られるので 201。可否は is_valid/errors を見る
	c.Header("Location", "/scans/"+res.ScanULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("scan_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Exists(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		userID = c.GetString(auth.CtxUserIDKey)
	}
	ok, err := h.svc.Exists(c.Request.Context(), userID, c.DefaultQuery("on", "today"), c.Query("meal_type"))
	if err != nil {
		c.Status(toHTTPStatus(err))
		return
	}
	if ok {
		c.Status(http.StatusNoContent)
	} else {
		c.Status(http.StatusNotFound)
	}
}

func (h *Handler) List(c *gin.Context) {
	q := ListQuery{
		Limit:  parseIntDefault(c.Query("limit"), DefaultPageLimit),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Sort:   c.DefaultQuery("sort", DefaultSort),
	}
	if v := c.Query("user_id"); v != "" {
		q.UserID = &v
	}
	if v := c.Query("on"); v != "" {
		q.On = &v
	}
	if v := c.Query("from"); v != "" {
		q.From = &v
	}
	if v := c.Query("to"); v != "" {
		q.To = &v
	}
	if v := c.Query("meal_type"); v != "" {
		q.MealType = &v
	}
	if v := c.Query("valid_only"); v == "true" || v == "1" {
		q.ValidOnly = true
	}

	// member は自分の履歴のみ。admin は全件
	if c.GetString(auth.CtxRoleKey) != auth.RoleAdmin {
		self := c.GetString(auth.CtxUserIDKey)
		q.UserID = &self
	}

	items, total, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func (h *Handler) Stats(c *gin.Context) {
	req := StatsRequest{
		From:  c.Query("from"),
		To:    c.Query("to"),
		Limit: parseIntDefault(c.Query("limit"), 10),
	}
	res, err := h.svc.Stats(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var msg string
	var code Code = CodeInternal
	if api, ok := err.(*APIError); ok {
		code, msg = api.Code, api.Message
	} else {
		msg = err.Error()
	}
	return errorBody(code, msg)
}
