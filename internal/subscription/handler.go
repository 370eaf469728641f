package subscription

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// 契約の発行・取消は admin 専用（グループ側で RequireRole を掛ける）
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/subscriptions", h.Create)
	r.GET("/subscriptions", h.List)
	r.GET("/subscriptions/:sub_ulid", h.Get)
	r.POST("/subscriptions/:sub_ulid/cancel", h.Cancel)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrInvalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.Header("Location", "/subscriptions/"+res.SubULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("sub_ulid"))
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{
		UserID:   c.Query("user_id"),
		Status:   c.Query("status"),
		ActiveOn: c.Query("active_on"),
		Offset:   parseIntDefault(c.Query("offset"), 0),
		Limit:    parseIntDefault(c.Query("limit"), 50),
	}
	res, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("sub_ulid")); err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancelled"})
}

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
