package menu

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// 閲覧は全ロール
func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/menus", h.Week)
	r.GET("/menus/today", h.Today)
}

// 更新は admin 側のグループに登録する
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.PUT("/menus", h.Upsert)
}

func (h *Handler) Upsert(c *gin.Context) {
	var req UpsertMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrInvalid("invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Upsert(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Week(c *gin.Context) {
	res, err := h.svc.Week(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Today(c *gin.Context) {
	res, err := h.svc.Today(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(toHTTPStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}
