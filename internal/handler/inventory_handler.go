package handler

import (
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 売り切れ台帳の公開と、支払い済みセッションの確定
type InventoryHandler struct {
	availability *usecase.AvailabilityUsecase
	confirm      *usecase.ConfirmSessionUsecase
}

// DI
func NewInventoryHandler(availability *usecase.AvailabilityUsecase, confirm *usecase.ConfirmSessionUsecase) *InventoryHandler {
	return &InventoryHandler{availability: availability, confirm: confirm}
}

type InventoryResponse struct {
	Sold model.InventoryLedger `json:"sold"`
}

type confirmRequest struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
}

// /inventory, /confirm-session-inventory を登録
func (h *InventoryHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/inventory", h.inventory)
	e.GET("/confirm-session-inventory", h.confirmSession)
	e.POST("/confirm-session-inventory", h.confirmSession)
}

// 読めなくても空で200
func (h *InventoryHandler) inventory(c echo.Context) error {
	sold := h.availability.Sold(c.Request().Context())

	noStore(c)
	return c.JSON(http.StatusOK, InventoryResponse{Sold: sold})
}

// ?id= と ?session_id= の両方を受ける。結果はok=falseでも200。
func (h *InventoryHandler) confirmSession(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		id = strings.TrimSpace(c.QueryParam("session_id"))
	}
	if id == "" && c.Request().Method == http.MethodPost {
		var req confirmRequest
		if err := c.Bind(&req); err == nil {
			id = strings.TrimSpace(req.ID)
			if id == "" {
				id = strings.TrimSpace(req.SessionID)
			}
		}
	}
	if id == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing session id"})
	}

	res := h.confirm.Confirm(c.Request().Context(), id)

	noStore(c)
	return c.JSON(http.StatusOK, res)
}
