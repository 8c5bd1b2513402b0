package handler

import (
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// 決済セッションの作成と概要取得
type CheckoutHandler struct {
	uc *usecase.CheckoutSessionUsecase
}

// DI
func NewCheckoutHandler(uc *usecase.CheckoutSessionUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

// price / stripePriceId, quantity / qty のどちらでも受ける
type CheckoutItemRequest struct {
	Price         string `json:"price"`
	StripePriceID string `json:"stripePriceId"`
	Quantity      *int   `json:"quantity"`
	Qty           *int   `json:"qty"`
}

// itemsがあればカート、無ければ title+price の単品購入
type CreateCheckoutSessionRequest struct {
	Items           []CheckoutItemRequest `json:"items"`
	Email           string                `json:"email"`
	CustomerEmail   string                `json:"customer_email"`
	ShippingCountry string                `json:"shipping_country"`
	SubtotalCents   int64                 `json:"subtotal_cents"`

	Title string           `json:"title"`
	Price *decimal.Decimal `json:"price"`
}

// /create-checkout-session, /checkout-session を登録
func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/create-checkout-session", h.create)
	e.GET("/checkout-session/:id", h.summary)
	e.GET("/checkout-session", h.summary)
}

func (h *CheckoutHandler) create(c echo.Context) error {
	var req CreateCheckoutSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	email := strings.TrimSpace(req.CustomerEmail)
	if email == "" {
		email = strings.TrimSpace(req.Email)
	}

	ctx := c.Request().Context()

	if len(req.Items) == 0 {
		in := usecase.BuyNowInput{Title: req.Title, CustomerEmail: email}
		if req.Price != nil {
			in.Price = *req.Price
		}
		out, err := h.uc.BuyNow(ctx, in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}

	order := model.OrderRequest{
		Items:           make([]model.OrderLine, 0, len(req.Items)),
		CustomerEmail:   email,
		ShippingCountry: req.ShippingCountry,
		SubtotalCents:   req.SubtotalCents,
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, model.OrderLine{
			PurchaseToken: firstNonEmpty(it.Price, it.StripePriceID),
			Quantity:      requestedQuantity(it),
		})
	}

	out, err := h.uc.CreateSession(ctx, order)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) summary(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		id = c.QueryParam("id")
	}

	out, err := h.uc.SessionSummary(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 未指定は1（範囲外は後段で丸める）
func requestedQuantity(it CheckoutItemRequest) int {
	if it.Quantity != nil {
		return *it.Quantity
	}
	if it.Qty != nil {
		return *it.Qty
	}
	return 1
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
