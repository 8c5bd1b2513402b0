package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	noticeExternalOnly = "This item is only sold externally."
	ssePingInterval    = 25 * time.Second
)

// /bag のHTTP（リクエストごとにStoreを組み立てる）
type BagHandler struct {
	kv           repository.KVStore
	availability *usecase.AvailabilityUsecase
	initiator    *checkout.Initiator
	issuer       *middleware.BagTokenIssuer
	log          *slog.Logger
	now          func() time.Time
}

// DI
func NewBagHandler(
	kv repository.KVStore,
	availability *usecase.AvailabilityUsecase,
	initiator *checkout.Initiator,
	issuer *middleware.BagTokenIssuer,
	log *slog.Logger,
) *BagHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BagHandler{
		kv:           kv,
		availability: availability,
		initiator:    initiator,
		issuer:       issuer,
		log:          log,
		now:          time.Now,
	}
}

type NewBagResponse struct {
	BagID     string    `json:"bag_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type BagResponse struct {
	Lines    []model.CartLine `json:"lines"`
	Count    int              `json:"count"`
	Subtotal decimal.Decimal  `json:"subtotal"`
	Notices  []string         `json:"notices"`
	Open     bool             `json:"open"`
	Error    string           `json:"error,omitempty"`
}

type AddBagItemRequest struct {
	ItemID   string `json:"item_id"`
	Variant  string `json:"variant"`
	Quantity int    `json:"quantity"`
}

type UpdateBagItemRequest struct {
	Quantity int `json:"quantity"`
}

type BagCheckoutRequest struct {
	Email           string `json:"email"`
	ShippingCountry string `json:"shipping_country"`
}

type BagCheckoutResponse struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Notices []string `json:"notices"`
	Error   string   `json:"error,omitempty"`
}

// /bag, /bag/items, /bag/checkout, /bag/events を登録
func (h *BagHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.POST("/bag", h.create)

	g := e.Group("/bag")
	g.Use(middleware.BagToken(cfg.BagTokenSecret))

	g.GET("", h.get)
	g.POST("/items", h.addItem)
	g.PATCH("/items/:key", h.patchItem)
	g.DELETE("/items/:key", h.deleteItem)
	g.POST("/checkout", h.checkout)
	g.GET("/events", h.events)
}

// 1リクエスト分のバッグ
type bagSession struct {
	store   *cart.Store
	view    *cart.RecordingView
	notices *cart.NoticeList
}

func (b *bagSession) response() BagResponse {
	lines := b.store.Read()
	return BagResponse{
		Lines:    lines,
		Count:    b.store.Count(),
		Subtotal: cart.Subtotal(lines),
		Notices:  notices(b.notices),
		Open:     b.view.Revealed,
	}
}

func (h *BagHandler) openBag(c echo.Context) (*bagSession, error) {
	bagID, ok := getBagIDFromContext(c)
	if !ok {
		return nil, usecase.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	b := &bagSession{view: &cart.RecordingView{}, notices: &cart.NoticeList{}}
	st, err := cart.NewStore(c.Request().Context(), h.kv, cart.StorageKey(bagID), b.view, b.notices, h.log.With("bag_id", bagID))
	if err != nil {
		h.log.Error("bag load failed", "bag_id", bagID, "error", err)
		return nil, usecase.NewHTTPError(http.StatusServiceUnavailable, "bag unavailable")
	}
	b.store = st
	return b, nil
}

func (h *BagHandler) create(c echo.Context) error {
	bagID := uuid.NewString()
	token, exp, err := h.issuer.Issue(bagID, h.now())
	if err != nil {
		h.log.Error("bag token issue failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	return c.JSON(http.StatusCreated, NewBagResponse{BagID: bagID, Token: token, ExpiresAt: exp})
}

func (h *BagHandler) get(c echo.Context) error {
	b, err := h.openBag(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b.response())
}

func (h *BagHandler) addItem(c echo.Context) error {
	var req AddBagItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if strings.TrimSpace(req.ItemID) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "item_id is required"})
	}
	if err := validator.ValidateQuantity(req.Quantity); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid quantity"})
	}

	b, err := h.openBag(c)
	if err != nil {
		return writeError(c, err)
	}

	ctx := c.Request().Context()

	//在庫は台帳を反映したもの
	item, err := h.availability.FindProduct(ctx, strings.TrimSpace(req.ItemID))
	if err != nil {
		return writeError(c, err)
	}
	if item.SellOnVintedOnly {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: noticeExternalOnly})
	}

	// サイズは商品ごとに1つだけ（指定があればそれと一致すること）
	variant := item.Variant()
	if v := strings.TrimSpace(req.Variant); v != "" && !strings.EqualFold(v, variant) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown variant"})
	}

	err = b.store.Add(ctx, item, variant, req.Quantity)
	return h.writeBag(c, b, err)
}

func (h *BagHandler) patchItem(c echo.Context) error {
	var req UpdateBagItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := validator.ValidateQuantity(req.Quantity); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid quantity"})
	}

	b, err := h.openBag(c)
	if err != nil {
		return writeError(c, err)
	}

	err = b.store.UpdateQty(c.Request().Context(), lineKeyParam(c), req.Quantity)
	return h.writeBag(c, b, err)
}

func (h *BagHandler) deleteItem(c echo.Context) error {
	b, err := h.openBag(c)
	if err != nil {
		return writeError(c, err)
	}

	err = b.store.RemoveAt(c.Request().Context(), lineKeyParam(c))
	return h.writeBag(c, b, err)
}

func (h *BagHandler) checkout(c echo.Context) error {
	var req BagCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := validator.ValidateCheckout(req.Email, req.ShippingCountry); err != nil {
		if errors.Is(err, validator.ErrUnsupportedCountry) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unsupported shipping country: " + strings.ToUpper(strings.TrimSpace(req.ShippingCountry))})
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid email"})
	}

	b, err := h.openBag(c)
	if err != nil {
		return writeError(c, err)
	}

	res, err := h.initiator.Checkout(c.Request().Context(), b.store.Read(), checkout.Input{
		ContactEmail:    req.Email,
		ShippingCountry: req.ShippingCountry,
	}, b.notices)

	out := BagCheckoutResponse{ID: res.SessionID, URL: res.SessionURL, Notices: notices(b.notices)}
	if err != nil {
		out.Error = firstNotice(out.Notices, err)
		return c.JSON(checkoutStatus(err), out)
	}
	return c.JSON(http.StatusOK, out)
}

// 外部での変更（別タブ・別端末）をSSEで流す
func (h *BagHandler) events(c echo.Context) error {
	bagID, ok := getBagIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	view := newStreamView()
	st, err := cart.NewStore(ctx, h.kv, cart.StorageKey(bagID), view, nil, h.log.With("bag_id", bagID))
	if err != nil {
		h.log.Error("bag load failed", "bag_id", bagID, "error", err)
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "bag unavailable"})
	}
	if err := st.Watch(ctx); err != nil {
		h.log.Error("bag watch failed", "bag_id", bagID, "error", err)
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "bag unavailable"})
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return nil
	}
	w.Flush()

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case lines := <-view.ch:
			payload, err := encodeBagEvent(lines)
			if err != nil {
				h.log.Warn("bag event encode failed", "bag_id", bagID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: bag\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func (h *BagHandler) writeBag(c echo.Context, b *bagSession, err error) error {
	out := b.response()
	if err == nil {
		return c.JSON(http.StatusOK, out)
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cart.ErrOutOfStock):
		status = http.StatusConflict
	case errors.Is(err, cart.ErrInvalidItem):
		status = http.StatusBadRequest
	case errors.Is(err, cart.ErrPersist):
		status = http.StatusServiceUnavailable
	default:
		h.log.Error("bag update failed", "error", err)
	}
	out.Error = firstNotice(out.Notices, err)
	return c.JSON(status, out)
}

func checkoutStatus(err error) int {
	var insufficient *checkout.InsufficientStockError
	var transport *checkout.TransportError
	switch {
	case errors.As(err, &insufficient):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrNotPurchasable), errors.Is(err, checkout.ErrEmptyOrder):
		return http.StatusBadRequest
	case errors.As(err, &transport):
		if he, ok := usecase.AsHTTPError(err); ok {
			return he.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// 通知があればそれを、無ければエラー文言
func firstNotice(list []string, err error) string {
	if len(list) > 0 {
		return list[0]
	}
	return err.Error()
}

func notices(n *cart.NoticeList) []string {
	if len(n.Messages) == 0 {
		return []string{}
	}
	return n.Messages
}

func lineKeyParam(c echo.Context) model.LineKey {
	raw := c.Param("key")
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return model.LineKey(raw)
}

func getBagIDFromContext(c echo.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxBagIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
