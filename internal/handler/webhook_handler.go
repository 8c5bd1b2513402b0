package handler

import (
	"io"
	"log/slog"
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 64 << 10

// 決済サービスからのwebhook
type WebhookHandler struct {
	verifier repository.PaymentEventVerifier
	confirm  *usecase.ConfirmSessionUsecase
	log      *slog.Logger
}

// DI
func NewWebhookHandler(verifier repository.PaymentEventVerifier, confirm *usecase.ConfirmSessionUsecase, log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{verifier: verifier, confirm: confirm, log: log}
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	//署名検証には生のbodyが要る
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	ev, err := h.verifier.VerifyEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.Warn("webhook signature verification failed", "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Webhook Error: " + err.Error()})
	}

	switch ev.Type {
	case model.EventCheckoutSessionCompleted, model.EventCheckoutSessionAsyncPaymentSucceeded:
		res := h.confirm.Confirm(c.Request().Context(), ev.SessionID)
		if !res.OK {
			// 500を返して再送してもらう
			h.log.Error("webhook confirmation failed", "event_id", ev.ID, "session_id", ev.SessionID, "stage", res.Error.Stage)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Webhook handler failed."})
		}
		h.log.Info("webhook confirmed session", "event_id", ev.ID, "session_id", ev.SessionID,
			"marked", len(res.Marked), "skipped", res.Skipped, "replayed", res.Replayed)
	default:
		h.log.Debug("webhook event ignored", "event_id", ev.ID, "type", ev.Type)
	}

	return c.JSON(http.StatusOK, WebhookResponse{Received: true})
}
