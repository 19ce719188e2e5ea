package gin

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stylebot/server/internal/module/payment"
	apperrors "github.com/stylebot/server/internal/shared/errors"
	"go.uber.org/zap"
)

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 64 << 10

type webhookHandler struct {
	payments PaymentHandler
	stripe   StripeParser
	logger   *zap.Logger
}

// HandleStripe handles POST /webhooks/stripe.
//
// Stripe retries anything that is not 2xx, so events we will never act on
// are acknowledged, and only transient failures return an error status.
func (h *webhookHandler) HandleStripe(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, apperrors.BadRequest("failed to read request body"))
		return
	}

	event, err := h.stripe.Parse(body, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrUnsupportedEvent):
		c.JSON(http.StatusOK, gin.H{"received": true, "status": "ignored"})
		return
	case errors.Is(err, payment.ErrMissingPayload):
		h.logger.Warn("stripe payment without purchase payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": true, "status": "ignored"})
		return
	case err != nil:
		h.logger.Warn("stripe webhook rejected", zap.Error(err))
		respondError(c, err)
		return
	}

	purchase, err := h.payments.HandleSucceeded(c.Request.Context(), event.PaymentID, payment.ProviderStripe, event.Payload)
	if errors.Is(err, payment.ErrPurchaseRejected) {
		c.JSON(http.StatusOK, gin.H{"received": true, "status": string(payment.PurchaseStatusRejected)})
		return
	}
	if err != nil {
		h.logger.Error("stripe payment not applied",
			zap.String("event_id", event.EventID),
			zap.String("payment_id", event.PaymentID),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "status": string(purchase.Status)})
}
