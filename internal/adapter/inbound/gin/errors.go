package gin

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stylebot/server/internal/domain/billing"
	"github.com/stylebot/server/internal/module/payment"
	apperrors "github.com/stylebot/server/internal/shared/errors"
)

// toAppError maps domain errors to HTTP errors.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, payment.ErrInvalidWebhookSignature):
		return apperrors.BadRequest("webhook signature verification failed")
	case errors.Is(err, payment.ErrEventInProgress):
		return apperrors.Conflict("payment event is being processed")
	case errors.Is(err, payment.ErrPurchaseNotFound):
		return apperrors.NotFound("purchase")
	case errors.Is(err, billing.ErrStorageUnavailable):
		return apperrors.Unavailable("quota storage unavailable", err)
	default:
		return apperrors.Internal("internal server error", err)
	}
}

func respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}
