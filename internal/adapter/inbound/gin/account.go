package gin

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/stylebot/server/internal/shared/errors"
)

const defaultHistoryLimit = 20

type accountHandler struct {
	status   StatusProvider
	payments PaymentHandler
}

// GetQuota handles GET /v1/users/:id/quota?identity=.
func (h *accountHandler) GetQuota(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.status.Status(c.Request.Context(), userID, c.Query("identity")))
}

// ListPurchases handles GET /v1/users/:id/purchases?limit=.
func (h *accountHandler) ListPurchases(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			respondError(c, apperrors.BadRequest("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	purchases, err := h.payments.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

func userIDParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(c, apperrors.BadRequest("user id must be a positive integer"))
		return 0, false
	}
	return userID, true
}

// adminAuth requires "Authorization: Bearer <token>". An empty token
// disables the routes behind it.
func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			respondError(c, apperrors.NotFound("route"))
			return
		}
		got, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			respondError(c, apperrors.Unauthorized("invalid admin token"))
			return
		}
		c.Next()
	}
}
