package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/banklabs/banklink/internal/banklink/domain"
)

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// AbortWithError maps domain sentinel errors onto HTTP statuses; anything
// unmapped is an internal error and the message is not leaked.
func AbortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrUnknownBank),
		errors.Is(err, domain.ErrPaymentNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrPaymentFinalized):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrUnknownDecision),
		errors.Is(err, domain.ErrSampleUnsupported):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrMerchantGone):
		status = http.StatusGone
		message = err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": message}})
}

func invalidRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": message}})
}
