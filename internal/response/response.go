package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/premiumpay/premium-pay-api/internal/apperror"
)

// Error writes err using the error taxonomy and aborts the chain. Internal
// failures are attached to the context for the request logger and the
// client only sees a generic message.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(err)
	}
	if appErr.Kind == apperror.KindInternal {
		_ = c.Error(err)
	}

	status := appErr.Kind.Status()
	if appErr.Kind == apperror.KindValidation {
		c.AbortWithStatusJSON(status, appErr.Fields)
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": appErr.Message})
}
