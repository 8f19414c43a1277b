package handlers

import (
	"github.com/gin-gonic/gin"
)

// attachError attaches err to the gin context so the observability middleware
// can include the reason in the request log. c.Error() returns *gin.Error (not
// the error interface), so we suppress errcheck here intentionally.
func attachError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err) //nolint:errcheck
	}
}

// respondSuccess sends the standard success envelope. message may be empty.
func respondSuccess(c *gin.Context, status int, data any, message string) {
	body := gin.H{
		"status": status,
		"data":   data,
	}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

// respondError sends the standard error envelope and attaches the error to
// the gin context so the observability middleware can log the reason.
func respondError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"status": status, "message": message})
}

// respondErrorWithDetails sends an error envelope with a details field
func respondErrorWithDetails(c *gin.Context, status int, message string, details any, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"status": status, "message": message, "details": details})
}
