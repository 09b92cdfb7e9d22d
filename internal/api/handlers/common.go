package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/scribe/internal/api/middleware"
	"github.com/yoockh/scribe/internal/utils"
)

type APIError struct {
	Code    utils.Code        `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	msg := utils.SafeMessage(err)
	if msg == "Unknown error" {
		msg = http.StatusText(status)
	}
	_ = c.Error(err)
	c.JSON(status, APIError{
		Code:    utils.CodeOf(err),
		Message: msg,
		Fields:  utils.FieldErrors(err),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
