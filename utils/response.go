package utils

import (
	"github.com/gin-gonic/gin"
)

const (
	ResultSuccess = "SUCCESS"
	ResultError   = "ERROR"
)

// Envelope is the body of every API response.
type Envelope struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func RespondSuccess(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Result: ResultSuccess, Message: message, Data: data})
}

// RespondError writes an error envelope and aborts the handler chain.
func RespondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Result: ResultError, Message: message})
}
