package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

// RespondError answers with the legacy {"error": "..."} body the dashboards
// already parse.
func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

// RespondInternal logs the real cause and answers 500 with a fixed message.
func RespondInternal(c *gin.Context, tag, message string, err error) {
	ErrorLogger.WithField("path", c.Request.URL.Path).Errorf("[%s] %s: %v", tag, message, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

// RespondResult is the {"result": false, "message": ...} shape used by the
// orders and auth endpoints.
func RespondResult(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"result": false, "message": message})
}
