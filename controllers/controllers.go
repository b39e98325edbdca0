package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/middlewares"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
)

var (
	errInvalidJSON   = errors.New("JSON invalido")
	errInvalidUserID = errors.New("ID de usuario invalido")
)

// queryDate reads ?date=, answering 400 when it is not YYYY-MM-DD.
func queryDate(c *gin.Context) (string, bool) {
	date, err := utils.ResolveDate(strings.TrimSpace(c.Query("date")))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return "", false
	}
	return date, true
}

// bindOptionalJSON decodes the body into dst. An empty body is not an error.
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.Body == nil {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// currentUserID resolves the acting user: the bearer token first, then the
// userId query parameter, then the value sent in the body.
func currentUserID(c *gin.Context, fromBody interface{}) (int64, bool) {
	if v, ok := c.Get(middlewares.ContextUserID); ok {
		if id, ok := v.(int64); ok && id > 0 {
			return id, true
		}
	}
	if id, ok := utils.ParseID(c.Query("userId")); ok {
		return id, true
	}
	if f, ok := utils.ToFloat(fromBody); ok && f > 0 {
		return int64(f), true
	}
	return 0, false
}

func isValidation(err error) (*services.ValidationError, bool) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
