package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}

// mapStartError classifies Manager.Start failures: a single-flight
// conflict is 409, anything else on input is 400.
func mapStartError(c *gin.Context, err error) {
	if strings.Contains(err.Error(), "in flight") {
		abortError(c, http.StatusConflict, err.Error())
		return
	}
	abortError(c, http.StatusBadRequest, err.Error())
}
