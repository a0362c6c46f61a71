package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamkit/errors"
)

// DataResponse is the success envelope of non-streaming endpoints.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError writes err as a JSON error envelope. An *errors.AppError
// chooses its own status; anything else becomes a 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.Resolve(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondAccepted sends a 202 response wrapping data.
func RespondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, DataResponse{Data: data})
}
