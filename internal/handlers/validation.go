package handlers

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/kiddies/pkg/errors"
	"github.com/charlesng35/kiddies/pkg/response"
	appValidator "github.com/charlesng35/kiddies/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and applies its validate tags.
// On failure it writes a 400 envelope and returns false.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(decodeErrorMessage(err)))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		var failures appValidator.ValidationErrors
		if errors.As(err, &failures) && len(failures) > 0 {
			response.Error(c, appErrors.NewBadRequest(failures.Error()))
		} else {
			response.Error(c, appErrors.NewBadRequest("invalid request payload"))
		}
		return false
	}

	return true
}

func decodeErrorMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "request body is required"
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return typeErr.Field + " has the wrong type"
	default:
		return "invalid JSON payload"
	}
}
