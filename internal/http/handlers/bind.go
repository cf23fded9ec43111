package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON binds the request body into out. On a failed `required`
// validation it responds with missingMsg (the route-specific "field is
// required" wording); any other bind failure gets a generic message.
// Returns false if the request was rejected.
func BindJSON(ctx *gin.Context, out interface{}, missingMsg string) bool {
	err := ctx.ShouldBindJSON(out)

	if err == nil {
		return true
	}

	var validatorErrs validator.ValidationErrors

	if errors.As(err, &validatorErrs) {
		for _, fieldErr := range validatorErrs {
			if fieldErr.Tag() == "required" {
				RespondBadRequest(ctx, missingMsg)
				return false
			}
		}
	}

	RespondBadRequest(ctx, "Invalid request body")

	return false
}
