package validator

import (
	"context"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation on v.
func Validate(ctx context.Context, v interface{}) error {
	return validate.StructCtx(ctx, v)
}
