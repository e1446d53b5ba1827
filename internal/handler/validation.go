package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/videorecap/api/internal/pipeline"
)

// NewValidator returns a validator with the custom tags used by request models
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("videoid", func(fl validator.FieldLevel) bool {
		return pipeline.ValidVideoID(fl.Field().String())
	})
	return v
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
