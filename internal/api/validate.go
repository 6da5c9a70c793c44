package api

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/reliefworks/go-relief-registry/internal/registry"
)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		s := fl.Field().Int()
		return s >= registry.MinSeverity && s <= registry.MaxSeverity
	})
}
