package binder

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	colorRE = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// colorValidator ensures the value is a CSS hex color like #2B6CB0 or the
// empty string. The empty string is allowed so that a color can be cleared.
func colorValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return colorRE.MatchString(value)
}
