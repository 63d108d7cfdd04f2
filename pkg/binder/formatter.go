package binder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
)

// Validation tags with a human readable message.
const (
	color    = "color"
	mx       = "max"
	mn       = "min"
	oneof    = "oneof"
	required = "required"
)

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	field := strings.Trim(err.Field, ".")
	if field == "" {
		return fmt.Sprintf("payload should be of type %s", err.Type)
	}
	return fmt.Sprintf("%q should be of type %s", field, err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case color:
		return fmt.Sprintf("%q should be a hex color like #2B6CB0", field)
	case mx:
		return formatBound(field, err.Kind(), err.Param(), "less")
	case mn:
		return formatBound(field, err.Kind(), err.Param(), "greater")
	case oneof:
		valids := []string{}
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case required:
		return fmt.Sprintf("%q is required", field)
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}

// formatBound words a min or max failure. Numbers are compared by value,
// while strings and lists are compared by length.
func formatBound(field string, kind reflect.Kind, param, direction string) string {
	var unit string
	//exhaustive:ignore
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%q must be %s than or equal to %s", field, direction, param)
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = "element"
	default:
		unit = "character"
	}
	if param != "1" {
		unit += "s"
	}
	return fmt.Sprintf("%q length must be %s than or equal to %s %s", field, direction, param, unit)
}
