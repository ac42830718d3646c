package util

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	validate.RegisterValidation("latitude", validateLatitude)
	validate.RegisterValidation("longitude", validateLongitude)
	validate.RegisterValidation("latitude_delta", validateLatitudeDelta)
	validate.RegisterValidation("longitude_delta", validateLongitudeDelta)
}

// jsonFieldName reports fields by their wire name so messages match the request body.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lon := fl.Field().Float()
	return lon >= -180 && lon <= 180
}

// A viewport span is strictly positive and no wider than the globe.
func validateLatitudeDelta(fl validator.FieldLevel) bool {
	d := fl.Field().Float()
	return d > 0 && d <= 180
}

func validateLongitudeDelta(fl validator.FieldLevel) bool {
	d := fl.Field().Float()
	return d > 0 && d <= 360
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationMessage turns a ValidateStruct error into a client-facing sentence naming
// the first offending field.
func ValidationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "validation failed"
	}

	fe := errs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "latitude":
		return fmt.Sprintf("%s must be between -90 and 90", field)
	case "longitude":
		return fmt.Sprintf("%s must be between -180 and 180", field)
	case "latitude_delta":
		return fmt.Sprintf("%s must be greater than 0 and at most 180", field)
	case "longitude_delta":
		return fmt.Sprintf("%s must be greater than 0 and at most 360", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
