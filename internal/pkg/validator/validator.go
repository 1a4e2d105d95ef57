package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

var redeemCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Redeem codes are case-insensitive tokens of letters, digits, '-' and '_'
	validate.RegisterValidation("redeem_code", func(fl validator.FieldLevel) bool {
		return redeemCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	validate.RegisterValidation("admin_level", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "admin", "moderator", "":
			return true
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range verrs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too small (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too large (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "ne":
			errors[field] = "Value must not be " + err.Param()
		case "redeem_code":
			errors[field] = "Invalid code. Use 3-64 letters, digits, '-' or '_'"
		case "admin_level":
			errors[field] = "Invalid level. Must be: admin or moderator"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}
