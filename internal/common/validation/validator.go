// Package validation wraps go-playground/validator with the custom tags used
// by configuration loading and connection request setup.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"urlconn/internal/common/errors"
)

// RequestMethods lists the request methods a connection accepts.
var RequestMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "TRACE"}

// proxySchemes are the URL schemes accepted by the proxy_setting tag.
var proxySchemes = []string{"http", "socks5", "socks4"}

// CentralizedValidator provides unified validation using go-playground/validator
type CentralizedValidator struct {
	validator *validator.Validate
}

// FieldError represents a single validation failure with context
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// NewCentralizedValidator creates a new centralized validator instance
func NewCentralizedValidator() *CentralizedValidator {
	v := validator.New()

	registerConnectionValidators(v)

	// Report the env tag so messages name the variable a user actually sets
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})

	return &CentralizedValidator{validator: v}
}

// ValidateStruct validates a struct using struct tags
func (cv *CentralizedValidator) ValidateStruct(s interface{}) error {
	if err := cv.validator.Struct(s); err != nil {
		return cv.formatValidationErrors(err)
	}
	return nil
}

// ValidateVar validates a single variable with validation rules
func (cv *CentralizedValidator) ValidateVar(field interface{}, tag string) error {
	if err := cv.validator.Var(field, tag); err != nil {
		return cv.formatValidationErrors(err)
	}
	return nil
}

func (cv *CentralizedValidator) formatValidationErrors(err error) error {
	fieldErrors := cv.extractFieldErrors(err)
	if len(fieldErrors) == 1 {
		return errors.ValidationError(fieldErrors[0].Message)
	}

	messages := make([]string, len(fieldErrors))
	for i, e := range fieldErrors {
		messages[i] = e.Message
	}

	return errors.ValidationError(fmt.Sprintf("validation failed: %s", strings.Join(messages, "; ")))
}

func (cv *CentralizedValidator) extractFieldErrors(err error) []FieldError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	fieldErrors := make([]FieldError, 0, len(validationErrs))
	for _, fieldError := range validationErrs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldError.Field(),
			Tag:     fieldError.Tag(),
			Value:   fmt.Sprintf("%v", fieldError.Value()),
			Message: formatFieldError(fieldError),
			Param:   fieldError.Param(),
		})
	}
	return fieldErrors
}

func formatFieldError(err validator.FieldError) string {
	field := err.Field()
	if field == "" {
		field = "value"
	}

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, err.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, err.Param())
	case "http_method":
		return fmt.Sprintf("field '%s' must be one of: %s", field, strings.Join(RequestMethods, ", "))
	case "proxy_setting":
		return fmt.Sprintf("field '%s' must be empty, 'direct', or a %s URL with host and port", field, strings.Join(proxySchemes, "/"))
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", field, err.Tag())
	}
}

func registerConnectionValidators(v *validator.Validate) {
	v.RegisterValidation("http_method", func(fl validator.FieldLevel) bool {
		return isRequestMethod(fl.Field().String())
	})

	v.RegisterValidation("proxy_setting", func(fl validator.FieldLevel) bool {
		return isProxySetting(fl.Field().String())
	})
}

func isRequestMethod(method string) bool {
	for _, valid := range RequestMethods {
		if method == valid {
			return true
		}
	}
	return false
}

func isProxySetting(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "direct") {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	schemeOK := false
	for _, scheme := range proxySchemes {
		if strings.EqualFold(u.Scheme, scheme) {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return false
	}

	host, port, err := net.SplitHostPort(u.Host)
	return err == nil && host != "" && port != ""
}

var globalValidator = NewCentralizedValidator()

// ValidateStruct validates a struct using the global validator instance
func ValidateStruct(s interface{}) error {
	return globalValidator.ValidateStruct(s)
}

// ValidateVar validates a variable using the global validator instance
func ValidateVar(field interface{}, tag string) error {
	return globalValidator.ValidateVar(field, tag)
}
