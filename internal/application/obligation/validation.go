package obligation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erp/obligations/internal/domain/shared"
)

// requestValidator reports field errors under their json names
var requestValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks the struct tags of req and converts failures into
// an INVALID_INPUT domain error carrying one context entry per field
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, err.Error())
	}

	domainErr := shared.NewDomainError(shared.ErrInvalidInput.Code, "Request validation failed")
	for _, e := range validationErrors {
		domainErr = domainErr.With(fieldPath(e), validationMessage(e))
	}
	return domainErr
}

// fieldPath drops the top-level struct name from the namespace, so
// "ReconcileRequest.decision.due_date" becomes "decision.due_date"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, found := strings.Cut(ns, "."); found {
		return rest
	}
	return e.Field()
}

func invalidField(field, message string) *shared.DomainError {
	return shared.NewDomainError(shared.ErrInvalidInput.Code, "Request validation failed").With(field, message)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "numeric":
		return "Must be a decimal amount"
	case "datetime":
		return "Must be a date formatted as " + e.Param()
	default:
		return "Invalid value"
	}
}
