package utils

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

// ValidationError carries per-field failures for a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, f+" ("+tag+")")
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

// ValidateStruct runs the `validate` tags of v. The returned error is an AppError
// with CodeInvalidArgument wrapping a *ValidationError.
func ValidateStruct(op string, v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return E(CodeInvalidArgument, op, "invalid payload", err)
	}
	ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		ve.Fields[fe.Field()] = fe.Tag()
	}
	return E(CodeInvalidArgument, op, "invalid payload", ve)
}

// FieldErrors extracts the field map from a ValidateStruct error, nil otherwise.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
