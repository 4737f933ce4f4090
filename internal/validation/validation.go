package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"ms-reservation/internal/booking"
	"ms-reservation/internal/models"

	"github.com/go-playground/validator/v10"
)

// Validator checks booking requests against their struct tags and reports
// every failing field by its JSON name.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

var _ booking.Validator = (*Validator)(nil)

func (v *Validator) ValidateBooking(req *models.BookingRequest) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return booking.NewValidationError(booking.FieldError{Field: "body", Message: err.Error()})
	}

	fields := make([]booking.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, booking.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: message(fe),
		})
	}
	return booking.NewValidationError(fields...)
}

// fieldPath drops the root struct name: "BookingRequest.passengers[0].age"
// becomes "passengers[0].age".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be %s %s characters", bound, fe.Param())
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("must contain %s %s items", bound, fe.Param())
		default:
			return fmt.Sprintf("must be %s %s", bound, fe.Param())
		}
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
