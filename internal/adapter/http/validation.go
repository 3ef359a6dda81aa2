package http

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"chama-backend/internal/domain/mpesa"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// money fields are validated by value so gte/lte/gt work on them
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// whole shillings
	_ = v.RegisterValidation("intlike", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return math.Abs(f-math.Round(f)) < 1e-9
	})
	// max 2 decimal places
	_ = v.RegisterValidation("dec2", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return math.Abs(f-(math.Round(f*100)/100)) < 1e-9
	})
	_ = v.RegisterValidation("kephone", func(fl validator.FieldLevel) bool {
		_, err := mpesa.NormalizePhone(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("purpose", func(fl validator.FieldLevel) bool {
		return mpesa.Purpose(fl.Field().String()).Valid()
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

var tagMessages = map[string]func(param string) string{
	"required": func(string) string { return "is required" },
	"intlike":  func(string) string { return "must be a whole number" },
	"dec2":     func(string) string { return "must have at most 2 decimal places" },
	"kephone":  func(string) string { return "must be a Kenyan mobile number" },
	"purpose": func(string) string {
		return "must be " + string(mpesa.PurposeContribution) + " or " + string(mpesa.PurposeLoanPayment)
	},
	"gt":  func(p string) string { return "must be greater than " + p },
	"gte": func(p string) string { return "must be greater than or equal to " + p },
	"lte": func(p string) string { return "must be less than or equal to " + p },
	"max": func(p string) string { return "must be at most " + p + " characters" },
}

// ToFieldErrors turns validator errors into one readable entry per field.
// Anything else becomes a single entry under "_".
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		msg := e.Tag() + " validation failed"
		if f, ok := tagMessages[e.Tag()]; ok {
			msg = f(e.Param())
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}
