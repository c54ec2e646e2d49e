package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "isodate", isISODate)
	mustRegister(v, "hhmm", isHHMM)
	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

// FieldError is one failed rule on a field named by its json tag.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string { return e.Field + " " + e.Reason }

// Check validates i and returns the failed fields in declaration order.
// The error is non-nil only when i cannot be validated at all.
func (v *Validator) Check(i interface{}) ([]FieldError, error) {
	err := v.validate.Struct(i)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{Field: fe.Field(), Reason: reason(fe)}
	}
	return out, nil
}

// Validate returns a 400 echo.HTTPError naming every failed field.
func (v *Validator) Validate(i interface{}) error {
	fields, err := v.Check(i)
	if err != nil || len(fields) == 0 {
		return err
	}
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.String()
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; "))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "isodate":
		return "must be a date in YYYY-MM-DD form"
	case "hhmm":
		return "must be a time in HH:MM form"
	case "uuid":
		return "must be a UUID"
	case "email":
		return "must be a plain email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "failed " + fe.Tag()
}

func isISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	_, err := time.Parse("2006-01-02", s)
	return err == nil && len(s) == 10
}

func isHHMM(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	_, err := time.Parse("15:04", s)
	return err == nil && len(s) == 5
}
