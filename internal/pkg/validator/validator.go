package validator

import (
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"worksphere/internal/pkg/errors"
)

var eventTypePattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)+$`)

// Validator wraps a configured go-playground validator. It is safe for
// concurrent use once constructed.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return IsEventType(fl.Field().String())
	})
	v.RegisterValidation("webhook_url", func(fl validator.FieldLevel) bool {
		return IsWebhookURL(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Struct validates s by its `validate` tags and converts failures into a
// *errors.ValidationError keyed by JSON field name.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewValidationError(err.Error())
	}

	verr := &errors.ValidationError{
		Message: "validation failed",
		Fields:  make(map[string]string, len(fieldErrs)),
	}
	for _, fe := range fieldErrs {
		verr.Fields[fieldPath(fe)] = describe(fe)
	}
	return verr
}

func fieldPath(fe validator.FieldError) string {
	// Namespace is "Struct.field[0]"; drop the struct name.
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "event_type":
		return "must be a dot-namespaced event type such as task.completed"
	case "webhook_url":
		return "must be an absolute http or https URL"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func IsEventType(s string) bool {
	return eventTypePattern.MatchString(s)
}

func IsWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
