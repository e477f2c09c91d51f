package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/meucuidador/care-api/internal/model"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
	Engine() *validator.Validate
}

type structValidator struct {
	v *validator.Validate
}

func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "envconfig"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	Register(v)
	return &structValidator{v: v}
}

// Register installs the custom tags on an existing engine, such as gin's.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("profiletype", func(fl validator.FieldLevel) bool {
		return model.ProfileType(fl.Field().String()).Valid()
	})
}

func (s *structValidator) Engine() *validator.Validate {
	return s.v
}

func (s *structValidator) Validate(obj interface{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldMessage(e))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", e.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", e.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param())
	case "gt", "min":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", e.Field(), e.Param())
	case "profiletype":
		return fmt.Sprintf("%s is not a known profile type", e.Field())
	default:
		return fmt.Sprintf("%s failed %s", e.Field(), e.Tag())
	}
}
