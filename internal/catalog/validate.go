package catalog

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"swapiapi/internal/apperr"
)

var validate = validator.New()

// checkVar validates a single named value and converts failures into
// field errors.
func checkVar(field string, value any, tag string) []apperr.FieldError {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []apperr.FieldError{{Field: field, Message: fmt.Sprintf("%s is invalid", field)}}
	}

	out := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperr.FieldError{Field: field, Message: message(field, fe.Tag(), fe.Param())})
	}
	return out
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	}
	return fmt.Sprintf("%s is invalid", field)
}
