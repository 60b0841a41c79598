package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/yourusername/race-predictor/internal/models"
)

var (
	requestValidator     *validator.Validate
	requestValidatorOnce sync.Once
)

func getRequestValidator() *validator.Validate {
	requestValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		requestValidator = v
	})
	return requestValidator
}

// decimalValue lets numeric tags like gte=0 compare decimal fields
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// ValidateRequest checks a prediction request before any work is done
func ValidateRequest(req models.PredictionRequest) error {
	err := getRequestValidator().Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return models.NewInvalidRequestError(err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		switch fieldError.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fieldError.Field()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fieldError.Field(), fieldError.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fieldError.Field(), fieldError.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fieldError.Field(), fieldError.Tag()))
		}
	}
	return models.NewInvalidRequestError(errors.New(strings.Join(msgs, "; ")))
}
