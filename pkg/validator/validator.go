package validator

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func ValidateStruct(s interface{}) error {
	return getValidator().Struct(s)
}

// TranslateError flattens validation errors into a field -> message map.
// Errors that are not validation errors are reported under "_".
func TranslateError(err error) map[string]string {
	result := make(map[string]string)
	if err == nil {
		return result
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		result["_"] = err.Error()
		return result
	}
	for _, fe := range verrs {
		result[fe.Namespace()] = fe.Error()
	}
	return result
}
