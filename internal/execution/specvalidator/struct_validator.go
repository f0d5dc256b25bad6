package specvalidator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	structValidateOnce sync.Once
	structValidate     *validator.Validate
)

func structValidator() *validator.Validate {
	structValidateOnce.Do(func() {
		structValidate = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidate
}

// ValidateStruct applies `validate` struct tags and reports failures as a
// ValidationError.
func ValidateStruct(subject string, v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %s: %w", subject, err)
	}
	issues := &ValidationError{Subject: subject}
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			issues.Addf("%s failed %s=%s", field, fe.Tag(), fe.Param())
			continue
		}
		issues.Addf("%s failed %s", field, fe.Tag())
	}
	return issues.OrNil()
}
