package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("no_sql_phrases", containsNoRestrictedSQL)
}

// containsNoRestrictedSQL rejects input carrying SQL statements.
func containsNoRestrictedSQL(fl validator.FieldLevel) bool {
	restrictedPhrases := []string{"DROP DATABASE", "DROP TABLE", "DELETE FROM", "INSERT INTO", "UPDATE ", "ALTER TABLE"}
	value := strings.ToUpper(fl.Field().String())
	for _, phrase := range restrictedPhrases {
		if strings.Contains(value, phrase) {
			return false
		}
	}
	return true
}

// Form is the sign-in/sign-up form. Username carries the account email.
type Form struct {
	Username string `validate:"required,min=2,max=50,no_sql_phrases"`
	Password string `validate:"required,min=8,no_sql_phrases"`
}

// Validate returns the first field error as a user-facing message.
func (f Form) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "min":
		return fmt.Errorf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}
