package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	localePattern    = regexp.MustCompile(`^[a-zA-Z]{2,3}([-_][a-zA-Z0-9]{2,8})*$`)
	clientKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)
)

// Validator combines struct tag validation and answer payload parsing
type Validator struct {
	structValidator *validator.Validate
	answerParser    *AnswerParser
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
		answerParser:    NewAnswerParser(),
	}
}

// Validate checks struct tags and reports failures as ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Var validates a single value against a tag
func (v *Validator) Var(field interface{}, tag string) error {
	if err := v.structValidator.Var(field, tag); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func (v *Validator) Answers() *AnswerParser {
	return v.answerParser
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("locale", validateLocale)
	validate.RegisterValidation("client_key", validateClientKey)
	validate.RegisterValidation("test_selector", validateTestSelector)

	// Report json names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).IsValid()
}

func validateLocale(fl validator.FieldLevel) bool {
	return localePattern.MatchString(fl.Field().String())
}

func validateClientKey(fl validator.FieldLevel) bool {
	return clientKeyPattern.MatchString(fl.Field().String())
}

func validateTestSelector(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	return value != "" && len(value) <= 200
}
