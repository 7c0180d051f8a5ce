package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator instance
var validate *validator.Validate

// maxDeltaAmount is the largest value of a NUMERIC(20,2) money column.
var maxDeltaAmount = decimal.RequireFromString("999999999999999999.99")

// Allowed enum values for custom tags.
var (
	TransactionTypes = []string{"earn", "spend", "transfer", "refund", "bonus", "admin_add", "admin_deduct", "reversal"}
	ProductTypes     = []string{"feature", "content", "badge", "boost", "cosmetic", "other"}
	QuestionTypes    = []string{"mcq", "spr"}
)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Positive coin amount as a decimal string with at most two fraction digits
	validate.RegisterValidation("delta_amount", func(fl validator.FieldLevel) bool {
		return IsDeltaAmount(fl.Field().String())
	})

	validate.RegisterValidation("tx_type", oneOf(TransactionTypes))
	validate.RegisterValidation("product_type", oneOf(ProductTypes))
	validate.RegisterValidation("question_type", oneOf(QuestionTypes))
}

// oneOf accepts an empty value so optional filters can reuse the tag.
func oneOf(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		if v == "" {
			return true
		}
		for _, allowed := range values {
			if v == allowed {
				return true
			}
		}
		return false
	}
}

// IsDeltaAmount reports whether s parses as a decimal in (0, max] with scale <= 2.
func IsDeltaAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	if !d.IsPositive() || d.GreaterThan(maxDeltaAmount) {
		return false
	}
	return d.Exponent() >= -2 || d.Equal(d.Round(2))
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range verrs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "oneof":
			errors[field] = "Must be one of: " + err.Param()
		case "uuid":
			errors[field] = "Invalid id"
		case "delta_amount":
			errors[field] = "Amount must be a positive number with at most two decimal places and at most 999999999999999999.99"
		case "tx_type":
			errors[field] = "Invalid transaction type. Must be one of: " + strings.Join(TransactionTypes, ", ")
		case "product_type":
			errors[field] = "Invalid product type. Must be one of: " + strings.Join(ProductTypes, ", ")
		case "question_type":
			errors[field] = "Invalid question type. Must be: mcq or spr"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
