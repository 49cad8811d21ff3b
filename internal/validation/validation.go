// Package validation configures go-playground/validator for the storefront:
// json field names in errors, Brazilian document, postal code and state tags,
// and human-readable messages.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed field, named after its json tag
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	cepPattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)
	states     = map[string]bool{
		"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true, "DF": true,
		"ES": true, "GO": true, "MA": true, "MT": true, "MS": true, "MG": true, "PA": true,
		"PB": true, "PR": true, "PE": true, "PI": true, "RJ": true, "RN": true, "RS": true,
		"RO": true, "RR": true, "SC": true, "SP": true, "SE": true, "TO": true,
	}
)

// New returns a validator with the storefront tags registered
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	Register(v)
	return v
}

// Register adds json tag naming and the custom tags to v
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	_ = v.RegisterValidation("document", func(fl validator.FieldLevel) bool {
		return ValidDocument(fl.Field().String())
	})
	_ = v.RegisterValidation("cep", func(fl validator.FieldLevel) bool {
		return cepPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("uf", func(fl validator.FieldLevel) bool {
		return states[strings.ToUpper(fl.Field().String())]
	})
}

// Fields flattens validator errors; any other error yields nil
func Fields(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: fieldPath(e), Message: Message(e)})
	}
	return out
}

// fieldPath drops the root struct name from the namespace
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

// Message returns a human-readable message for a failed tag
func Message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must have at least " + e.Param() + " item(s)"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "url":
		return "Invalid URL format"
	case "document":
		return "Invalid CPF or CNPJ"
	case "cep":
		return "Invalid CEP, expected 00000-000"
	case "uf":
		return "Invalid state"
	default:
		return "Invalid value"
	}
}

// Digits strips everything but ASCII digits
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidDocument checks a CPF (11 digits) or CNPJ (14 digits), punctuation allowed
func ValidDocument(s string) bool {
	d := Digits(s)
	switch len(d) {
	case 11:
		return validCPF(d)
	case 14:
		return validCNPJ(d)
	}
	return false
}

func validCPF(d string) bool {
	if strings.Count(d, d[:1]) == len(d) {
		return false
	}
	return checkDigit(d[:9], []int{10, 9, 8, 7, 6, 5, 4, 3, 2}) == d[9] &&
		checkDigit(d[:10], []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}) == d[10]
}

func validCNPJ(d string) bool {
	if strings.Count(d, d[:1]) == len(d) {
		return false
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := append([]int{6}, w1...)
	return checkDigit(d[:12], w1) == d[12] && checkDigit(d[:13], w2) == d[13]
}

// checkDigit is the mod-11 verifier shared by CPF and CNPJ
func checkDigit(d string, weights []int) byte {
	sum := 0
	for i, w := range weights {
		sum += int(d[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}
