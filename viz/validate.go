// ABOUTME: Acceptance rules for decoded specs: struct-tag validation plus placeholder heuristics.
// ABOUTME: Series need two or more points, tables need rectangular rows, cards need a real value.

package viz

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate accepts or rejects a decoded spec.
func Validate(s Spec) Result {
	if err := check(s); err != nil {
		return Err(err)
	}
	return Ok(s)
}

func check(s Spec) error {
	if s.Variant == nil {
		return &UnsupportedVariantError{}
	}
	kind := s.Variant.Kind()
	if err := structValidator.Struct(s.Variant); err != nil {
		return translate(kind, err)
	}

	switch v := s.Variant.(type) {
	case InfoCard:
		return checkScalar(kind, string(v.Value))
	case MetricCard:
		return checkScalar(kind, string(v.Value))
	case BarChart, LineChart, PieChart:
		// Count and numeric values are enforced by tags and decoding.
		return nil
	case Table:
		return checkTable(v)
	default:
		return &UnsupportedVariantError{Kind: kind}
	}
}

func translate(kind Kind, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Kind: kind, Reason: err.Error()}
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), string(kind)+".")
	field = strings.TrimPrefix(field, "Series.")
	switch fe.Tag() {
	case "required":
		return &ValidationError{Kind: kind, Field: field, Reason: "is required"}
	case "min":
		return &ValidationError{Kind: kind, Field: field, Reason: fmt.Sprintf("needs at least %s entries", fe.Param())}
	default:
		return &ValidationError{Kind: kind, Field: field, Reason: "failed " + fe.Tag()}
	}
}

// checkScalar rejects placeholder values: the text must contain a digit, a
// currency symbol, or a percent sign.
func checkScalar(kind Kind, value string) error {
	if strings.IndexFunc(value, isFigure) < 0 {
		return &ValidationError{Kind: kind, Field: "value", Reason: fmt.Sprintf("%q has no figure", value)}
	}
	return nil
}

func isFigure(r rune) bool {
	return unicode.IsDigit(r) || strings.ContainsRune("$€£¥₹%", r)
}

func checkTable(t Table) error {
	if len(t.Headers) == 0 {
		return &ValidationError{Kind: KindTable, Field: "Headers", Reason: "is required"}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return &ValidationError{
				Kind:   KindTable,
				Field:  fmt.Sprintf("rows[%d]", i),
				Reason: fmt.Sprintf("has %d cells, want %d", len(row), len(t.Headers)),
			}
		}
	}
	return nil
}
