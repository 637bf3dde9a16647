package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"libreria/internal/core"
)

// Margin bounds accepted from the operator. Derive itself does not clamp.
const (
	MinMarginPct = 10
	MaxMarginPct = 90
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RecordInput is a daily form submission before it becomes a core.RawInput.
type RecordInput struct {
	Date          string  `validate:"required,datetime=2006-01-02"`
	CashSales     float64 `validate:"gte=0"`
	CardSales     float64 `validate:"gte=0"`
	MarginPct     int     `validate:"gte=10,lte=90"`
	FixedExpenses float64 `validate:"gte=0"`
	HoursWorked   float64 `validate:"gte=0,lte=24"`
	HourlyRate    float64 `validate:"gte=0"`
	CopyCount     int64   `validate:"gte=0"`
	CopyUnitCost  float64 `validate:"gte=0"`
	Notes         string  `validate:"max=500"`
}

// InputError lists every invalid field of a submission, in Spanish, ready
// to show to the operator.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return "datos inválidos: " + strings.Join(e.Problems, "; ")
}

var fieldLabels = map[string]string{
	"Date":          "Fecha",
	"CashSales":     "Venta en efectivo",
	"CardSales":     "Venta MP",
	"MarginPct":     "Margen",
	"FixedExpenses": "Gastos fijos",
	"HoursWorked":   "Horas trabajadas",
	"HourlyRate":    "Valor hora",
	"CopyCount":     "Cantidad de copias",
	"CopyUnitCost":  "Costo por copia",
	"Notes":         "Notas",
}

// Validate checks the submission and converts it.
func (in RecordInput) Validate() (core.RawInput, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return core.RawInput{}, fmt.Errorf("validate record input: %w", err)
		}
		ie := &InputError{}
		for _, fe := range verrs {
			ie.Problems = append(ie.Problems, describe(fe))
		}
		return core.RawInput{}, ie
	}

	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.RawInput{}, &InputError{Problems: []string{"Fecha inválida"}}
	}
	return core.RawInput{
		Date:          date,
		CashSales:     in.CashSales,
		CardSales:     in.CardSales,
		MarginPct:     in.MarginPct,
		FixedExpenses: in.FixedExpenses,
		HoursWorked:   in.HoursWorked,
		HourlyRate:    in.HourlyRate,
		CopyCount:     in.CopyCount,
		CopyUnitCost:  in.CopyUnitCost,
		Notes:         strings.TrimSpace(in.Notes),
	}, nil
}

func describe(fe validator.FieldError) string {
	label := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " es obligatoria"
	case "datetime":
		return label + " debe tener el formato AAAA-MM-DD"
	case "gte":
		if fe.Field() == "MarginPct" {
			return fmt.Sprintf("%s debe estar entre %d y %d", label, MinMarginPct, MaxMarginPct)
		}
		return label + " no puede ser negativo"
	case "lte":
		if fe.Field() == "MarginPct" {
			return fmt.Sprintf("%s debe estar entre %d y %d", label, MinMarginPct, MaxMarginPct)
		}
		return label + " supera el máximo (" + fe.Param() + ")"
	case "max":
		return label + " es demasiado largo"
	default:
		return label + " es inválido"
	}
}

// amountJunk matches what the store normalizer strips: currency symbol,
// thousands comma and spaces. "1,234" is 1234 at entry and on reload.
var amountJunk = strings.NewReplacer("$", "", ",", "", " ", "")

// ParseAmount reads a numeric form field. Empty means zero; unlike stored
// values, garbage is an error here so typos are caught at entry. Only finite
// decimals parse: "inf" and "NaN" are rejected.
func ParseAmount(field, s string) (float64, error) {
	d, ok, err := parseDecimalField(field, s)
	if err != nil || !ok {
		return 0, err
	}
	v, _ := d.Float64()
	return v, nil
}

// ParseCount reads a whole-number form field such as the margin or the copy
// count. Fractions are rejected instead of truncated.
func ParseCount(field, s string) (int64, error) {
	d, ok, err := parseDecimalField(field, s)
	if err != nil || !ok {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, &InputError{Problems: []string{fieldLabel(field) + " debe ser un número entero"}}
	}
	return d.IntPart(), nil
}

func parseDecimalField(field, s string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(amountJunk.Replace(s))
	if s == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, &InputError{Problems: []string{fieldLabel(field) + " no es un número"}}
	}
	return d, true, nil
}

func fieldLabel(field string) string {
	if l := fieldLabels[field]; l != "" {
		return l
	}
	return field
}
