// Package units содержит конвертацию между единицами измерения сырья:
// роками (штучная единица) и килограммами.
package units

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput возвращается при отрицательном количестве или
// неположительном весе роки.
var ErrInvalidInput = errors.New("invalid conversion input")

// SpoolsToKg переводит количество рок в килограммы по весу одной роки.
// Результат округляется до двух знаков после запятой.
func SpoolsToKg(spools, unitWeight float64) (float64, error) {
	if unitWeight <= 0 || spools < 0 {
		return 0, ErrInvalidInput
	}

	kg := decimal.NewFromFloat(spools).
		Mul(decimal.NewFromFloat(unitWeight)).
		Round(2)

	v, _ := kg.Float64()
	return v, nil
}

// KgToSpools переводит килограммы в количество рок по весу одной роки.
// Деление на нулевой вес не определено и считается некорректным входом.
func KgToSpools(kg, unitWeight float64) (float64, error) {
	if unitWeight <= 0 || kg < 0 {
		return 0, ErrInvalidInput
	}

	spools := decimal.NewFromFloat(kg).
		DivRound(decimal.NewFromFloat(unitWeight), 2)

	v, _ := spools.Float64()
	return v, nil
}
