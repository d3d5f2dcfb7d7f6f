// Package validation содержит функции валидации и генерации идентификаторов.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var skuPattern = regexp.MustCompile(`(?i)^[A-Z0-9]{3,20}$`)

// IsValidEAN13 проверяет 13-значный штрихкод EAN-13 по взвешенной
// контрольной сумме по модулю 10.
func IsValidEAN13(code string) bool {
	if len(code) != 13 {
		return false
	}

	for _, ch := range code {
		if !unicode.IsDigit(ch) {
			return false
		}
	}

	return checkDigit(code[:12]) == int(code[12]-'0')
}

// GenerateEAN13 собирает валидный EAN-13 из трёхзначного префикса и
// девятизначного кода продукта, дополняя их нулями слева.
func GenerateEAN13(prefix, product string) string {
	p := leftPad(prefix, 3)
	pr := leftPad(product, 9)

	body := p + pr
	return body + fmt.Sprintf("%d", checkDigit(body))
}

// checkDigit вычисляет контрольную цифру для первых 12 цифр кода:
// цифры на нечётных позициях берутся с весом 1, на чётных — с весом 3.
func checkDigit(digits string) int {
	sum := 0
	for i, ch := range digits {
		d := int(ch - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return (10 - sum%10) % 10
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return strings.Repeat("0", width-len(s)) + s
}

// OrderNumber форматирует порядковый номер ОП: OP + пять цифр с ведущими нулями.
func OrderNumber(seq int) string {
	return fmt.Sprintf("OP%05d", seq)
}

// IsValidOrderNumber проверяет формат номера ОП.
func IsValidOrderNumber(number string) bool {
	if len(number) != 7 || !strings.HasPrefix(number, "OP") {
		return false
	}
	for _, ch := range number[2:] {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidSKU проверяет формат SKU: от 3 до 20 букв и цифр.
func IsValidSKU(sku string) bool {
	return skuPattern.MatchString(strings.TrimSpace(sku))
}
