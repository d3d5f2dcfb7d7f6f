package validation

import "testing"

func TestIsValidEAN13(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{
			name:  "valid retail code",
			code:  "4006381333931",
			valid: true,
		},
		{
			name:  "generated code",
			code:  GenerateEAN13("789", "123456789"),
			valid: true,
		},
		{
			name:  "wrong check digit",
			code:  "4006381333930",
			valid: false,
		},
		{
			name:  "too short",
			code:  "400638133393",
			valid: false,
		},
		{
			name:  "contains letter",
			code:  "40063813339a1",
			valid: false,
		},
		{
			name:  "empty",
			code:  "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidEAN13(tt.code); got != tt.valid {
				t.Fatalf("IsValidEAN13(%q) = %v, want %v", tt.code, got, tt.valid)
			}
		})
	}
}

func TestEAN13_SingleDigitMutation(t *testing.T) {
	code := GenerateEAN13("789", "123456789")

	// Замена любой одной цифры должна делать код невалидным ровно тогда,
	// когда пересчитанная контрольная цифра меняется.
	for pos := 0; pos < 12; pos++ {
		for d := byte('0'); d <= '9'; d++ {
			if code[pos] == d {
				continue
			}
			mutated := code[:pos] + string(d) + code[pos+1:]

			wantValid := checkDigit(mutated[:12]) == int(mutated[12]-'0')
			if got := IsValidEAN13(mutated); got != wantValid {
				t.Fatalf("IsValidEAN13(%q) = %v, want %v", mutated, got, wantValid)
			}
		}
	}
}

func TestGenerateEAN13_Padding(t *testing.T) {
	code := GenerateEAN13("7", "42")

	if len(code) != 13 {
		t.Fatalf("len = %d, want 13", len(code))
	}
	if code[:12] != "007000000042" {
		t.Fatalf("body = %q, want 007000000042", code[:12])
	}
	if !IsValidEAN13(code) {
		t.Fatalf("generated code %q is not valid", code)
	}
}

func TestOrderNumber(t *testing.T) {
	if got := OrderNumber(1); got != "OP00001" {
		t.Fatalf("OrderNumber(1) = %q, want OP00001", got)
	}
	if got := OrderNumber(12345); got != "OP12345" {
		t.Fatalf("OrderNumber(12345) = %q, want OP12345", got)
	}

	if !IsValidOrderNumber("OP00042") {
		t.Fatalf("OP00042 must be valid")
	}
	for _, bad := range []string{"", "OP123", "XX00042", "OP0004a"} {
		if IsValidOrderNumber(bad) {
			t.Fatalf("%q must be invalid", bad)
		}
	}
}

func TestIsValidSKU(t *testing.T) {
	for _, ok := range []string{"FO273", "LH048", " fo273 ", "A1B2C3"} {
		if !IsValidSKU(ok) {
			t.Fatalf("%q must be a valid SKU", ok)
		}
	}
	for _, bad := range []string{"", "AB", "FO-273", "способ"} {
		if IsValidSKU(bad) {
			t.Fatalf("%q must be an invalid SKU", bad)
		}
	}
}
