package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Currency
		wantErr bool
	}{
		{name: "uppercase", raw: "EUR", want: EUR},
		{name: "lowercase", raw: "eur", want: EUR},
		{name: "mixed case with spaces", raw: " gBp ", want: GBP},
		{name: "unknown code", raw: "XXX", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCurrency(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.raw, got)
				}
				if !errors.Is(err, ErrUnsupportedCurrency) {
					t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
				}
				if KindOf(err) != KindValidation {
					t.Fatalf("expected validation error, got kind %s", KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCurrency(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewMoney_RejectsMoreThanTwoFractionDigits(t *testing.T) {
	_, err := NewMoney(decimal.RequireFromString("10.005"), EUR)
	if !errors.Is(err, ErrTooManyFractionDigits) {
		t.Fatalf("expected ErrTooManyFractionDigits, got %v", err)
	}

	m, err := NewMoney(decimal.RequireFromString("10.50"), EUR)
	if err != nil {
		t.Fatalf("NewMoney returned error: %v", err)
	}
	if m.String() != "10.50 EUR" {
		t.Fatalf("unexpected rendering: %s", m.String())
	}
}

func TestNewMoney_RejectsUnsupportedCurrency(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(1), Currency("XYZ"))
	if !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got kind %s", KindOf(err))
	}
}

func TestMoney_ArithmeticSameCurrency(t *testing.T) {
	a := MustMoney("100.25", EUR)
	b := MustMoney("0.75", EUR)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if !sum.Equal(MustMoney("101.00", EUR)) {
		t.Fatalf("expected 101.00 EUR, got %s", sum)
	}

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub returned error: %v", err)
	}
	if !diff.Equal(MustMoney("99.50", EUR)) {
		t.Fatalf("expected 99.50 EUR, got %s", diff)
	}

	less, err := b.LessThan(a)
	if err != nil || !less {
		t.Fatalf("expected b < a, got less=%t err=%v", less, err)
	}
}

func TestMoney_ArithmeticCurrencyMismatch(t *testing.T) {
	a := MustMoney("1.00", EUR)
	b := MustMoney("1.00", USD)

	if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch on Add, got %v", err)
	}
	if _, err := a.Sub(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch on Sub, got %v", err)
	}
	_, err := a.Cmp(b)
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch on Cmp, got %v", err)
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation kind, got %s", KindOf(err))
	}
}

func TestMoney_MulScalarQuantizesToTwoDigits(t *testing.T) {
	m := MustMoney("10.01", EUR)
	got := m.MulScalar(decimal.RequireFromString("0.333"))
	if !got.Amount().Equal(got.Amount().Round(2)) {
		t.Fatalf("expected quantized result, got %s", got.Amount())
	}
	if !got.Equal(MustMoney("3.33", EUR)) {
		t.Fatalf("expected 3.33 EUR, got %s", got)
	}
}

func TestMoney_EqualIgnoresTrailingZeros(t *testing.T) {
	a := MustMoney("1.5", EUR)
	b := MustMoney("1.50", EUR)
	if !a.Equal(b) {
		t.Fatalf("expected 1.5 EUR == 1.50 EUR")
	}
	if a.Key() != b.Key() {
		t.Fatalf("expected identical keys, got %q vs %q", a.Key(), b.Key())
	}
	if a.Equal(MustMoney("1.50", USD)) {
		t.Fatal("expected currency to participate in equality")
	}
}

func TestMoney_NegAbsZero(t *testing.T) {
	m := MustMoney("-12.34", EUR)
	if !m.IsNegative() {
		t.Fatal("expected negative")
	}
	if !m.Abs().Equal(MustMoney("12.34", EUR)) {
		t.Fatalf("Abs: got %s", m.Abs())
	}
	if !m.Neg().Equal(MustMoney("12.34", EUR)) {
		t.Fatalf("Neg: got %s", m.Neg())
	}
	if !ZeroMoney(EUR).IsZero() {
		t.Fatal("expected zero money to be zero")
	}
}
