package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // printed half away from zero
		{" 2.50 ", "2.50", true},
		{"-1", "-1.00", true},
		{"-25,5", "-25.50", true},
		{"0", "0.00", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseAmountRejectsNonPositive(t *testing.T) {
	for _, in := range []string{"0", "-1", "0.00"} {
		if _, err := ParseAmount(in); err != ErrInvalidAmount {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", in, err)
		}
	}
	m, err := ParseAmount("12,34")
	if err != nil || m.Cents() != 1234 {
		t.Fatalf("expected 1234 cents, got %d (err=%v)", m.Cents(), err)
	}
}

func TestParseMoneyKeepsPrecision(t *testing.T) {
	m := MustParseMoney("0.333")
	if got := m.Decimal().String(); got != "0.333" {
		t.Fatalf("expected 0.333, got %s", got)
	}
	if m.Equal(MustParseMoney("0.33")) {
		t.Fatal("0.333 must not collapse to 0.33")
	}
	if !m.RoundCents().Equal(MustParseMoney("0.33")) {
		t.Fatalf("RoundCents: got %s", m.RoundCents().Decimal())
	}

	var fromText Money
	if err := fromText.UnmarshalText([]byte("1.005")); err != nil || fromText.Decimal().String() != "1.005" {
		t.Fatalf("UnmarshalText: got %s (err=%v)", fromText.Decimal(), err)
	}
	var fromJSON Money
	if err := json.Unmarshal([]byte("2.125"), &fromJSON); err != nil || fromJSON.Decimal().String() != "2.125" {
		t.Fatalf("UnmarshalJSON: got %s (err=%v)", fromJSON.Decimal(), err)
	}

	if a, err := ParseAmount("12.345"); err != nil || a.Decimal().String() != "12.35" {
		t.Fatalf("ParseAmount rounds to cents: got %s (err=%v)", a.Decimal(), err)
	}
	if _, err := ParseAmount("0.004"); err != ErrInvalidAmount {
		t.Fatalf("0.004 rounds to zero, expected ErrInvalidAmount, got %v", err)
	}
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	// 0.1 + 0.2 is the classic float trap.
	sum := MustParseMoney("0.1").Add(MustParseMoney("0.2"))
	if !sum.Equal(MustParseMoney("0.3")) {
		t.Fatalf("expected 0.30, got %s", sum)
	}
	if !sum.Sub(MustParseMoney("0.3")).IsZero() {
		t.Fatalf("expected exact zero")
	}
	if got := MoneyFromCents(-1234).Abs().String(); got != "12.34" {
		t.Fatalf("abs: got %s", got)
	}
	if got := Sum(MoneyFromCents(100), MoneyFromCents(-40), MoneyFromCents(5)).String(); got != "0.65" {
		t.Fatalf("sum: got %s", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(MoneyFromCents(5000))
	if err != nil || string(b) != `"50.00"` {
		t.Fatalf("marshal: %s (err=%v)", b, err)
	}

	var fromString, fromNumber Money
	if err := json.Unmarshal([]byte(`"12,50"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if err := json.Unmarshal([]byte(`12.5`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if !fromString.Equal(fromNumber) || fromNumber.String() != "12.50" {
		t.Fatalf("expected 12.50, got %s and %s", fromString, fromNumber)
	}

	var bad Money
	if err := json.Unmarshal([]byte(`"twelve"`), &bad); err == nil {
		t.Fatalf("expected error for invalid amount")
	}
}
