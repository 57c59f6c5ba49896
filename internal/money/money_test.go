package money

import "testing"

func TestParseMajor(t *testing.T) {
	if got, err := ParseMajor("1000", "INR"); err != nil || got != 100000 {
		t.Fatalf("expected 100000, got %d (%v)", got, err)
	}
	if got, err := ParseMajor("99.50", "INR"); err != nil || got != 9950 {
		t.Fatalf("expected 9950, got %d (%v)", got, err)
	}
	if got, err := ParseMajor("0.5", "USD"); err != nil || got != 50 {
		t.Fatalf("expected 50, got %d (%v)", got, err)
	}
	if got, err := ParseMajor("500", "JPY"); err != nil || got != 500 {
		t.Fatalf("expected 500, got %d (%v)", got, err)
	}
	if got, err := ParseMajor("1.250", "BHD"); err != nil || got != 1250 {
		t.Fatalf("expected 1250, got %d (%v)", got, err)
	}
	if got, err := ParseMajor("-10.00", "INR"); err != nil || got != -1000 {
		t.Fatalf("expected -1000, got %d (%v)", got, err)
	}
}

func TestParseMajor_RejectsExcessPrecision(t *testing.T) {
	if _, err := ParseMajor("1.005", "INR"); err == nil {
		t.Fatalf("expected precision error")
	}
	if _, err := ParseMajor("1.5", "JPY"); err == nil {
		t.Fatalf("expected precision error for zero-decimal currency")
	}
	if _, err := ParseMajor("", "INR"); err == nil {
		t.Fatalf("expected error for empty amount")
	}
	if _, err := ParseMajor("abc", "INR"); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestFormatMinor(t *testing.T) {
	if got := FormatMinor(100000, "INR"); got != "1000.00" {
		t.Fatalf("expected 1000.00, got %q", got)
	}
	if got := FormatMinor(9950, "INR"); got != "99.50" {
		t.Fatalf("expected 99.50, got %q", got)
	}
	if got := FormatMinor(5, "USD"); got != "0.05" {
		t.Fatalf("expected 0.05, got %q", got)
	}
	if got := FormatMinor(500, "JPY"); got != "500" {
		t.Fatalf("expected 500, got %q", got)
	}
	if got := FormatMinor(-1000, "INR"); got != "-10.00" {
		t.Fatalf("expected -10.00, got %q", got)
	}
}

func TestCommission(t *testing.T) {
	// 10% of 1000.00
	if got := Commission(100000, 1000); got != 10000 {
		t.Fatalf("expected 10000, got %d", got)
	}
	// 2.5% of 99.99 rounds half up: 9999*250/10000 = 249.975 -> 250
	if got := Commission(9999, 250); got != 250 {
		t.Fatalf("expected 250, got %d", got)
	}
	if got := Commission(0, 1000); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
