package render

import (
	"strings"
	"testing"
)

func TestMoneyFormatterUsesSymbolAndTwoDecimals(t *testing.T) {
	f := NewMoneyFormatter("en-US")
	out := f.Format(1234, "usd")
	if !strings.Contains(out, "$") || !strings.Contains(out, "12.34") {
		t.Fatalf("unexpected usd output %q", out)
	}
	eur := f.Format(500, "EUR")
	if !strings.Contains(eur, "€") || !strings.Contains(eur, "5.00") {
		t.Fatalf("unexpected eur output %q", eur)
	}
}

func TestMoneyFormatterFallsBackToUSD(t *testing.T) {
	out := NewMoneyFormatter("not a language").Format(99, "???")
	if !strings.Contains(out, "0.99") {
		t.Fatalf("unexpected fallback output %q", out)
	}
}
