package helpers

import "testing"

func TestFormatPriceUS(t *testing.T) {
	cases := []struct {
		price    float64
		expected string
	}{
		{64000.0, "64,000"},
		{2.5, "2.50"},
		{0.5, "0.500000"},
		{0.0000012, "0.00000120"},
	}

	for _, c := range cases {
		if got := FormatPriceUS(c.price, false); got != c.expected {
			t.Errorf("FormatPriceUS(%v) = %q, expected %q", c.price, got, c.expected)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	if got := EscapeMarkdownV2("1.5-2"); got != `1\.5\-2` {
		t.Errorf("unexpected escaping: %q", got)
	}
}
