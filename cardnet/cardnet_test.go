package cardnet

import "testing"

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pan  string
		want Brand
	}{
		{"visa classic", "4111111111111111", BrandVisa},
		{"visa short prefix", "4000056655665556", BrandVisa},
		{"mastercard 51", "5105105105105100", BrandMastercard},
		{"mastercard 55", "5555555555554444", BrandMastercard},
		{"mastercard 2-series low edge", "2221000000000009", BrandMastercard},
		{"mastercard 2-series high edge", "2720990000000007", BrandMastercard},
		{"below 2-series range", "2220990000000000", BrandUnknown},
		{"above 2-series range", "2721000000000000", BrandUnknown},
		{"amex 34", "340000000000009", BrandAmex},
		{"amex 37", "378282246310005", BrandAmex},
		{"discover 6011", "6011111111111117", BrandDiscover},
		{"discover 644", "6445644564456445", BrandDiscover},
		{"discover 649", "6491111111111111", BrandDiscover},
		{"discover 65", "6500000000000002", BrandDiscover},
		{"spaces stripped", "4111 1111 1111 1111", BrandVisa},
		{"hyphens stripped", "5105-1051-0510-5100", BrandMastercard},
		{"unknown prefix", "9999999999999999", BrandUnknown},
		{"jcb not classified", "3530111333300000", BrandUnknown},
		{"empty input", "", BrandUnknown},
		{"whitespace only", "   ", BrandUnknown},
		{"non numeric", "abcd", BrandUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Detect(tc.pan); got != tc.want {
				t.Fatalf("Detect(%q) = %q, want %q", tc.pan, got, tc.want)
			}
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	t.Parallel()

	for range 100 {
		if got := Detect("4111111111111111"); got != BrandVisa {
			t.Fatalf("Detect not stable, got %q", got)
		}
	}
}
