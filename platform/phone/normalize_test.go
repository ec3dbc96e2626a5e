package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{name: "national us number", input: "(201) 555-0123", region: "US", want: "+12015550123"},
		{name: "already international", input: "+31 10 123 4567", region: "US", want: "+31101234567"},
		{name: "dutch national number", input: "010 123 4567", region: "nl", want: "+31101234567"},
		{name: "blank", input: "   ", region: "US", want: ""},
		{name: "garbage is kept", input: " call me ", region: "US", want: "call me"},
		{name: "brazilian mobile", input: "(11) 98765-4321", region: "BR", want: "+5511987654321"},
		{name: "empty region falls back to default", input: "(11) 98765-4321", region: "", want: "+5511987654321"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164In(tc.input, tc.region); got != tc.want {
				t.Fatalf("NormalizeE164In(%q, %q) = %q, want %q", tc.input, tc.region, got, tc.want)
			}
		})
	}
}

func TestIsSupportedRegion(t *testing.T) {
	for _, region := range []string{"BR", "us", "NL"} {
		if !IsSupportedRegion(region) {
			t.Fatalf("IsSupportedRegion(%q) = false, want true", region)
		}
	}
	for _, region := range []string{"", "XX", "Brazil"} {
		if IsSupportedRegion(region) {
			t.Fatalf("IsSupportedRegion(%q) = true, want false", region)
		}
	}
}
