package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"010 123 4567", "+31101234567"},
		{"+31 6 12345678", "+31612345678"},
		{"  ", ""},
		{"not a number", "not a number"},
	}

	for _, tc := range tests {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
