package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Roof needs repair", "Roof needs repair"},
		{"tags", "<b>Urgent</b> <script>alert(1)</script>call first", "Urgent alert(1)call first"},
		{"encoded tags", "&lt;img src=x onerror=alert(1)&gt;kitchen", "kitchen"},
		{"entities kept as text", "price &amp; terms", "price & terms"},
		{"crlf and blank lines", "line one\r\n\r\n\r\n\r\nline two  \r\n", "line one\n\nline two"},
		{"only markup", "<p></p>", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.in); got != tc.want {
				t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTextPtr(t *testing.T) {
	if TextPtr(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
	in := " <i>note</i> "
	if got := TextPtr(&in); got == nil || *got != "note" {
		t.Fatalf("unexpected result %v", got)
	}
}
