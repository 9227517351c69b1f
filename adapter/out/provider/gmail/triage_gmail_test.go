package gmail

import "testing"

func TestParseSenderAddress(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"bare address", "alice@example.com", "alice@example.com"},
		{"display name", "Alice Smith <alice@example.com>", "alice@example.com"},
		{"quoted display name", `"Smith, Alice" <alice@example.com>`, "alice@example.com"},
		{"surrounding whitespace", "  alice@example.com  ", "alice@example.com"},
		{"unclosed bracket falls back", "Alice <alice@example.com", "Alice <alice@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSenderAddress(tt.value); got != tt.want {
				t.Errorf("parseSenderAddress(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text passes through", "hello world", "hello world"},
		{"tags removed", "<p>hello <b>world</b></p>", "hello world"},
		{"entities decoded", "a &amp; b", "a & b"},
		{"whitespace collapsed", "<div>\n  hello\n\n  world\n</div>", "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripHTML(tt.in); got != tt.want {
				t.Errorf("stripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
