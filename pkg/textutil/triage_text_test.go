package textutil

import (
	"reflect"
	"testing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "whitespace runs", input: "hello   world\n\tfoo", want: "hello world foo"},
		{name: "markup stripped", input: "<p>hello <b>world</b></p>", want: "hello world"},
		{name: "trimmed", input: "  padded  ", want: "padded"},
		{name: "only markup", input: "<br/><hr>", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.input); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanTextIdempotent(t *testing.T) {
	input := "  <p>some   text</p>  "
	once := CleanText(input)
	twice := CleanText(once)
	if once != twice {
		t.Errorf("CleanText not idempotent: %q vs %q", once, twice)
	}
}

func TestExtractPIIEmails(t *testing.T) {
	pii := ExtractPII("contact me at jane.doe@example.com or admin@test.org")
	want := []string{"jane.doe@example.com", "admin@test.org"}
	if !reflect.DeepEqual(pii.Emails, want) {
		t.Errorf("Emails = %v, want %v", pii.Emails, want)
	}
}

func TestExtractPIIPhones(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "dashed", input: "call 555-123-4567 now", want: []string{"555-123-4567"}},
		{name: "parens", input: "call (555) 123-4567 now", want: []string{"(555) 123-4567"}},
		{name: "spaced", input: "call 555 123 4567 now", want: []string{"555 123 4567"}},
		{name: "bare digits", input: "call 5551234567 now", want: []string{"5551234567"}},
		{name: "none", input: "no numbers here", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pii := ExtractPII(tt.input)
			if !reflect.DeepEqual(pii.Phones, tt.want) {
				t.Errorf("Phones = %v, want %v", pii.Phones, tt.want)
			}
		})
	}
}

func TestExtractPIIAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "street suffix", input: "I live at 123 Main Street in town", want: "123 Main Street"},
		{name: "city state zip", input: "Ship to Springfield, IL 62704 please", want: "Springfield, IL 62704"},
		{name: "multi word city", input: "Offices in New York, NY 10001", want: "New York, NY 10001"},
		{name: "zip plus four", input: "Ship to Springfield, IL 62704-1234 today", want: "Springfield, IL 62704-1234"},
		{
			name:  "street wins over city",
			input: "42 Oak Ave near Springfield, IL 62704",
			want:  "42 Oak Ave",
		},
		{name: "none", input: "no address present", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pii := ExtractPII(tt.input)
			if pii.Address != tt.want {
				t.Errorf("Address = %q, want %q", pii.Address, tt.want)
			}
		})
	}
}

func TestExtractPIIEmpty(t *testing.T) {
	pii := ExtractPII("")
	if len(pii.Emails) != 0 || len(pii.Phones) != 0 || pii.Address != "" {
		t.Errorf("expected empty PII, got %+v", pii)
	}
}
