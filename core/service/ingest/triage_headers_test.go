package ingest

import (
	"reflect"
	"testing"
)

func TestMapHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    map[string]string
	}{
		{
			name:    "exact names",
			headers: []string{"sender", "subject", "body", "date"},
			want:    map[string]string{"sender": "sender", "subject": "subject", "body": "body", "date": "date"},
		},
		{
			name:    "synonyms",
			headers: []string{"from_email", "title", "message", "timestamp"},
			want:    map[string]string{"sender": "from_email", "subject": "title", "body": "message", "date": "timestamp"},
		},
		{
			name:    "case insensitive",
			headers: []string{"From", "Subject", "Content"},
			want:    map[string]string{"sender": "From", "subject": "Subject", "body": "Content"},
		},
		{
			name:    "first synonym wins",
			headers: []string{"email", "from", "subject", "body"},
			want:    map[string]string{"sender": "from", "subject": "subject", "body": "body"},
		},
		{
			name:    "partial mapping",
			headers: []string{"subject", "unrelated"},
			want:    map[string]string{"subject": "subject"},
		},
		{
			name:    "empty",
			headers: nil,
			want:    map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapHeaders(tt.headers)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MapHeaders(%v) = %v, want %v", tt.headers, got, tt.want)
			}
		})
	}
}

func TestMapHeadersIdempotent(t *testing.T) {
	headers := []string{"from", "title", "text", "sent_date"}
	first := MapHeaders(headers)
	second := MapHeaders(headers)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("mapping not idempotent: %v vs %v", first, second)
	}
}

func TestMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		mapping map[string]string
		want    []string
	}{
		{
			name:    "all present",
			mapping: map[string]string{"sender": "from", "subject": "subject", "body": "body"},
			want:    nil,
		},
		{
			name:    "date optional",
			mapping: map[string]string{"sender": "from", "subject": "subject", "body": "body"},
			want:    nil,
		},
		{
			name:    "missing body",
			mapping: map[string]string{"sender": "from", "subject": "subject"},
			want:    []string{"body"},
		},
		{
			name:    "missing all",
			mapping: map[string]string{},
			want:    []string{"sender", "subject", "body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MissingRequired(tt.mapping)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MissingRequired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeBytes(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "utf8", input: []byte("héllo"), want: "héllo"},
		{name: "latin1", input: []byte{0x68, 0xe9, 0x6c, 0x6c, 0x6f}, want: "héllo"},
		{name: "empty", input: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBytes(tt.input)
			if err != nil {
				t.Fatalf("decodeBytes error: %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeBytes = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCSVNoHeader(t *testing.T) {
	if _, err := parseCSV(nil); err == nil {
		t.Error("expected error for empty file")
	}
}
