package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"only whitespace", "   \t\n  ", ""},
		{"surrounding whitespace", "  Alice Cohen  ", "Alice Cohen"},
		{"internal runs collapsed", "Alice \t\t Cohen", "Alice Cohen"},
		{"already clean", "Alice", "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.expected {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizePatientName_PreservesCase(t *testing.T) {
	if got := NormalizePatientName("  Alice   McKay "); got != "Alice McKay" {
		t.Errorf("expected 'Alice McKay', got %q", got)
	}
}

func TestNormalizeServiceLabel_Lowercases(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Teeth Cleaning ", "teeth cleaning"},
		{"FILLING", "filling"},
		{"Root   Canal", "root canal"},
	}

	for _, tt := range tests {
		if got := NormalizeServiceLabel(tt.input); got != tt.expected {
			t.Errorf("NormalizeServiceLabel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
