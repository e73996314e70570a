package validation

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+33612345678", "+33612345678", false},
		{"+1 (425) 555-0100", "+14255550100", false},
		{"0033612345678", "+33612345678", false},
		{"33612345678", "+33612345678", false},
		{"", "", true},
		{"+0123", "", true},
		{"not a number", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeE164(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeE164(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeE164(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
