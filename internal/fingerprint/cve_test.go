package fingerprint

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "canonical", raw: "CVE-2021-44228"},
		{name: "long sequence", raw: "CVE-2024-123456"},
		{name: "missing prefix", raw: "2021-44228", wantErr: true},
		{name: "lowercase", raw: "cve-2021-44228", wantErr: true},
		{name: "short sequence", raw: "CVE-2021-1", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "trailing garbage", raw: "CVE-2021-44228-extra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.raw, err)
			}
			if got.String() != tt.raw {
				t.Errorf("Parse(%q) = %q, want %q", tt.raw, got, tt.raw)
			}
			if !Valid(tt.raw) {
				t.Errorf("Valid(%q) = false, want true", tt.raw)
			}
		})
	}
}
