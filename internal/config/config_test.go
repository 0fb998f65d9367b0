package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		snap    Snapshot
		wantErr bool
	}{
		{
			name: "valid defaults",
			snap: Snapshot{AIProvider: ProviderOpenAI, ServiceTimeout: 30 * 1e9, TopKCVSS: 10, TopKEPSS: 10},
		},
		{
			name:    "bad provider",
			snap:    Snapshot{AIProvider: "bogus", ServiceTimeout: 30 * 1e9, TopKCVSS: 10, TopKEPSS: 10},
			wantErr: true,
		},
		{
			name:    "openai enabled without key",
			snap:    Snapshot{AIProvider: ProviderOpenAI, AIEnableVulnerabilityAnalysis: true, ServiceTimeout: 30 * 1e9, TopKCVSS: 10, TopKEPSS: 10},
			wantErr: true,
		},
		{
			name:    "non-positive timeout",
			snap:    Snapshot{AIProvider: ProviderLocal, ServiceTimeout: 0, TopKCVSS: 10, TopKEPSS: 10},
			wantErr: true,
		},
		{
			name:    "non-positive top k",
			snap:    Snapshot{AIProvider: ProviderLocal, ServiceTimeout: 30 * 1e9, TopKCVSS: 0, TopKEPSS: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.snap)
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
