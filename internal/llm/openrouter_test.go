package llm

import "testing"

func TestNewOpenRouterProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OpenRouterConfig
		wantErr bool
		wantID  string
	}{
		{
			name:   "default base URL",
			cfg:    OpenRouterConfig{APIKey: "sk-or-test", Model: "google/gemini-2.5-flash"},
			wantID: "google/gemini-2.5-flash",
		},
		{
			name: "custom base URL",
			cfg: OpenRouterConfig{
				APIKey:  "sk-or-test",
				Model:   "google/gemini-2.5-flash",
				BaseURL: "https://proxy.example/v1",
			},
			wantID: "google/gemini-2.5-flash",
		},
		{
			name:   "vendor-prefixed ID passes through",
			cfg:    OpenRouterConfig{APIKey: "sk-or-test", Model: "anthropic/claude-haiku-4.5"},
			wantID: "anthropic/claude-haiku-4.5",
		},
		{
			name:    "missing API key",
			cfg:     OpenRouterConfig{Model: "google/gemini-2.5-flash"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewOpenRouterProvider(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpenRouterProvider: %v", err)
			}
			if p.ModelID() != tt.wantID {
				t.Errorf("ModelID = %q, want %q", p.ModelID(), tt.wantID)
			}
		})
	}
}
