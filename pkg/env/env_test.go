package env

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("EVENT_DEDUP_TTL", "2h")
	t.Setenv("RECOGNITION_RETRY_MAX", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EventDedupTTL != 2*time.Hour {
		t.Errorf("EventDedupTTL = %v, want %v", cfg.EventDedupTTL, 2*time.Hour)
	}
	if cfg.RecognitionRetryMax != 3 {
		t.Errorf("RecognitionRetryMax = %v, want 3", cfg.RecognitionRetryMax)
	}
	if cfg.CallLockTTL != 30*time.Second {
		t.Errorf("CallLockTTL = %v, want %v", cfg.CallLockTTL, 30*time.Second)
	}
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")
	if _, err := Load(""); err == nil {
		t.Error("Load() error = nil, want error")
	}
}

func TestParseConversation(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantLangs int
	}{
		{
			name: "overrides languages",
			raw: `
bot_name: Lea
lang:
  default_short_code: en-US
  availables:
    - short_code: en-US
      display_name: English
      pronunciations: [English]
      voice: en-US-AvaNeural
prompts:
  en-US:
    hello: "Hi, {{.BotName}} here."
`,
			wantLangs: 1,
		},
		{
			name:      "empty file keeps defaults",
			raw:       ``,
			wantLangs: 2,
		},
		{
			name: "default not available",
			raw: `
lang:
  default_short_code: de-DE
`,
			wantErr: true,
		},
		{
			name:    "bad yaml",
			raw:     "lang: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseConversation([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseConversation() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(c.Lang.Availables) != tt.wantLangs {
				t.Errorf("languages = %v, want %v", len(c.Lang.Availables), tt.wantLangs)
			}
		})
	}
}
