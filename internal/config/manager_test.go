package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestManagerParseJSON(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", `{
		"logging": {"level": "debug", "console": true},
		"storage": {"driver": "sqlite", "path": "./pillbox.db", "busy_timeout": "5s"},
		"trigger": {"enabled": true, "timezone": "Asia/Singapore"},
		"call": {"account_sid": "AC123", "auth_token": "tok", "from": "+100", "to": "+200", "language": "Chinese"},
		"notify": {"enabled": true, "workers": 2, "queue_size": 16, "rate_per_sec": 3, "retry_max": 3, "retry_base": "100ms", "retry_max_delay": "1s", "send_timeout": "5s", "caregiver": {"id": "cg", "number": "+300"}},
		"http": {"addr": ":5000"}
	}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Call.Language != "Chinese" {
		t.Errorf("Call.Language = %q", cfg.Call.Language)
	}
	if cfg.Notify == nil || cfg.Notify.Caregiver.Number != "+300" {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestManagerParseYAML(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.yaml", `
logging:
  level: info
  console: true
trigger:
  enabled: true
call:
  account_sid: AC123
  auth_token: tok
  from: "+100"
  to: "+200"
http:
  addr: ":5000"
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Trigger.Enabled {
		t.Error("Trigger.Enabled = false")
	}
	if cfg.HTTP.Addr != ":5000" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", `{"logging": {"level": "info"}, "bogus": 1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestManagerRejectsTrailingData(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "config.json", `{"logging": {"level": "info"}}{"extra": true}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty ok", cfg: Config{}},
		{name: "bad level", cfg: Config{Logging: LoggingConfig{Level: "loud"}}, wantErr: true},
		{name: "bad driver", cfg: Config{Storage: &StorageConfig{Driver: "redis"}}, wantErr: true},
		{name: "postgres without dsn", cfg: Config{Storage: &StorageConfig{Driver: "postgres"}}, wantErr: true},
		{name: "bad timezone", cfg: Config{Trigger: TriggerConfig{Timezone: "Mars/Olympus"}}, wantErr: true},
		{name: "bad delay", cfg: Config{Call: CallConfig{PostCallDelay: "soon"}}, wantErr: true},
		{name: "negative workers", cfg: Config{Notify: &NotifyConfig{Workers: -1}}, wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(&tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Trigger: TriggerConfig{Enabled: true},
	}
	changed, _ := SummarizeChange(oldCfg, newCfg)

	want := map[string]bool{"logging": true, "trigger": true}
	for _, c := range changed {
		if !want[c] {
			t.Errorf("unexpected changed section %q", c)
		}
		delete(want, c)
	}
	for c := range want {
		t.Errorf("missing changed section %q", c)
	}
}
