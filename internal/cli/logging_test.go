package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/config"
)

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		format   string
		wantJSON bool
	}{
		{config.LogFormatJSON, true},
		{config.LogFormatText, false},
		// a bytes.Buffer is never a terminal
		{config.LogFormatAuto, true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			c := config.Default()
			c.Log.Format = tt.format

			var buf bytes.Buffer
			logger, err := newLogger(c, false, &buf)
			if err != nil {
				t.Fatalf("newLogger: %v", err)
			}
			logger.Info("hello", "k", "v")

			var m map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &m) == nil
			if isJSON != tt.wantJSON {
				t.Errorf("json = %v, want %v: %q", isJSON, tt.wantJSON, buf.String())
			}
		})
	}
}

func TestNewLogger_Levels(t *testing.T) {
	c := config.Default()
	c.Log.Format = config.LogFormatText
	c.Log.Level = "warn"

	var buf bytes.Buffer
	logger, err := newLogger(c, false, &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	buf.Reset()
	logger, err = newLogger(c, true, &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("debug line")
	if !strings.Contains(buf.String(), "debug line") {
		t.Error("verbose should enable debug logs")
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	c := config.Default()
	c.Log.Level = "chatty"
	if _, err := newLogger(c, false, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1024:    "1.0 KiB",
		1536:    "1.5 KiB",
		5 << 20: "5.0 MiB",
		3 << 30: "3.0 GiB",
	}
	for n, want := range tests {
		if got := humanBytes(n); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestRedacted_DoesNotMutate(t *testing.T) {
	c := config.Default()
	c.Database.Postgres.Password = "pw"
	r := redacted(c)
	if r.Database.Postgres.Password == "pw" {
		t.Error("password not redacted")
	}
	if c.Database.Postgres.Password != "pw" {
		t.Error("original config mutated")
	}
}
