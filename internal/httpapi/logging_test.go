package httpapi

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	// query param ?log=debug
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	// legacy query param ?log=1
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("legacy query override failed: %v", got)
	}
	// header X-Log-Level
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	// query wins over header
	r = httptest.NewRequest("GET", "/x?log=off", nil)
	r.Header.Set("X-Log-Level", "debug")
	if got := requestLogLevel(r); got != LevelOff {
		t.Fatalf("query precedence failed: %v", got)
	}
}

func TestLogEnd_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()
	r := httptest.NewRequest("GET", "/generate", nil)
	logEnd(r, LevelError, "quiet", 200, time.Now(), nil)
	if buf.Len() != 0 { t.Fatalf("success logged at error level: %q", buf.String()) }
	logEnd(r, LevelError, "loud", 500, time.Now(), errors.New("boom"))
	if !strings.Contains(buf.String(), `"message":"loud"`) || !strings.Contains(buf.String(), `"status":500`) { t.Fatalf("log=%q", buf.String()) }
	buf.Reset()
	logDebug(r, LevelInfo, "hidden", nil)
	logDebug(r, LevelDebug, "shown", map[string]any{"task_id": "t1"})
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"task_id":"t1"`) { t.Fatalf("log=%q", buf.String()) }
}
