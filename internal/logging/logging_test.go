package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewDevMode(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Debug("test debug")
	logger.Info("test info")

	output := buf.String()
	if !strings.Contains(output, "test debug") {
		t.Error("expected debug message visible in dev mode")
	}
	if !strings.Contains(output, "msg=\"test info\"") {
		t.Errorf("expected text format, got %q", output)
	}
}

func TestNewProdMode(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Debug("hidden")
	logger.Info("shown", "day", 3)

	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug should be suppressed in prod mode")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "shown" || entry["day"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetup(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	Setup(&buf, false)
	if slog.Default() == old {
		t.Error("expected default logger to be replaced")
	}
	slog.Info("ready")
	if !strings.Contains(buf.String(), `"msg":"ready"`) {
		t.Errorf("expected JSON log on the given writer, got %q", buf.String())
	}
}

func TestFor(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	slog.SetDefault(New(&buf, true))

	For("pipeline").Info("hello")
	if !strings.Contains(buf.String(), "component=pipeline") {
		t.Errorf("expected component attribute, got %q", buf.String())
	}
}

func TestRequestLogger(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	var buf bytes.Buffer
	slog.SetDefault(New(&buf, true))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})

	handler := RequestLogger(inner)

	req := httptest.NewRequest("GET", "/properties_within_radius", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	output := buf.String()
	if output == "" {
		t.Fatal("expected log output")
	}
	for _, want := range []string{"GET", "/properties_within_radius", "status=200", "bytes=5"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log, got %q", want, output)
		}
	}
}

func TestRequestLoggerSkipsQuietPaths(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	for _, path := range []string{"/health", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			var buf bytes.Buffer
			slog.SetDefault(New(&buf, true))

			handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))

			if buf.Len() > 0 {
				t.Errorf("expected no log for %s", path)
			}
		})
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	tests := []struct {
		status int
		level  string
	}{
		{http.StatusNotFound, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			slog.SetDefault(New(&buf, true))

			handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))

			if !strings.Contains(buf.String(), tt.level) {
				t.Errorf("expected %s, got %q", tt.level, buf.String())
			}
		})
	}
}
