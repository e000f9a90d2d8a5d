package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, extra ...string) *slog.Logger {
	return slog.New(NewRedactHandler(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}), extra...))
}

func TestRedactHandlerKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "cookie", key: "cookie", value: "session=abc123", wantMask: true},
		{name: "uppercase cookie", key: "Cookie", value: "session=abc123", wantMask: true},
		{name: "authorization", key: "authorization", value: "xyz", wantMask: true},
		{name: "keyword in key", key: "upstream_auth_header", value: "xyz", wantMask: true},
		{name: "url is kept", key: "url", value: "https://www.vut.cz/studenti/programy", wantMask: false},
		{name: "node is kept", key: "node", value: "MITAI/NMAL/SUI", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			newTestLogger(&buf).Info("msg", tt.key, tt.value)

			out := buf.String()
			masked := strings.Contains(out, MaskValue)
			if masked != tt.wantMask {
				t.Errorf("masked=%v, want %v: %s", masked, tt.wantMask, out)
			}
			if tt.wantMask && strings.Contains(out, tt.value) {
				t.Errorf("value leaked: %s", out)
			}
		})
	}
}

func TestRedactHandlerValues(t *testing.T) {
	t.Parallel()

	for _, value := range []string{
		"Bearer abc.def",
		"Basic dXNlcjpwYXNz",
		"eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig",
	} {
		var buf bytes.Buffer
		newTestLogger(&buf).Info("msg", "header", value)
		if !strings.Contains(buf.String(), MaskValue) {
			t.Errorf("expected %q to be masked: %s", value, buf.String())
		}
	}
}

func TestRedactHandlerExtraKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newTestLogger(&buf, " X-Contact ").Info("msg", "x-contact", "ops@example.com", "locale", "cs")

	out := buf.String()
	if strings.Contains(out, "ops@example.com") {
		t.Errorf("configured header leaked: %s", out)
	}
	if !strings.Contains(out, "locale=cs") {
		t.Errorf("unrelated attribute lost: %s", out)
	}
}

func TestRedactHandlerGroupsAndWith(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf).With("cookie", "a=b").WithGroup("req")
	logger.Info("msg", slog.Group("headers", slog.String("authorization", "secret-value"), slog.String("accept", "text/html")))

	out := buf.String()
	if strings.Contains(out, "a=b") || strings.Contains(out, "secret-value") {
		t.Errorf("sensitive value leaked: %s", out)
	}
	if !strings.Contains(out, "text/html") {
		t.Errorf("non-sensitive value lost: %s", out)
	}
}

func TestNewRedactHandlerNil(t *testing.T) {
	t.Parallel()

	if h := NewRedactHandler(nil); h.handler == nil {
		t.Fatal("expected default handler")
	}
}
