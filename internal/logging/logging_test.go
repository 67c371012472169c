package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestRedactJSONCredentials(t *testing.T) {
	in := `{"markets":[],"type":"user","auth":{"apiKey":"abc123","secret":"s3cr3t","passphrase":"pass"}}`
	out := Redact(in)
	for _, leaked := range []string{"abc123", "s3cr3t", `"pass"`} {
		if strings.Contains(out, leaked) {
			t.Fatalf("expected %s to be redacted: %s", leaked, out)
		}
	}
	if !strings.Contains(out, `"apiKey":"REDACTED"`) {
		t.Fatalf("expected redacted marker: %s", out)
	}
	if !strings.Contains(out, `"type":"user"`) {
		t.Fatalf("expected non-secret fields preserved: %s", out)
	}
}

func TestRedactQueryCredentials(t *testing.T) {
	out := Redact("url?api_key=abc&secret=def&x=1")
	if out != "url?api_key=REDACTED&secret=REDACTED&x=1" {
		t.Fatalf("unexpected redaction: %s", out)
	}
}

func TestNewWithWriterPrefix(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf).Printf("hello")
	if !strings.HasPrefix(buf.String(), "polylatency ") || !strings.Contains(buf.String(), "hello") {
		t.Fatalf("unexpected log line %q", buf.String())
	}
}
