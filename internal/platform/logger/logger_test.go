package logger

import "testing"

func TestSanitizeRedactsCredentialKeys(t *testing.T) {
	redactOnce.Do(func() {})
	redactionEnabled = true

	out := sanitizeKVs([]interface{}{"dsn", "postgres://u:p@host/db", "count", 3})
	if out[1] != "[REDACTED]" {
		t.Fatalf("dsn value not redacted: %v", out[1])
	}
	if out[3] != 3 {
		t.Fatalf("non-sensitive value rewritten: %v", out[3])
	}
}

func TestSanitizeOddTrailingKey(t *testing.T) {
	redactOnce.Do(func() {})
	redactionEnabled = true

	out := sanitizeKVs([]interface{}{"api_key", "abc", "dangling"})
	if len(out) != 3 {
		t.Fatalf("len=%d want 3", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key not redacted")
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production", ""} {
		log, err := New(mode)
		if err != nil {
			t.Fatalf("mode %q: %v", mode, err)
		}
		log.Info("hello", "k", "v")
	}
}
