package version

import "testing"

func TestString(t *testing.T) {
	Version, GitSHA, BuildTime = "v1.2.3", "abc123", "2026-01-01T00:00:00Z"
	defer func() { Version, GitSHA, BuildTime = "dev", "unknown", "unknown" }()

	want := "visionary-bridge v1.2.3 (git abc123, built 2026-01-01T00:00:00Z)"
	if got := String("visionary-bridge"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
