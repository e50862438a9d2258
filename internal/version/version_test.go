package version

import (
	"runtime"
	"testing"
)

func TestSetDefaults(t *testing.T) {
	Set(Info{Commit: "abc123"})
	got := Current()
	if got.Version != "dev" {
		t.Fatalf("expected dev version, got %q", got.Version)
	}
	if got.Commit != "abc123" {
		t.Fatalf("unexpected commit %q", got.Commit)
	}
	if got.GoVersion != runtime.Version() {
		t.Fatalf("unexpected go version %q", got.GoVersion)
	}
}
