package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/language"
)

func TestEnglishRendersKeys(t *testing.T) {
	t.Parallel()

	tr := English()
	if got := tr.T("N/A"); got != "N/A" {
		t.Fatalf("unexpected text %q", got)
	}
	if got := tr.F("Memory: %s", "50 %"); got != "Memory: 50 %" {
		t.Fatalf("unexpected formatted text %q", got)
	}
}

func TestBuiltinGerman(t *testing.T) {
	t.Parallel()

	tr, err := New("de_DE.UTF-8", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if tr.Tag() != language.German {
		t.Fatalf("expected german tag, got %v", tr.Tag())
	}
	if got := tr.T("N/A"); got != "k. A." {
		t.Fatalf("unexpected text %q", got)
	}
	if got := tr.F("Memory: %s", "12 %"); got != "Speicher: 12 %" {
		t.Fatalf("unexpected formatted text %q", got)
	}
}

func TestUnknownLocaleFallsBackToEnglish(t *testing.T) {
	t.Parallel()

	for _, locale := range []string{"", "C", "POSIX", "xx-invalid-", "ja"} {
		tr, err := New(locale, "")
		if err != nil {
			t.Fatalf("New(%q) returned error: %v", locale, err)
		}
		if got := tr.T("N/A"); got != "N/A" {
			t.Fatalf("locale %q: expected english fallback, got %q", locale, got)
		}
	}
}

func TestCatalogOverlay(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	contents := "de:\n  \"N/A\": \"n. v.\"\nes:\n  \"N/A\": \"N/D\"\n  \"Memory: %s\": \"Memoria: %s\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	de, err := New("de", path)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := de.T("N/A"); got != "n. v." {
		t.Fatalf("overlay did not override builtin: %q", got)
	}
	if got := de.F("Memory: %s", "1 %"); got != "Speicher: 1 %" {
		t.Fatalf("builtin entry lost after overlay: %q", got)
	}

	es, err := New("es-ES", path)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := es.F("Memory: %s", "3 %"); got != "Memoria: 3 %" {
		t.Fatalf("unexpected spanish text %q", got)
	}
}

func TestCatalogOverlayErrors(t *testing.T) {
	t.Parallel()

	if _, err := New("en", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing catalog")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("de: [unterminated"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := New("en", path); err == nil {
		t.Fatalf("expected error for malformed catalog")
	}
}
