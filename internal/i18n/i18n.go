// Package i18n resolves user-facing strings through a message catalog.
package i18n

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// builtin holds translations shipped with the binary, keyed by locale and
// catalog key. English strings are the keys themselves.
var builtin = map[string]map[string]string{
	"de": {
		"N/A":        "k. A.",
		"Memory: %s": "Speicher: %s",
		"NPU":        "NPU",
	},
	"fr": {
		"N/A":        "N/D",
		"Memory: %s": "Mémoire : %s",
		"NPU":        "NPU",
	},
}

// Translator looks up catalog keys for a single locale.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New builds a Translator for locale. When catalogPath is non-empty the YAML
// file at that path is layered on top of the built-in translations.
func New(locale, catalogPath string) (*Translator, error) {
	entries := make(map[string]map[string]string, len(builtin))
	for loc, messages := range builtin {
		entries[loc] = make(map[string]string, len(messages))
		for key, text := range messages {
			entries[loc][key] = text
		}
	}

	if catalogPath != "" {
		overlay, err := loadCatalogFile(catalogPath)
		if err != nil {
			return nil, err
		}
		for loc, messages := range overlay {
			if entries[loc] == nil {
				entries[loc] = make(map[string]string, len(messages))
			}
			for key, text := range messages {
				entries[loc][key] = text
			}
		}
	}

	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	supported := []language.Tag{language.English}

	locales := make([]string, 0, len(entries))
	for loc := range entries {
		locales = append(locales, loc)
	}
	sort.Strings(locales)

	for _, loc := range locales {
		tag, err := language.Parse(loc)
		if err != nil {
			return nil, fmt.Errorf("parse catalog locale %q: %w", loc, err)
		}
		for key, text := range entries[loc] {
			if err := builder.SetString(tag, key, text); err != nil {
				return nil, fmt.Errorf("set message %q for %s: %w", key, loc, err)
			}
		}
		if tag != language.English {
			supported = append(supported, tag)
		}
	}

	tag := language.English
	if requested, ok := parseLocale(locale); ok {
		matcher := language.NewMatcher(supported)
		_, index, confidence := matcher.Match(requested)
		if confidence != language.No {
			tag = supported[index]
		}
	}

	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(builder)),
	}, nil
}

// English returns a Translator that renders keys verbatim.
func English() *Translator {
	t, err := New("en", "")
	if err != nil {
		panic("i18n: builtin catalog invalid: " + err.Error())
	}
	return t
}

// Tag reports the locale the Translator resolved to.
func (t *Translator) Tag() language.Tag {
	return t.tag
}

// T returns the translation of key.
func (t *Translator) T(key string) string {
	return t.printer.Sprintf(key)
}

// F returns the translation of key with placeholders filled from args.
func (t *Translator) F(key string, args ...any) string {
	return t.printer.Sprintf(key, args...)
}

func loadCatalogFile(path string) (map[string]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var overlay map[string]map[string]string
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return overlay, nil
}

// parseLocale accepts POSIX-style values such as "de_DE.UTF-8" as well as
// BCP 47 tags.
func parseLocale(raw string) (language.Tag, bool) {
	value := strings.TrimSpace(raw)
	if i := strings.IndexAny(value, ".@"); i >= 0 {
		value = value[:i]
	}
	switch strings.ToUpper(value) {
	case "", "C", "POSIX", "AUTO":
		return language.Und, false
	}
	tag, err := language.Parse(strings.ReplaceAll(value, "_", "-"))
	if err != nil {
		return language.Und, false
	}
	return tag, true
}
