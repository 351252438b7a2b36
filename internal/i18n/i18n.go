// Package i18n resolves user-facing strings by key from embedded catalogs.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var catalogFS embed.FS

// Fallback is the locale used for keys missing from the selected catalog.
const Fallback = "en"

var (
	loadOnce sync.Once
	catalogs map[string]map[string]string
	tags     []language.Tag
	names    []string
	loadErr  error
)

func load() {
	entries, err := catalogFS.ReadDir("locales")
	if err != nil {
		loadErr = err
		return
	}
	catalogs = make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".toml")
		data, err := catalogFS.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			loadErr = err
			return
		}
		var messages map[string]string
		if err := toml.Unmarshal(data, &messages); err != nil {
			loadErr = fmt.Errorf("invalid catalog %s: %w", entry.Name(), err)
			return
		}
		catalogs[name] = messages
		names = append(names, name)
	}
	sort.Strings(names)
	// The fallback goes first so the matcher prefers it on ties.
	tags = append(tags, language.Make(Fallback))
	for _, name := range names {
		if name != Fallback {
			tags = append(tags, language.Make(name))
		}
	}
}

// Localizer looks up messages for one locale.
type Localizer struct {
	locale   string
	messages map[string]string
	fallback map[string]string
}

// New returns a Localizer for the best catalog matching the requested
// locales, e.g. "de-AT" or "en_US.UTF-8".
func New(requested ...string) (*Localizer, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	cleaned := make([]string, 0, len(requested))
	for _, r := range requested {
		if r = normalize(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	locale := Fallback
	if len(cleaned) > 0 {
		_, index := language.MatchStrings(language.NewMatcher(tags), cleaned...)
		locale = tagName(index)
	}
	return &Localizer{
		locale:   locale,
		messages: catalogs[locale],
		fallback: catalogs[Fallback],
	}, nil
}

// Locale returns the selected catalog name.
func (l *Localizer) Locale() string {
	return l.locale
}

// T returns the message for key, falling back to English and then to the key.
func (l *Localizer) T(key string) string {
	if v, ok := l.messages[key]; ok {
		return v
	}
	if v, ok := l.fallback[key]; ok {
		return v
	}
	return key
}

// Locales lists the available catalogs.
func Locales() []string {
	loadOnce.Do(load)
	return append([]string(nil), names...)
}

func tagName(index int) string {
	if index == 0 {
		return Fallback
	}
	rest := 0
	for _, name := range names {
		if name == Fallback {
			continue
		}
		rest++
		if rest == index {
			return name
		}
	}
	return Fallback
}

// normalize turns POSIX locale strings into BCP 47 ones.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "C" || s == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(s, "_", "-")
}
