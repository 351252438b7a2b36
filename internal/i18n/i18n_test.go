package i18n

import "testing"

func TestFallbackLocale(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l.Locale() != "en" {
		t.Fatalf("expected en, got %s", l.Locale())
	}
	if got := l.T("weeks.dialog.title"); got != "Display Weeks from the Temporal Redis database" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := l.T("weeks.field.from_week_num"); got != "From Week Number" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestGermanMatching(t *testing.T) {
	for _, requested := range []string{"de", "de-AT", "de_DE.UTF-8"} {
		l, err := New(requested)
		if err != nil {
			t.Fatalf("new %s: %v", requested, err)
		}
		if l.Locale() != "de" {
			t.Fatalf("%s: expected de, got %s", requested, l.Locale())
		}
		if got := l.T("weeks.field.year"); got != "Jahr" {
			t.Fatalf("%s: unexpected label %q", requested, got)
		}
	}
}

func TestUnknownLocaleAndKey(t *testing.T) {
	l, err := New("ja", "C")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l.Locale() != "en" {
		t.Fatalf("expected fallback to en, got %s", l.Locale())
	}
	if got := l.T("no.such.key"); got != "no.such.key" {
		t.Fatalf("expected key echo, got %q", got)
	}
}

func TestCatalogsShareKeys(t *testing.T) {
	en, err := New("en")
	if err != nil {
		t.Fatalf("load en: %v", err)
	}
	de, err := New("de")
	if err != nil {
		t.Fatalf("load de: %v", err)
	}
	for key := range en.messages {
		if _, ok := de.messages[key]; !ok {
			t.Fatalf("de catalog is missing %s", key)
		}
	}
	if len(Locales()) != 2 {
		t.Fatalf("unexpected locales %v", Locales())
	}
}
