package tui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestWrapTextBreaksAtSpaces(t *testing.T) {
	out := wrapText("one two three four", 9)
	want := "one two\nthree\nfour"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestWrapTextHardBreaksLongWords(t *testing.T) {
	out := wrapText("abcdefghij", 4)
	want := "abcd\nefgh\nij"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestWrapTextKeepsParagraphs(t *testing.T) {
	out := wrapText("first line\nsecond", 20)
	if out != "first line\nsecond" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWrapTextWideRunes(t *testing.T) {
	out := wrapText("週番号 週番号", 6)
	for _, line := range strings.Split(out, "\n") {
		if w := runewidth.StringWidth(line); w > 6 {
			t.Fatalf("line %q is %d cells wide", line, w)
		}
	}
}

func TestWrapTextNoWidth(t *testing.T) {
	if out := wrapText("unchanged text", 0); out != "unchanged text" {
		t.Fatalf("unexpected output %q", out)
	}
}
