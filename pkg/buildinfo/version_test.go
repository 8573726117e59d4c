package buildinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	for _, want := range []string{"version: ", "commit: ", "built: ", "go: go"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestShortCommit(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	Commit = "0123456789abcdef"
	if got := ShortCommit(); got != "0123456" {
		t.Errorf("ShortCommit() = %q", got)
	}
	Commit = "none"
	if got := ShortCommit(); got != "none" {
		t.Errorf("ShortCommit() = %q", got)
	}
}
