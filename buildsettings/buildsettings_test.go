package buildsettings

import (
	"testing"

	"github.com/sourcekitd/langworker/sourcekitd"
)

func TestStaticResolvesKnownURI(t *testing.T) {
	cmd := sourcekitd.CompileCommand{Argv: []string{"-sdk", "/x"}}
	s := NewStatic(map[string]sourcekitd.CompileCommand{
		"file:///a.swift": cmd,
	}, sourcekitd.CompileCommand{Argv: []string{"-sdk", "/fallback"}})

	got, err := s.Resolve("file:///a.swift")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != ChangeModified || !got.Settings.Equal(cmd) {
		t.Fatalf("got %+v", got)
	}
}

func TestStaticFallsBackForUnknownURI(t *testing.T) {
	s := NewStatic(nil, sourcekitd.CompileCommand{Argv: []string{"-sdk", "/fallback"}})
	got, err := s.Resolve("file:///missing.swift")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != ChangeFallback || !got.Settings.IsFallback {
		t.Fatalf("expected a fallback change, got %+v", got)
	}
}
