package sourcekitd

import "testing"

func TestNamespaceCachesResolution(t *testing.T) {
	calls := 0
	ns := NewNamespace("key", func(name string) uint64 {
		calls++
		return uint64(len(name))
	})

	a := ns.UID("source.lang.swift")
	b := ns.UID("source.lang.swift")
	if a != b {
		t.Fatalf("expected repeated UID lookups to return identical values")
	}
	if calls != 1 {
		t.Fatalf("expected resolve to be called once, got %d", calls)
	}
}

func TestDictRoundTrip(t *testing.T) {
	offsetKey := UID{ns: "key", name: "key.offset"}
	nameKey := UID{ns: "key", name: "key.name"}
	fallbackKey := UID{ns: "key", name: "key.is_fallback"}

	d := NewRequest(UID{ns: "request", name: "request.editor.open"})
	d.Set(offsetKey, int64(42))
	d.Set(nameKey, "a.swift")
	d.Set(fallbackKey, true)

	if off, ok := d.GetInt64(offsetKey); !ok || off != 42 {
		t.Fatalf("got (%d,%v)", off, ok)
	}
	if name, ok := d.GetString(nameKey); !ok || name != "a.swift" {
		t.Fatalf("got (%q,%v)", name, ok)
	}
	if fb, ok := d.GetBool(fallbackKey); !ok || !fb {
		t.Fatalf("got (%v,%v)", fb, ok)
	}
	if kind, ok := d.GetUID(KeyRequest); !ok || kind.name != "request.editor.open" {
		t.Fatalf("got (%+v,%v)", kind, ok)
	}
}

func TestDictMissingKey(t *testing.T) {
	d := NewRequest(UID{ns: "request", name: "request.editor.close"})
	if _, ok := d.GetString(UID{ns: "key", name: "key.nope"}); ok {
		t.Fatalf("expected missing key to report absent")
	}
}

func TestCompileCommandEqual(t *testing.T) {
	a := CompileCommand{Argv: []string{"-sdk", "/x"}, IsFallback: false}
	b := CompileCommand{Argv: []string{"-sdk", "/x"}, IsFallback: false}
	c := CompileCommand{Argv: []string{"-sdk", "/x"}, IsFallback: true}
	if !a.Equal(b) {
		t.Fatalf("expected equal compile commands to compare equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected differing fallback flag to compare unequal")
	}
}

func TestCompileCommandWithWorkingDirectory(t *testing.T) {
	cmd := CompileCommand{Argv: []string{"-sdk", "/x"}}
	got := cmd.WithWorkingDirectory("/proj")
	want := []string{"-sdk", "/x", "-working-directory", "/proj"}
	if len(got.Argv) != len(want) {
		t.Fatalf("got %v, want %v", got.Argv, want)
	}
	for i := range want {
		if got.Argv[i] != want[i] {
			t.Fatalf("got %v, want %v", got.Argv, want)
		}
	}

	already := CompileCommand{Argv: []string{"-working-directory", "/already"}}
	got2 := already.WithWorkingDirectory("/proj")
	if len(got2.Argv) != 2 {
		t.Fatalf("expected no duplicate flag appended, got %v", got2.Argv)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: ErrorConnectionInterrupted, Msg: "daemon exited"}
	if got := err.Error(); got != "sourcekitd: connection_interrupted: daemon exited" {
		t.Fatalf("unexpected message: %q", got)
	}
}
