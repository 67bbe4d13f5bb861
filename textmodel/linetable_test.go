package textmodel

import "testing"

func TestUTF8OffsetRoundTrip(t *testing.T) {
	text := "hello\nworld 日本語\nend"
	lt := NewLineTable(text)

	for off := 0; off <= len(text); off++ {
		pos, ok := lt.PositionOfUTF8Offset(off)
		if !ok {
			continue
		}
		back, ok := lt.UTF8OffsetOf(int(pos.Line), pos.Character)
		if !ok {
			t.Fatalf("offset %d: PositionOfUTF8Offset->UTF8OffsetOf lost the round trip (pos=%+v)", off, pos)
		}
		if back != off {
			t.Fatalf("offset %d -> pos %+v -> offset %d, want round trip", off, pos, back)
		}
	}
}

func TestSurrogatePairs(t *testing.T) {
	// U+1F600 (😀) encodes as a UTF-16 surrogate pair (2 code units) and a
	// 4-byte UTF-8 sequence.
	text := "a😀b"
	lt := NewLineTable(text)

	off, ok := lt.UTF8OffsetOf(0, 0)
	if !ok || off != 0 {
		t.Fatalf("col 0: got (%d,%v)", off, ok)
	}
	off, ok = lt.UTF8OffsetOf(0, 1) // just past 'a'
	if !ok || off != 1 {
		t.Fatalf("col 1: got (%d,%v)", off, ok)
	}
	off, ok = lt.UTF8OffsetOf(0, 3) // past the surrogate pair (2 units)
	if !ok || off != 5 {
		t.Fatalf("col 3: got (%d,%v), want byte offset 5", off, ok)
	}

	pos, ok := lt.PositionOfUTF8Offset(5)
	if !ok || pos.Character != 3 {
		t.Fatalf("offset 5: got %+v, want character 3", pos)
	}
}

func TestOutOfRangeYieldsAbsent(t *testing.T) {
	lt := NewLineTable("one\ntwo\n")

	if _, ok := lt.UTF8OffsetOf(10, 0); ok {
		t.Fatalf("line 10 should be out of range")
	}
	if _, ok := lt.UTF8OffsetOf(0, 1000); ok {
		t.Fatalf("column 1000 on a 3-char line should be out of range")
	}
	if _, ok := lt.PositionOfUTF8Offset(-1); ok {
		t.Fatalf("negative offset should be out of range")
	}
	if _, ok := lt.PositionOfUTF8Offset(1000); ok {
		t.Fatalf("offset past the end should be out of range")
	}
}

func TestUTF16ColOf(t *testing.T) {
	lt := NewLineTable("日本語 test")
	col, ok := lt.UTF16ColOf(0, len("日本語"))
	if !ok || col != 3 {
		t.Fatalf("got (%d,%v), want utf16 column 3", col, ok)
	}
}

func TestLineCount(t *testing.T) {
	lt := NewLineTable("a\nb\nc")
	if lt.LineCount() != 3 {
		t.Fatalf("got %d lines, want 3", lt.LineCount())
	}
	lt = NewLineTable("")
	if lt.LineCount() != 1 {
		t.Fatalf("empty text should still report 1 line, got %d", lt.LineCount())
	}
}
