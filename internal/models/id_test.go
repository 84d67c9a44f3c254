package models

import "testing"

func TestIDFromPath(t *testing.T) {
	cases := []struct {
		in   string
		want NoteID
	}{
		{"Note.md", "note"},
		{"./Note.md", "note"},
		{"Folder/Sub/Note Title.md", "folder/sub/note title"},
		{"no-extension", "no-extension"},
		{"UPPER.MD", "upper.md"}, // only the exact .md suffix is stripped
	}
	for _, tc := range cases {
		if got := IDFromPath(tc.in); got != tc.want {
			t.Errorf("IDFromPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestReference_Broken(t *testing.T) {
	if !(Reference{RawTarget: "x"}).Broken() {
		t.Error("empty ResolvedID must be broken")
	}
	if (Reference{RawTarget: "x", ResolvedID: "y"}).Broken() {
		t.Error("resolved reference reported broken")
	}
}
