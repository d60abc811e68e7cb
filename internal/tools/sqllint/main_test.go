package main

import (
	"strings"
	"testing"
)

func TestLintFile(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		want     int
		contains string
	}{
		{
			name: "marked queries pass",
			src: "package q\n" +
				"const A = `--sql 11111111-2222-3333-4444-555555555555\nselect 1`\n" +
				"const B = `--sql 11111111-2222-3333-4444-666666666666\nupdate t set x = 1`\n",
		},
		{
			name:     "missing marker",
			src:      "package q\nconst A = `select * from generations`\n",
			want:     1,
			contains: "missing or invalid",
		},
		{
			name:     "malformed marker",
			src:      "package q\nconst A = `--sql not-a-uuid\nselect 1`\n",
			want:     1,
			contains: "missing or invalid",
		},
		{
			name: "duplicate marker",
			src: "package q\n" +
				"const A = `--sql 11111111-2222-3333-4444-555555555555\nselect 1`\n" +
				"const B = `--sql 11111111-2222-3333-4444-555555555555\nselect 2`\n",
			want:     1,
			contains: "already used by A",
		},
		{
			name: "non sql strings ignored",
			src:  "package q\nconst A = \"plain text\"\nvar B = 42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLinter()
			if err := l.lintFile("q.go", tt.src); err != nil {
				t.Fatalf("lintFile: %v", err)
			}
			if len(l.violations) != tt.want {
				t.Fatalf("violations = %+v, want %d", l.violations, tt.want)
			}
			if tt.contains != "" && !strings.Contains(l.violations[0].message, tt.contains) {
				t.Fatalf("message = %q, want it to contain %q", l.violations[0].message, tt.contains)
			}
		})
	}
}

func TestDuplicateAcrossFiles(t *testing.T) {
	l := newLinter()
	a := "package q\nconst A = `--sql 11111111-2222-3333-4444-555555555555\nselect 1`\n"
	b := "package q\nconst B = `--sql 11111111-2222-3333-4444-555555555555\ndelete from t`\n"
	if err := l.lintFile("a.go", a); err != nil {
		t.Fatalf("lint a: %v", err)
	}
	if err := l.lintFile("b.go", b); err != nil {
		t.Fatalf("lint b: %v", err)
	}
	if len(l.violations) != 1 || l.violations[0].file != "b.go" || l.violations[0].line != 2 {
		t.Fatalf("violations = %+v", l.violations)
	}
}
