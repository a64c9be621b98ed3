package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedFiles_AreGooseAnnotated(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 5 {
		t.Fatalf("expected at least 5 migrations, got %d", len(entries))
	}

	for _, e := range entries {
		b, err := fs.ReadFile(files, "sql/"+e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		body := string(b)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s: missing goose annotations", e.Name())
		}
		// Files must stay schema-agnostic; Up targets a schema via search_path.
		if strings.Contains(body, "stl.") {
			t.Fatalf("%s: schema-qualified identifier found", e.Name())
		}
	}
}

func TestValidSchema(t *testing.T) {
	cases := map[string]bool{
		"stl":             true,
		"stl_it_01abc":    true,
		"":                false,
		"1stl":            false,
		"stl; DROP TABLE": false,
		`"quoted"`:        false,
	}
	for in, want := range cases {
		if got := ValidSchema(in); got != want {
			t.Fatalf("ValidSchema(%q)=%v, want %v", in, got, want)
		}
	}
}
