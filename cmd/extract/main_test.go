package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(context.Background(), append([]string{"extract"}, args...))
	return out.String(), err
}

const pagesCSV = "StaticContentID,PageTitle,Content\n" +
	"1,Home,<title>Welcome</title>\n" +
	"2,Sale,<title>Sale</title>\n"

func TestRunCommand_Stdout(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "pages.csv", pagesCSV)

	out, err := runApp(t, "run", "--workers", "1", in)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "page_title,StaticContentID,") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Home,1,") {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestJoinCommand_OutFile(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "StaticContentID,Keep / Delete\n2,Keep - New\n1,Delete\n")
	content := writeFile(t, dir, "pages.csv", pagesCSV)
	outPath := filepath.Join(dir, "filtered_data.csv")

	if _, err := runApp(t, "join", "--out", outPath, ref, content); err != nil {
		t.Fatalf("join error = %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "Sale,2,") {
		t.Errorf("output = %q, want only the Sale row", lines)
	}
}

func TestRunCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "pages.csv", pagesCSV)
	pdf := writeFile(t, dir, "doc.pdf", "%PDF")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no input", args: []string{"run"}, want: "exactly one INPUT"},
		{name: "missing file", args: []string{"run", filepath.Join(dir, "nope.csv")}, want: "read input"},
		{name: "unknown profile", args: []string{"run", "--profile", "nope", in}, want: "unknown profile"},
		{name: "unsupported type", args: []string{"run", pdf}, want: "FILE006"},
		{name: "join needs two files", args: []string{"join", in}, want: "REFERENCE and CONTENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestProfilesCommand(t *testing.T) {
	out, err := runApp(t, "profiles")
	if err != nil {
		t.Fatalf("profiles error = %v", err)
	}
	for _, want := range []string{"name: ml-n3", "name: modal-body", "merge: passthrough", "- modal_content"} {
		if !strings.Contains(out, want) {
			t.Errorf("profiles output missing %q:\n%s", want, out)
		}
	}
}

func TestProfilesCommand_Default(t *testing.T) {
	tests := []struct {
		name string
		env  string
		args []string
		want string
	}{
		{name: "built-in default", args: []string{"profiles"}, want: "ml-n3"},
		{name: "flag", args: []string{"profiles", "--profile", "modal-body"}, want: "modal-body"},
		{name: "env", env: "modal-body", args: []string{"profiles"}, want: "modal-body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("EXTRACT_DEFAULT_PROFILE", tt.env)
			}

			out, err := runApp(t, tt.args...)
			if err != nil {
				t.Fatalf("profiles error = %v", err)
			}

			var listing []profileListing
			if err := yaml.Unmarshal([]byte(out), &listing); err != nil {
				t.Fatalf("profiles output is not YAML: %v\n%s", err, out)
			}

			var defaults []string
			for _, p := range listing {
				if p.Default {
					defaults = append(defaults, p.Name)
				}
			}
			if len(defaults) != 1 || defaults[0] != tt.want {
				t.Errorf("default profiles = %v, want [%s]", defaults, tt.want)
			}
		})
	}
}
