package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dshills/rewind/internal/app"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeScript(t *testing.T, dir, name, code string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const editScript = `
history.scope(function(scope)
	scene.add("box")
	scene.set("box", "X", 3)
	scene.set("box", "Color", "red")
	scope:label("create box")
end)
scene.layer_add("bg")
scene.tag("author", "ann")
history.undo()
`

func TestRunText(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "edit.lua", editScript)

	out, err := execute(t, "run", "--log-level", "error", script)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	for _, want := range []string{
		"box",
		"x=3",
		"color=red",
		"Layers:",
		"bg",
		"Tags:",
		"(none)",
		"History (3 items):",
		"create box",
		"> 2",
		"~ 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunJSON(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "edit.lua", editScript)

	out, err := execute(t, "run", "--json", "--log-level", "error", script)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	var r app.Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not a JSON report: %v\n%s", err, out)
	}
	if len(r.Scene.Shapes) != 1 || r.Scene.Shapes[0].Color != "red" {
		t.Errorf("shapes = %+v", r.Scene.Shapes)
	}
	if len(r.History) != 3 || r.Cursor != 1 || !r.History[2].Undone {
		t.Errorf("history = %+v, cursor = %d", r.History, r.Cursor)
	}
}

func TestRunScriptError(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "bad.lua", `scene.add("a"); scene.remove("ghost")`)

	out, err := execute(t, "run", "--log-level", "error", script)
	if err == nil || !strings.Contains(err.Error(), "bad.lua") {
		t.Fatalf("run error = %v, want failure naming the script", err)
	}
	// The report still shows what the script did before failing.
	if !strings.Contains(out, "Insert a") {
		t.Errorf("output should list the committed item:\n%s", out)
	}
}

func TestRunArgs(t *testing.T) {
	if _, err := execute(t, "run"); err == nil {
		t.Error("run without scripts should fail")
	}
	if _, err := execute(t, "run", "-o", "xml", "x.lua"); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("unknown format error = %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rewind.toml")
	if err := os.WriteFile(path, []byte("[history]\nmax_items = 7\n[script]\ntimeout = \"2s\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}

	var shown map[string]map[string]any
	if err := yaml.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if got := shown["history"]["max_items"]; got != 7 {
		t.Errorf("history.max_items = %v, want 7", got)
	}
	if got := shown["script"]["timeout"]; got != "2s" {
		t.Errorf("script.timeout = %v, want 2s", got)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "rewind dev") {
		t.Errorf("version output = %q", out)
	}
}
