package manifest

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestResolvePathDependencies(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writeManifest(t, app, `
[classpath]
dirs = ["src"]

[dependencies]
collections = { path = "../collections" }
plain = { path = "../plain" }
`)
	writeManifest(t, filepath.Join(root, "collections"), `
[classpath]
dirs = ["classes"]

[dependencies]
base = { path = "../base" }
`)
	writeManifest(t, filepath.Join(root, "base"), "")
	if err := os.MkdirAll(filepath.Join(root, "plain"), 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := Load(app)
	if err != nil {
		t.Fatal(err)
	}
	r := NewResolver(m)

	deps, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var names []string
	for _, d := range deps {
		names = append(names, d.Name)
	}
	if want := []string{"base", "collections", "plain"}; !reflect.DeepEqual(names, want) {
		t.Errorf("load order = %v, want %v", names, want)
	}
	if deps[2].Manifest != nil {
		t.Error("plain has no som.toml but got a manifest")
	}

	paths, err := r.ClassPath()
	if err != nil {
		t.Fatalf("ClassPath: %v", err)
	}
	want := []string{
		filepath.Join(app, "src"),
		filepath.Join(root, "plain"),
		filepath.Join(root, "collections", "classes"),
		filepath.Join(root, "base"),
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("ClassPath = %v, want %v", paths, want)
	}
}

func TestResolveDependencyCycle(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "a"), `
[dependencies]
b = { path = "../b" }
`)
	writeManifest(t, filepath.Join(root, "b"), `
[dependencies]
a = { path = "../a" }
`)

	m, err := Load(filepath.Join(root, "a"))
	if err != nil {
		t.Fatal(err)
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(deps) != 2 {
		t.Errorf("resolved %d deps, want 2", len(deps))
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing path",
			content: "[dependencies]\nghost = { path = \"../ghost\" }\n",
			wantErr: "not found",
		},
		{
			name:    "no source",
			content: "[dependencies]\nempty = { tag = \"v1\" }\n",
			wantErr: "has no git or path",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tc.content)
			m, err := Load(dir)
			if err != nil {
				t.Fatal(err)
			}
			_, err = NewResolver(m).Resolve()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	args = append([]string{"-c", "user.name=som", "-c", "user.email=som@example.com"}, args...)
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
}

func TestResolveGitDependency(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	if err := os.MkdirAll(lib, 0o755); err != nil {
		t.Fatal(err)
	}
	writeClass := func(body string) {
		if err := os.WriteFile(filepath.Join(lib, "Lib.som"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeClass("Lib = ( version = ( ^1 ) )")
	runGit(t, lib, "init", "--quiet")
	runGit(t, lib, "add", ".")
	runGit(t, lib, "commit", "--quiet", "-m", "v1")
	runGit(t, lib, "tag", "v1")

	app := filepath.Join(root, "app")
	writeManifest(t, app, "[dependencies]\nlib = { git = \""+lib+"\", tag = \"v1\" }\n")
	m, err := Load(app)
	if err != nil {
		t.Fatal(err)
	}

	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	clone := filepath.Join(m.DepsDir(), "lib")
	if len(deps) != 1 || deps[0].LocalPath != clone {
		t.Fatalf("deps = %+v, want one clone at %s", deps, clone)
	}

	// A tag published after the first clone is fetched before checkout.
	writeClass("Lib = ( version = ( ^2 ) )")
	runGit(t, lib, "commit", "--quiet", "-am", "v2")
	runGit(t, lib, "tag", "v2")
	writeManifest(t, app, "[dependencies]\nlib = { git = \""+lib+"\", tag = \"v2\" }\n")
	if m, err = Load(app); err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(m).Resolve(); err != nil {
		t.Fatalf("Resolve after retag: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(clone, "Lib.som"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "^2") {
		t.Errorf("checked out %q, want the v2 source", data)
	}
}
