package dtsbundle

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestCheckTypeScriptVersion(t *testing.T) {
	tmp := t.TempDir()
	tsDir := filepath.Join(tmp, "node_modules", "typescript")

	writeFile(t, filepath.Join(tsDir, "package.json"), `{"name":"typescript","version":"5.6.2"}`)
	if err := checkTypeScriptVersion(tsDir); err != nil {
		t.Fatalf("5.6.2 must pass the gate: %v", err)
	}

	writeFile(t, filepath.Join(tsDir, "package.json"), `{"name":"typescript","version":"5.4.5"}`)
	err := checkTypeScriptVersion(tsDir)
	if err == nil {
		t.Fatal("5.4.5 must fail the gate")
	}
	if !errors.Is(err, ErrTypeScriptVersion) {
		t.Fatalf("expected ErrTypeScriptVersion, got %v", err)
	}
}

func TestFindPackageDirWalksUp(t *testing.T) {
	tmp := t.TempDir()
	tsDir := filepath.Join(tmp, "node_modules", "typescript")
	writeFile(t, filepath.Join(tsDir, "package.json"), `{"version":"5.6.2"}`)
	nested := filepath.Join(tmp, "packages", "app", "src")
	writeFile(t, filepath.Join(nested, "keep.txt"), "")

	found, ok := findPackageDir("typescript", nested)
	if !ok || found != tsDir {
		t.Fatalf("expected upward walk to find %s, got %s ok=%v", tsDir, found, ok)
	}
	if _, ok := findPackageDir("not-installed", nested); ok {
		t.Fatal("missing package must not resolve")
	}
}

func TestNewNodeEmitterMissingTypeScript(t *testing.T) {
	_, err := NewNodeEmitter(t.TempDir())
	if err == nil {
		t.Fatal("expected an error without a typescript install")
	}
}
