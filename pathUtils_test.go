package dtsbundle

import "testing"

func TestDeclarationExtensionFor(t *testing.T) {
	cases := map[string]string{
		".js":  ".d.ts",
		".mjs": ".d.mts",
		".cjs": ".d.cts",
	}
	for jsExt, want := range cases {
		if got := declarationExtensionFor(jsExt); got != want {
			t.Fatalf("declarationExtensionFor(%q) = %q, want %q", jsExt, got, want)
		}
	}
}

func TestSplitOutputPath(t *testing.T) {
	dir, fileName, ext := splitOutputPath("/proj/dist/chunk-ABC.js")
	if dir != "/proj/dist" || fileName != "chunk-ABC" || ext != ".js" {
		t.Fatalf("unexpected split: %q %q %q", dir, fileName, ext)
	}
}

func TestIsTypeScriptSource(t *testing.T) {
	positives := []string{"a.ts", "a.tsx", "a.mts", "a.cts", "a.d.ts", "a.d.mts"}
	for _, path := range positives {
		if !isTypeScriptSource(path) {
			t.Fatalf("expected %q to be a TypeScript source", path)
		}
	}
	negatives := []string{"a.js", "a.json", "a.css", "a"}
	for _, path := range negatives {
		if isTypeScriptSource(path) {
			t.Fatalf("expected %q to not be a TypeScript source", path)
		}
	}
}
