package dtsbundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// packageManifest is the slice of package.json this tool reads: the fields
// that locate a package's type declarations.
type packageManifest struct {
	Name    string      `json:"name"`
	Types   string      `json:"types"`
	Typings string      `json:"typings"`
	Exports interface{} `json:"exports"`
}

func readPackageManifest(path string) (*packageManifest, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	content = jsonc.ToJSON(content)
	var manifest packageManifest
	if err := json.Unmarshal(content, &manifest); err != nil {
		return nil, false
	}
	return &manifest, true
}

// GetNodeModuleName extracts the package name from a bare specifier,
// honouring scoped packages: `@scope/pkg/sub` -> `@scope/pkg`.
func GetNodeModuleName(request string) string {
	splitCount := 2
	if strings.HasPrefix(request, "@") {
		splitCount = 3
	}
	parts := strings.SplitN(request, "/", splitCount)
	if len(parts) < splitCount {
		return request
	}
	return strings.Join(parts[:splitCount-1], "/")
}

// nodeModulesDirs walks up the directory tree from dir and collects every
// node_modules directory on the way, closest first. Node resolves packages
// the same way, so the first hit wins.
func nodeModulesDirs(dir string) []string {
	var dirs []string
	cur := filepath.Clean(dir)
	for {
		nmPath := filepath.Join(cur, "node_modules")
		if info, err := os.Stat(nmPath); err == nil && info.IsDir() {
			dirs = append(dirs, nmPath)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return dirs
}

// findPackageDir locates a package's install directory starting from dir.
func findPackageDir(pkgName, dir string) (string, bool) {
	for _, nmDir := range nodeModulesDirs(dir) {
		candidate := filepath.Join(nmDir, filepath.FromSlash(pkgName))
		if info, err := os.Stat(filepath.Join(candidate, "package.json")); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// resolvePackageTypes finds the declaration entry for a bare specifier. It
// checks, in order: the exports map's types/import/default conditions for the
// requested subpath, the types/typings manifest fields, an index.d.ts next to
// the manifest, and finally the DefinitelyTyped package (@types/<name>, with
// scoped names mangled the way DefinitelyTyped publishes them).
func resolvePackageTypes(specifier, fromDir string) (string, bool) {
	pkgName := GetNodeModuleName(specifier)
	subpath := "."
	if rest := strings.TrimPrefix(specifier, pkgName); rest != "" {
		subpath = "." + rest
	}

	if pkgDir, ok := findPackageDir(pkgName, fromDir); ok {
		if entry, ok := packageTypesEntry(pkgDir, subpath); ok {
			return entry, true
		}
	}

	typesPkg := "@types/" + definitelyTypedName(pkgName)
	if pkgDir, ok := findPackageDir(typesPkg, fromDir); ok {
		if entry, ok := packageTypesEntry(pkgDir, subpath); ok {
			return entry, true
		}
	}
	return "", false
}

func packageTypesEntry(pkgDir, subpath string) (string, bool) {
	manifest, ok := readPackageManifest(filepath.Join(pkgDir, "package.json"))
	if !ok {
		return "", false
	}

	if manifest.Exports != nil {
		if target, ok := resolveExportsTypes(manifest.Exports, subpath); ok {
			resolved := filepath.Join(pkgDir, filepath.FromSlash(target))
			if fileExists(resolved) {
				return resolved, true
			}
		}
	}

	if subpath == "." {
		for _, field := range []string{manifest.Types, manifest.Typings} {
			if field == "" {
				continue
			}
			resolved := filepath.Join(pkgDir, filepath.FromSlash(field))
			if fileExists(resolved) {
				return resolved, true
			}
		}
		index := filepath.Join(pkgDir, "index.d.ts")
		if fileExists(index) {
			return index, true
		}
		return "", false
	}

	// Subpath without an exports entry: look for declarations on disk.
	base := filepath.Join(pkgDir, filepath.FromSlash(strings.TrimPrefix(subpath, "./")))
	for _, candidate := range []string{base + ".d.ts", filepath.Join(base, "index.d.ts")} {
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// typeConditionNames is the condition order for exports-map lookups when
// hunting declarations.
var typeConditionNames = []string{"types", "import", "default"}

// resolveExportsTypes walks a package.json exports value for the declaration
// target of subpath.
func resolveExportsTypes(exports interface{}, subpath string) (string, bool) {
	switch v := exports.(type) {
	case string:
		if subpath == "." && looksLikeDeclaration(v) {
			return v, true
		}
		return "", false
	case map[string]interface{}:
		if isConditionMap(v) {
			for _, condition := range typeConditionNames {
				if inner, ok := v[condition]; ok {
					if target, ok := resolveExportsTypes(inner, "."); ok {
						return target, true
					}
				}
			}
			return "", false
		}
		if entry, ok := v[subpath]; ok {
			return resolveExportsTypes(entry, ".")
		}
		return "", false
	}
	return "", false
}

// isConditionMap distinguishes a conditions object from a subpath map:
// subpath keys start with "." by definition.
func isConditionMap(m map[string]interface{}) bool {
	for key := range m {
		if strings.HasPrefix(key, ".") {
			return false
		}
	}
	return len(m) > 0
}

func looksLikeDeclaration(target string) bool {
	return strings.HasSuffix(target, ".d.ts") || strings.HasSuffix(target, ".d.mts") || strings.HasSuffix(target, ".d.cts")
}

// definitelyTypedName mangles a scoped package name the way DefinitelyTyped
// does: @scope/name -> scope__name.
func definitelyTypedName(pkgName string) string {
	if !strings.HasPrefix(pkgName, "@") {
		return pkgName
	}
	return strings.ReplaceAll(strings.TrimPrefix(pkgName, "@"), "/", "__")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
