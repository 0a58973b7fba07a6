package dtsbundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/jsonc"
)

// TsConfig is the subset of a resolved tsconfig this tool consumes: the path
// mapping inputs for the module resolver and the location the config was
// loaded from (relative baseUrl/paths entries resolve against it).
type TsConfig struct {
	Path    string
	BaseUrl string
	Paths   map[string][]string
}

// LoadTsConfig reads a tsconfig (JSON or JSONC) and resolves its "extends"
// chain. Merging rules: the child overrides the base for baseUrl; paths merge
// with child keys overriding base keys; relative paths from extended configs
// are rebased onto the child's directory.
func LoadTsConfig(tsconfigPath string) (*TsConfig, error) {
	content, err := os.ReadFile(tsconfigPath)
	if err != nil {
		return nil, err
	}
	content = jsonc.ToJSON(content)

	var raw map[string]interface{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, errors.Wrapf(err, "parse %s", tsconfigPath)
	}

	baseDir := filepath.Dir(tsconfigPath)
	merged, err := resolveExtends(raw, baseDir, map[string]bool{})
	if err != nil {
		return nil, err
	}

	cfg := &TsConfig{Path: tsconfigPath, Paths: map[string][]string{}}
	options, _ := merged["compilerOptions"].(map[string]interface{})
	if baseUrl, ok := options["baseUrl"].(string); ok {
		cfg.BaseUrl = baseUrl
	}
	if paths, ok := options["paths"].(map[string]interface{}); ok {
		for alias, targets := range paths {
			list, ok := targets.([]interface{})
			if !ok {
				continue
			}
			for _, target := range list {
				if s, ok := target.(string); ok {
					cfg.Paths[alias] = append(cfg.Paths[alias], s)
				}
			}
		}
	}
	return cfg, nil
}

// resolveExtends recursively merges the "extends" chain, child over base.
func resolveExtends(cfg map[string]interface{}, baseDir string, seen map[string]bool) (map[string]interface{}, error) {
	result := map[string]interface{}{}
	for k, v := range cfg {
		result[k] = v
	}

	extStr, ok := result["extends"].(string)
	if !ok || strings.TrimSpace(extStr) == "" {
		ensureCompilerOptions(result)
		return result, nil
	}

	baseCfg, foundPath := readExtendedConfig(extStr, baseDir)
	if baseCfg == nil {
		ensureCompilerOptions(result)
		return result, nil
	}

	absFound, _ := filepath.Abs(foundPath)
	if seen[absFound] {
		ensureCompilerOptions(result)
		return result, nil
	}
	seen[absFound] = true

	baseDirNext := filepath.Dir(foundPath)
	resolvedBase, err := resolveExtends(baseCfg, baseDirNext, seen)
	if err != nil {
		return nil, err
	}

	// Paths in the extended config are relative to its own location; adjust
	// them so they still point at the same files from the child's directory.
	rebaseRelativePaths(resolvedBase, baseDirNext, baseDir)

	merged := map[string]interface{}{}
	for k, v := range resolvedBase {
		merged[k] = v
	}
	for k, v := range result {
		if k != "compilerOptions" {
			merged[k] = v
			continue
		}
		baseOptions, _ := merged["compilerOptions"].(map[string]interface{})
		childOptions, _ := v.(map[string]interface{})
		merged["compilerOptions"] = mergeCompilerOptions(baseOptions, childOptions)
	}

	delete(merged, "extends")
	ensureCompilerOptions(merged)
	return merged, nil
}

// readExtendedConfig tries the candidate locations for an "extends" target:
// a path relative to the extending config, or a package published under
// node_modules.
func readExtendedConfig(extStr, baseDir string) (map[string]interface{}, string) {
	var candidates []string
	if filepath.IsAbs(extStr) || strings.HasPrefix(extStr, ".") || strings.Contains(extStr, string(filepath.Separator)) {
		p := extStr
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		candidates = append(candidates, p, p+".json")
	} else {
		candidates = append(candidates,
			filepath.Join(baseDir, "node_modules", extStr),
			filepath.Join(baseDir, "node_modules", extStr, "tsconfig.json"),
			filepath.Join(baseDir, "node_modules", extStr+".json"))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		content, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		content = jsonc.ToJSON(content)
		var parsed map[string]interface{}
		if err := json.Unmarshal(content, &parsed); err != nil {
			continue
		}
		return parsed, candidate
	}
	return nil, ""
}

func ensureCompilerOptions(cfg map[string]interface{}) {
	if _, ok := cfg["compilerOptions"]; !ok {
		cfg["compilerOptions"] = map[string]interface{}{}
	}
}

func mergeCompilerOptions(base, child map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range child {
		if k == "paths" {
			childPaths, ok := v.(map[string]interface{})
			if !ok {
				out["paths"] = v
				continue
			}
			mergedPaths := map[string]interface{}{}
			if basePaths, ok := out["paths"].(map[string]interface{}); ok {
				for alias, targets := range basePaths {
					mergedPaths[alias] = targets
				}
			}
			for alias, targets := range childPaths {
				mergedPaths[alias] = targets
			}
			out["paths"] = mergedPaths
			continue
		}
		out[k] = v
	}
	return out
}

// rebaseRelativePaths rewrites a relative baseUrl, or the paths entries when
// there is no baseUrl, so they point correctly from toDir instead of fromDir.
func rebaseRelativePaths(cfg map[string]interface{}, fromDir, toDir string) {
	options, ok := cfg["compilerOptions"].(map[string]interface{})
	if !ok {
		return
	}
	rebase := func(entry string) string {
		if filepath.IsAbs(entry) {
			return entry
		}
		abs := filepath.Join(fromDir, entry)
		rel, err := filepath.Rel(toDir, abs)
		if err != nil {
			return entry
		}
		return filepath.ToSlash(rel)
	}
	if baseUrl, ok := options["baseUrl"].(string); ok {
		options["baseUrl"] = rebase(baseUrl)
		// paths entries resolve against baseUrl, which has just moved.
		return
	}
	if paths, ok := options["paths"].(map[string]interface{}); ok {
		for alias, targets := range paths {
			list, ok := targets.([]interface{})
			if !ok {
				continue
			}
			rebased := make([]interface{}, 0, len(list))
			for _, target := range list {
				if s, ok := target.(string); ok {
					rebased = append(rebased, rebase(s))
				}
			}
			paths[alias] = rebased
		}
	}
}
