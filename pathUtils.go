package dtsbundle

import (
	"os"
	"path/filepath"
	"strings"
)

var osSeparator = string(os.PathSeparator)

// StandardiseDirPath guarantees a trailing separator so prefix checks against
// it stay unambiguous.
func StandardiseDirPath(dir string) string {
	if strings.HasSuffix(dir, osSeparator) {
		return dir
	}
	return dir + osSeparator
}

// ResolveAbsoluteCwd turns a possibly-relative cwd into an absolute,
// separator-terminated one.
func ResolveAbsoluteCwd(cwd string) string {
	if filepath.IsAbs(cwd) {
		return StandardiseDirPath(cwd)
	}
	execDir, _ := os.Getwd()
	return StandardiseDirPath(filepath.Join(execDir, cwd))
}

// declarationExtensionFor maps a bundled chunk's runtime extension to its
// declaration counterpart.
func declarationExtensionFor(jsExt string) string {
	switch jsExt {
	case ".mjs":
		return ".d.mts"
	case ".cjs":
		return ".d.cts"
	default:
		return ".d.ts"
	}
}

// splitOutputPath decomposes a bundler output path into directory, filename
// without extension, and the runtime extension.
func splitOutputPath(outputPath string) (dir, fileName, ext string) {
	dir = filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext = filepath.Ext(base)
	fileName = strings.TrimSuffix(base, ext)
	return dir, fileName, ext
}

// isTypeScriptSource reports whether a path names something the pipeline can
// take as an entry.
func isTypeScriptSource(path string) bool {
	return hasSourceExtension(path) || hasDeclarationExtension(path)
}
