package dtsbundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

// ResolvePolicy controls which bare package specifiers get inlined into the
// bundle. The zero value leaves every package external.
type ResolvePolicy struct {
	// All inlines every package that ships declarations.
	All bool
	// Patterns is an allow-list of package-name globs to inline.
	Patterns []string
}

// Options is the closed option set of GenerateDts.
type Options struct {
	// Cwd is the project root. Defaults to the process working directory.
	Cwd string
	// PreferredTsconfig points at an alternative project configuration.
	PreferredTsconfig string
	// Resolve picks the external-package inlining policy.
	Resolve ResolvePolicy
	// InferTypes produces declarations with the whole-program checker
	// instead of the per-file isolated transformer. Requires a tsconfig.
	InferTypes bool
	// Tsgo switches the checker executable to the native preview binary.
	Tsgo bool
	// Splitting lets the bundler emit shared chunks.
	Splitting bool
	// Minify renames user-visible identifiers to short ones and collapses
	// whitespace in the final declaration text.
	Minify bool
	// Naming is forwarded to the bundler for output file naming.
	Naming string
	// OutDir is where output paths are rooted. Defaults to <cwd>/dist.
	// GenerateDts itself writes nothing; paths are metadata for the caller.
	OutDir string
	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger

	// Test seams: inject emitters instead of spawning toolchain processes.
	fileEmitter FileEmitter
	textEmitter TextEmitter
}

type OutputKind uint8

const (
	OutputEntryPoint OutputKind = iota
	OutputChunk
)

func (k OutputKind) String() string {
	if k == OutputChunk {
		return "chunk"
	}
	return "entry-point"
}

// OutputFile is one bundled declaration artifact.
type OutputFile struct {
	Kind      OutputKind
	Path      string
	FileName  string
	Extension string
	Code      string
}

// EmitError carries the isolated-declaration diagnostics of one source file.
type EmitError struct {
	File        string
	Diagnostics []Diagnostic
}

// Result is the outcome of one GenerateDts run.
type Result struct {
	Files []OutputFile
	// Errors lists per-file declaration diagnostics. They accompany
	// successful output rather than replacing it.
	Errors []EmitError
	// External lists the specifiers left external, so callers can check
	// them against their published dependencies.
	External []string
}

// GenerateDts bundles the type declarations of one or more entry files into
// one declaration file per entry (plus shared chunks when splitting is on).
func GenerateDts(entrypoints []string, options Options) (*Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = nopLogger
	}
	cwd := filepath.Clean(ResolveAbsoluteCwd(defaultString(options.Cwd, ".")))

	entries, err := expandEntrypoints(entrypoints, cwd)
	if err != nil {
		return nil, err
	}
	logger.Debug("entrypoints expanded", zap.Strings("entries", entries))

	tsconfigPath, tsconfig, err := loadProjectConfig(cwd, options)
	if err != nil {
		return nil, err
	}

	fileEmitter, textEmitter, closeEmitters, err := buildEmitters(cwd, tsconfigPath, options)
	if err != nil {
		return nil, err
	}
	defer closeEmitters()

	resolver := NewModuleResolver(cwd, tsconfig, options.Resolve)

	var mu sync.Mutex
	diagnostics := map[string][]Diagnostic{}
	external := map[string]bool{}

	plugin := api.Plugin{
		Name: "dts",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind == api.ResolveEntryPoint {
					abs := args.Path
					if !filepath.IsAbs(abs) {
						abs = filepath.Join(cwd, abs)
					}
					return api.OnResolveResult{Path: abs, Namespace: "dts"}, nil
				}
				resolved, ok := resolver.Resolve(args.Path, filepath.Dir(args.Importer))
				if !ok {
					logger.Debug("unresolved specifier left external",
						zap.String("specifier", args.Path), zap.String("importer", args.Importer))
					mu.Lock()
					external[args.Path] = true
					mu.Unlock()
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				}
				if resolved.External {
					mu.Lock()
					external[resolved.Path] = true
					mu.Unlock()
					return api.OnResolveResult{Path: resolved.Path, External: true}, nil
				}
				return api.OnResolveResult{Path: resolved.Path, Namespace: "dts"}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "dts"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				declText, diags, err := declarationFor(args.Path, fileEmitter)
				if len(diags) > 0 {
					mu.Lock()
					diagnostics[args.Path] = append(diagnostics[args.Path], diags...)
					mu.Unlock()
				}
				if err != nil {
					return api.OnLoadResult{}, err
				}
				fakeJs, err := ForwardTransform(declText)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				resolveDir := filepath.Dir(args.Path)
				return api.OnLoadResult{Contents: &fakeJs, Loader: api.LoaderJS, ResolveDir: resolveDir}, nil
			})
		},
	}

	outDir := defaultString(options.OutDir, filepath.Join(cwd, "dist"))
	buildResult := api.Build(api.BuildOptions{
		AbsWorkingDir: cwd,
		EntryPoints:   entries,
		Outdir:        outDir,
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		Format:        api.FormatESModule,
		Splitting:     options.Splitting,
		EntryNames:    options.Naming,
		LogLevel:      api.LogLevelSilent,
		Plugins:       []api.Plugin{plugin},
	})
	if len(buildResult.Errors) > 0 {
		return nil, errors.Wrap(ErrBundle, bundleErrorText(buildResult.Errors))
	}

	entryOutputs := entryPointOutputs(buildResult.Metafile)

	result := &Result{}
	for _, file := range buildResult.OutputFiles {
		kind := OutputChunk
		if rel, err := filepath.Rel(cwd, file.Path); err == nil {
			if entryOutputs[filepath.ToSlash(rel)] {
				kind = OutputEntryPoint
			}
		}

		declText, err := ReverseTransform(string(file.Contents))
		if err != nil {
			return nil, errors.Wrapf(err, "reconstruct %s", file.Path)
		}

		dir, fileName, jsExt := splitOutputPath(file.Path)
		shaken, shakeDiags, err := textEmitter.EmitText(fileName+".ts", declText)
		if err != nil {
			return nil, errors.Wrapf(err, "tree-shake %s", file.Path)
		}
		if strings.TrimSpace(shaken) == "" {
			if len(shakeDiags) == 0 {
				// Only transitively unreferenced types were left; drop the
				// chunk.
				logger.Debug("chunk elided", zap.String("path", file.Path))
				continue
			}
			return nil, errors.Wrapf(ErrEmptyOutput, "%s: %s", file.Path, shakeDiags[0].Message)
		}

		if options.Minify {
			shaken, err = Minify(shaken)
			if err != nil {
				return nil, errors.Wrapf(err, "minify %s", file.Path)
			}
		}

		ext := declarationExtensionFor(jsExt)
		result.Files = append(result.Files, OutputFile{
			Kind:      kind,
			Path:      filepath.Join(dir, fileName+ext),
			FileName:  fileName,
			Extension: ext,
			Code:      shaken,
		})
	}

	for file, diags := range diagnostics {
		result.Errors = append(result.Errors, EmitError{File: file, Diagnostics: diags})
	}
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].File < result.Errors[j].File })
	for specifier := range external {
		result.External = append(result.External, specifier)
	}
	sort.Strings(result.External)
	return result, nil
}

// declarationFor yields the declaration text for one resolved module.
// Third-party declaration files under node_modules (and first-party .d.ts
// inputs) are taken verbatim; everything else goes through the pre-emitter.
func declarationFor(path string, emitter FileEmitter) (string, []Diagnostic, error) {
	if isNodeModulesPath(path) || hasDeclarationExtension(path) {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", nil, errors.Wrapf(err, "read %s", path)
		}
		return string(content), nil, nil
	}
	return emitter.EmitFile(path)
}

// expandEntrypoints resolves entry arguments (paths or glob patterns) to
// TypeScript sources.
func expandEntrypoints(entrypoints []string, cwd string) ([]string, error) {
	var entries []string
	seen := map[string]bool{}
	for _, arg := range entrypoints {
		pattern := arg
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(cwd, pattern)
		}
		matches, _ := filepath.Glob(pattern)
		for _, match := range matches {
			if !isTypeScriptSource(match) || !fileExists(match) || seen[match] {
				continue
			}
			seen[match] = true
			entries = append(entries, match)
		}
	}
	if len(entries) == 0 {
		return nil, errors.Wrapf(ErrNoEntry, "entrypoints: %s", strings.Join(entrypoints, ", "))
	}
	sort.Strings(entries)
	return entries, nil
}

// loadProjectConfig finds and parses the tsconfig the run should use.
func loadProjectConfig(cwd string, options Options) (string, *TsConfig, error) {
	tsconfigPath := options.PreferredTsconfig
	if tsconfigPath != "" && !filepath.IsAbs(tsconfigPath) {
		tsconfigPath = filepath.Join(cwd, tsconfigPath)
	}
	if tsconfigPath == "" {
		candidate := filepath.Join(cwd, "tsconfig.json")
		if fileExists(candidate) {
			tsconfigPath = candidate
		}
	}
	if tsconfigPath == "" {
		if options.InferTypes {
			return "", nil, ErrMissingTsconfig
		}
		return "", nil, nil
	}
	tsconfig, err := LoadTsConfig(tsconfigPath)
	if err != nil {
		return "", nil, errors.Wrapf(err, "load %s", tsconfigPath)
	}
	return tsconfigPath, tsconfig, nil
}

// buildEmitters wires the pre-emitter and the tree-shake emitter, honouring
// the test seams.
func buildEmitters(cwd, tsconfigPath string, options Options) (FileEmitter, TextEmitter, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, close := range closers {
			_ = close()
		}
	}

	fileEmitter := options.fileEmitter
	textEmitter := options.textEmitter

	if fileEmitter == nil && options.InferTypes {
		checker, err := NewCheckerEmitter(cwd, tsconfigPath, options.Tsgo)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, checker.Close)
		fileEmitter = checker
	}

	if fileEmitter == nil || textEmitter == nil {
		node, err := NewNodeEmitter(cwd)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		closers = append(closers, node.Close)
		if fileEmitter == nil {
			fileEmitter = node
		}
		if textEmitter == nil {
			textEmitter = node
		}
	}
	return fileEmitter, textEmitter, closeAll, nil
}

// entryPointOutputs extracts from the metafile which outputs belong to
// entries rather than shared chunks.
func entryPointOutputs(metafile string) map[string]bool {
	var meta struct {
		Outputs map[string]struct {
			EntryPoint string `json:"entryPoint"`
		} `json:"outputs"`
	}
	entries := map[string]bool{}
	if err := json.Unmarshal([]byte(metafile), &meta); err != nil {
		return entries
	}
	for output, info := range meta.Outputs {
		if info.EntryPoint != "" {
			entries[output] = true
		}
	}
	return entries
}

func bundleErrorText(messages []api.Message) string {
	var lines []string
	for _, message := range messages {
		text := message.Text
		if message.Location != nil {
			text = message.Location.File + ": " + text
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
