package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	dtsbundle "dts-bundle-go"
)

const Version = "0.3.0"

// projectConfig mirrors the flag set; a dts-bundle.yaml in the project root
// provides defaults, explicit flags win.
type projectConfig struct {
	Entries         []string `yaml:"entries"`
	OutDir          string   `yaml:"outDir"`
	Tsconfig        string   `yaml:"tsconfig"`
	Resolve         bool     `yaml:"resolve"`
	ResolvePackages []string `yaml:"resolvePackages"`
	InferTypes      bool     `yaml:"inferTypes"`
	Tsgo            bool     `yaml:"tsgo"`
	Splitting       bool     `yaml:"splitting"`
	Minify          bool     `yaml:"minify"`
	Naming          string   `yaml:"naming"`
}

var (
	flagCwd             string
	flagOutDir          string
	flagTsconfig        string
	flagResolve         bool
	flagResolvePackages []string
	flagInferTypes      bool
	flagTsgo            bool
	flagSplitting       bool
	flagMinify          bool
	flagNaming          string
	flagWatch           bool
	flagVerbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "dts-bundle [entrypoints...]",
	Short: "Bundle TypeScript declarations into one .d.ts per entry",
	Long: `Generates a single bundled type-declaration file per entry point. All
transitively referenced types from project source, third-party packages and
builtin platform modules are inlined, deduplicated and tree-shaken to what
the entries actually export.`,
	Example: "dts-bundle src/index.ts --minify",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := filepath.Clean(dtsbundle.ResolveAbsoluteCwd(flagCwd))
		config := loadProjectConfig(cwd)
		applyConfigDefaults(cmd, config)

		entries := args
		if len(entries) == 0 {
			entries = config.Entries
		}
		if len(entries) == 0 {
			return fmt.Errorf("no entrypoints given; pass them as arguments or list them in dts-bundle.yaml")
		}

		if !flagWatch {
			return runOnce(cwd, entries)
		}
		return runWatch(cwd, entries)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagCwd, "cwd", ".", "Project root directory")
	flags.StringVar(&flagOutDir, "out-dir", "", "Output directory (default: <cwd>/dist)")
	flags.StringVar(&flagTsconfig, "tsconfig", "", "Path to an alternative tsconfig.json")
	flags.BoolVar(&flagResolve, "resolve", false, "Inline declarations of all external packages")
	flags.StringSliceVar(&flagResolvePackages, "resolve-pkg", nil, "Inline declarations of packages matching these globs")
	flags.BoolVar(&flagInferTypes, "infer-types", false, "Use the whole-program checker instead of per-file isolated declarations")
	flags.BoolVar(&flagTsgo, "tsgo", false, "Use the tsgo native preview binary as the checker")
	flags.BoolVar(&flagSplitting, "splitting", false, "Allow shared chunks between entry points")
	flags.BoolVar(&flagMinify, "minify", false, "Shorten identifiers and strip whitespace in the output")
	flags.StringVar(&flagNaming, "naming", "", "Output naming template, forwarded to the bundler")
	flags.BoolVar(&flagWatch, "watch", false, "Rebuild whenever a source file changes")
	flags.BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
}

func loadProjectConfig(cwd string) projectConfig {
	var config projectConfig
	content, err := os.ReadFile(filepath.Join(cwd, "dts-bundle.yaml"))
	if err != nil {
		return config
	}
	if err := yaml.Unmarshal(content, &config); err != nil {
		color.Yellow("warning: dts-bundle.yaml ignored: %v", err)
	}
	return config
}

// applyConfigDefaults copies config values into flags the user left unset.
func applyConfigDefaults(cmd *cobra.Command, config projectConfig) {
	if !cmd.Flags().Changed("out-dir") && config.OutDir != "" {
		flagOutDir = config.OutDir
	}
	if !cmd.Flags().Changed("tsconfig") && config.Tsconfig != "" {
		flagTsconfig = config.Tsconfig
	}
	if !cmd.Flags().Changed("resolve") {
		flagResolve = config.Resolve
	}
	if !cmd.Flags().Changed("resolve-pkg") && len(config.ResolvePackages) > 0 {
		flagResolvePackages = config.ResolvePackages
	}
	if !cmd.Flags().Changed("infer-types") {
		flagInferTypes = config.InferTypes
	}
	if !cmd.Flags().Changed("tsgo") {
		flagTsgo = config.Tsgo
	}
	if !cmd.Flags().Changed("splitting") {
		flagSplitting = config.Splitting
	}
	if !cmd.Flags().Changed("minify") {
		flagMinify = config.Minify
	}
	if !cmd.Flags().Changed("naming") && config.Naming != "" {
		flagNaming = config.Naming
	}
}

func buildOptions(cwd string) dtsbundle.Options {
	var logger *zap.Logger
	if flagVerbose {
		logger = dtsbundle.VerboseLogger()
	}
	outDir := flagOutDir
	if outDir != "" && !filepath.IsAbs(outDir) {
		outDir = filepath.Join(cwd, outDir)
	}
	return dtsbundle.Options{
		Cwd:               cwd,
		PreferredTsconfig: flagTsconfig,
		Resolve: dtsbundle.ResolvePolicy{
			All:      flagResolve,
			Patterns: flagResolvePackages,
		},
		InferTypes: flagInferTypes,
		Tsgo:       flagTsgo,
		Splitting:  flagSplitting,
		Minify:     flagMinify,
		Naming:     flagNaming,
		OutDir:     outDir,
		Logger:     logger,
	}
}

func runOnce(cwd string, entries []string) error {
	started := time.Now()
	result, err := dtsbundle.GenerateDts(entries, buildOptions(cwd))
	if err != nil {
		return err
	}

	for _, file := range result.Files {
		if err := os.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(file.Path, []byte(file.Code), 0o644); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(cwd, file.Path)
		if relErr != nil {
			rel = file.Path
		}
		fmt.Printf("  %s %s (%s, %d bytes)\n", color.GreenString("✓"), rel, file.Kind, len(file.Code))
	}

	printDiagnostics(cwd, result.Errors)

	if len(result.External) > 0 && flagVerbose {
		fmt.Printf("external: %s\n", strings.Join(result.External, ", "))
	}
	fmt.Printf("done in %s\n", time.Since(started).Round(time.Millisecond))
	return nil
}

func printDiagnostics(cwd string, emitErrors []dtsbundle.EmitError) {
	for _, emitError := range emitErrors {
		rel, err := filepath.Rel(cwd, emitError.File)
		if err != nil {
			rel = emitError.File
		}
		for _, diagnostic := range emitError.Diagnostics {
			location := color.New(color.Faint).Sprintf("%s:%d:%d", rel, diagnostic.Line, diagnostic.Column)
			fmt.Fprintf(os.Stderr, "%s %s %s\n", color.YellowString("warn"), location, diagnostic.Message)
		}
	}
}

// runWatch rebuilds on every change to a watched source file. Directories
// are watched recursively, with directories named node_modules, .git and
// dist skipped.
func runWatch(cwd string, entries []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, cwd); err != nil {
		return err
	}

	rebuild := func() {
		if err := runOnce(cwd, entries); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error"), err)
		}
	}
	rebuild()
	fmt.Println("watching for changes…")

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addWatchDirs(watcher, event.Name)
					continue
				}
			}
			if !isWatchRelevant(event) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, rebuild)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("watch error"), watchErr)
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if name == "node_modules" || name == ".git" || name == "dist" {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func isWatchRelevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := event.Name
	return strings.HasSuffix(name, ".ts") || strings.HasSuffix(name, ".tsx") ||
		strings.HasSuffix(name, ".mts") || strings.HasSuffix(name, ".cts") ||
		strings.HasSuffix(name, "tsconfig.json") || strings.HasSuffix(name, "package.json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error"), err)
		os.Exit(1)
	}
}
