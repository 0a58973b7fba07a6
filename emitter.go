package dtsbundle

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
)

// Diagnostic is one per-file declaration emission problem. Diagnostics are
// collected and returned to the caller; they never halt bundling.
type Diagnostic struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// FileEmitter produces declaration text for one source file on disk.
type FileEmitter interface {
	EmitFile(path string) (string, []Diagnostic, error)
	Close() error
}

// TextEmitter re-emits declaration text from an in-memory source. The driver
// uses it as the post-bundle tree-shaking pass.
type TextEmitter interface {
	EmitText(fileName, source string) (string, []Diagnostic, error)
	Close() error
}

// minTypeScriptVersion is the first typescript release with the isolated
// declaration transpiler API.
var minTypeScriptVersion = semver.MustParse("5.5.0")

// nodeEmitter drives the installed typescript package's transpileDeclaration
// API through a persistent Node worker. One request/response pair per
// declaration, newline-delimited JSON over the worker's stdio. The pipe is a
// single lane: the bundler's load hooks may call concurrently, so every
// round trip holds the mutex.
type nodeEmitter struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	nextID int
}

// emitRequest and emitResponse are the worker wire format.
type emitRequest struct {
	ID   int    `json:"id"`
	File string `json:"file"`
	Code string `json:"code"`
}

type emitResponse struct {
	ID          int          `json:"id"`
	Code        string       `json:"code"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Error       string       `json:"error"`
}

// emitterWorkerScript is the Node side of the protocol. The typescript
// package's path arrives as argv so the worker loads the project's own
// compiler instead of a global one.
const emitterWorkerScript = `
const ts = require(process.argv[1]);
const readline = require("readline");
const rl = readline.createInterface({ input: process.stdin, terminal: false });
rl.on("line", (line) => {
  let req;
  try { req = JSON.parse(line); } catch { return; }
  const out = { id: req.id, code: "", diagnostics: [] };
  try {
    const result = ts.transpileDeclaration(req.code, {
      fileName: req.file,
      reportDiagnostics: true,
      compilerOptions: { declaration: true, skipLibCheck: true },
    });
    out.code = result.outputText || "";
    for (const d of result.diagnostics || []) {
      let line = 0, column = 0;
      if (d.file && d.start !== undefined) {
        const pos = d.file.getLineAndCharacterOfPosition(d.start);
        line = pos.line + 1;
        column = pos.character;
      }
      out.diagnostics.push({
        file: req.file,
        line, column,
        message: ts.flattenDiagnosticMessageText(d.messageText, " "),
      });
    }
  } catch (err) {
    out.error = String(err && err.message ? err.message : err);
  }
  process.stdout.write(JSON.stringify(out) + "\n");
});
`

// NewNodeEmitter locates the project's typescript package, gates its version,
// and starts the worker.
func NewNodeEmitter(cwd string) (*nodeEmitter, error) {
	tsDir, ok := findPackageDir("typescript", cwd)
	if !ok {
		return nil, errors.WithHint(
			errors.New("typescript package not found"),
			"install typescript in the project so declarations can be emitted")
	}
	if err := checkTypeScriptVersion(tsDir); err != nil {
		return nil, err
	}

	cmd := exec.Command("node", "-e", emitterWorkerScript, filepath.Join(tsDir, "lib", "typescript.js"))
	cmd.Dir = cwd
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "start emitter worker")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "start emitter worker")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start emitter worker")
	}

	return &nodeEmitter{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReaderSize(stdout, 1<<20),
	}, nil
}

// checkTypeScriptVersion reads the package manifest version and compares it
// against the isolated-declarations floor.
func checkTypeScriptVersion(tsDir string) error {
	var manifest struct {
		Version string `json:"version"`
	}
	content, err := os.ReadFile(filepath.Join(tsDir, "package.json"))
	if err != nil {
		return errors.Wrap(err, "read typescript package.json")
	}
	if err := json.Unmarshal(content, &manifest); err != nil {
		return errors.Wrap(err, "parse typescript package.json")
	}
	version, err := semver.NewVersion(manifest.Version)
	if err != nil {
		return errors.Wrapf(err, "parse typescript version %q", manifest.Version)
	}
	if version.LessThan(minTypeScriptVersion) {
		return errors.Wrapf(ErrTypeScriptVersion, "found %s", version)
	}
	return nil
}

func (e *nodeEmitter) EmitFile(path string) (string, []Diagnostic, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errors.Wrapf(err, "read %s", path)
	}
	return e.EmitText(path, string(source))
}

func (e *nodeEmitter) EmitText(fileName, source string) (string, []Diagnostic, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	request := emitRequest{ID: e.nextID, File: fileName, Code: source}
	payload, err := json.Marshal(request)
	if err != nil {
		return "", nil, errors.Wrap(err, "encode emit request")
	}
	if _, err := e.stdin.Write(append(payload, '\n')); err != nil {
		return "", nil, errors.Wrap(err, "write to emitter worker")
	}

	line, err := e.stdout.ReadBytes('\n')
	if err != nil {
		return "", nil, errors.Wrap(err, "read from emitter worker")
	}
	var response emitResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return "", nil, errors.Wrap(err, "decode emit response")
	}
	if response.Error != "" {
		return "", nil, errors.Newf("emitter worker: %s", response.Error)
	}
	return response.Code, response.Diagnostics, nil
}

func (e *nodeEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stdin != nil {
		_ = e.stdin.Close()
		e.stdin = nil
	}
	if e.cmd != nil {
		err := e.cmd.Wait()
		e.cmd = nil
		return err
	}
	return nil
}
