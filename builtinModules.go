package dtsbundle

import "strings"

// Node builtin platform modules. These never resolve into the bundle: their
// declarations come from @types/node and consumers keep the import.
var builtinModules = map[string]bool{
	"assert": true, "assert/strict": true, "async_hooks": true, "buffer": true,
	"child_process": true, "cluster": true, "console": true, "constants": true,
	"crypto": true, "dgram": true, "diagnostics_channel": true, "dns": true,
	"dns/promises": true, "domain": true, "events": true, "fs": true,
	"fs/promises": true, "http": true, "http2": true, "https": true,
	"inspector": true, "module": true, "net": true, "os": true, "path": true,
	"path/posix": true, "path/win32": true, "perf_hooks": true, "process": true,
	"punycode": true, "querystring": true, "readline": true,
	"readline/promises": true, "repl": true, "stream": true,
	"stream/consumers": true, "stream/promises": true, "stream/web": true,
	"string_decoder": true, "sys": true, "timers": true, "timers/promises": true,
	"tls": true, "trace_events": true, "tty": true, "url": true, "util": true,
	"util/types": true, "v8": true, "vm": true, "wasi": true,
	"worker_threads": true, "zlib": true,
}

// isBuiltinModule reports whether a specifier names a Node builtin, with or
// without the node: scheme. Other schemes (bun:, deno:) count as builtins
// too: they are platform-provided either way.
func isBuiltinModule(specifier string) bool {
	if idx := strings.IndexByte(specifier, ':'); idx >= 0 {
		return true
	}
	return builtinModules[specifier]
}
