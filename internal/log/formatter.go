package log

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format renders entry through the pattern. Supported verbs are %time, %level,
// %field, %msg, %caller, %func and %n (newline).
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	pattern := f.pattern
	if len(entry.Data) == 0 {
		pattern = strings.Replace(pattern, "%field ", "", 1)
	}

	caller, fn := "unknown", "unknown"
	if strings.Contains(pattern, "%caller") || strings.Contains(pattern, "%func") {
		if frame, ok := callerFrame(); ok {
			caller, fn = formatCaller(frame), funcName(frame.Function)
		}
	}

	r := strings.NewReplacer(
		"%time", entry.Time.Format(f.time),
		"%level", strings.ToUpper(entry.Level.String()),
		"%field", buildFields(entry),
		"%msg", entry.Message,
		"%caller", caller,
		"%func", fn,
		"%n", "\n",
	)
	out := r.Replace(pattern)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out), nil
}

// callerFrame walks up to the first frame outside logrus and this package's
// adapter plumbing. logrus' own caller reporting would stop at the adapter.
func callerFrame() (runtime.Frame, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isLoggingFrame(frame) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func isLoggingFrame(frame runtime.Frame) bool {
	if strings.Contains(frame.Function, "github.com/sirupsen/logrus") {
		return true
	}
	switch filepath.Base(frame.File) {
	case "logger_adapter.go", "formatter.go":
		return strings.Contains(frame.Function, "/internal/log.")
	}
	return false
}

// formatCaller returns package/file.go:line.
func formatCaller(frame runtime.Frame) string {
	pkg := ""
	// github.com/x/y/pkg.(*T).Method -> pkg
	rest := frame.Function[strings.LastIndex(frame.Function, "/")+1:]
	if dot := strings.Index(rest, "."); dot != -1 {
		pkg = rest[:dot]
	}
	return fmt.Sprintf("%s/%s:%d", pkg, filepath.Base(frame.File), frame.Line)
}

// funcName keeps only the function or method name.
func funcName(full string) string {
	if dot := strings.LastIndex(full, "."); dot != -1 && dot+1 < len(full) {
		return full[dot+1:]
	}
	return full
}

// buildFields renders entry.Data as sorted key=value pairs.
func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		var s string
		switch v := entry.Data[k].(type) {
		case string:
			s = v
		case error:
			s = v.Error()
		default:
			s = fmt.Sprint(v)
		}
		if strings.ContainsAny(s, " \t") {
			s = fmt.Sprintf("%q", s)
		}
		fields = append(fields, k+"="+s)
	}
	return strings.Join(fields, " ")
}
