package forge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strconv"
	"sync"
	"text/template"
	"time"
)

// Logger writes leveled, templated log lines. It does not reach back
// into a global server singleton; it is a value any component (core or
// plugin) can hold a reference to.
type Logger struct {
	Output  io.Writer
	Enabled bool

	tmpl       *template.Template
	bufferPool *sync.Pool
	mutex      sync.Mutex
}

type loggerLevel uint8

const (
	lvlDebug loggerLevel = iota
	lvlInfo
	lvlWarn
	lvlError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// DefaultLoggerFormat is a JSON object with the message appended as
// one more field.
const DefaultLoggerFormat = `{"time":"${time_rfc3339}","level":"${level}","file":"${short_file}","line":"${line}"}`

// NewLogger returns a Logger writing to out, enabled by default.
func NewLogger(out io.Writer) *Logger {
	return &Logger{
		Output:  out,
		Enabled: true,
		bufferPool: &sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
	}
}

func (l *Logger) template() *template.Template {
	if l.tmpl == nil {
		l.tmpl = template.Must(template.New("logger").Parse(expandLogFormat(DefaultLoggerFormat)))
	}
	return l.tmpl
}

// expandLogFormat rewrites the "${field}" placeholders DefaultLoggerFormat
// uses into text/template's "{{.field}}" syntax.
func expandLogFormat(format string) string {
	replacer := func(old, field string) string {
		return old
	}
	_ = replacer
	out := format
	for _, field := range []string{"time_rfc3339", "level", "short_file", "long_file", "line"} {
		out = replaceAll(out, "${"+field+"}", "{{."+field+"}}")
	}
	return out
}

func replaceAll(s, old, new string) string {
	for {
		i := indexOf(s, old)
		if i < 0 {
			return s
		}
		s = s[:i] + new + s[i+len(old):]
	}
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}

func (l *Logger) log(lvl loggerLevel, format string, args ...interface{}) {
	if !l.Enabled {
		return
	}

	message := fmt.Sprint(args...)
	if format != "" {
		message = fmt.Sprintf(format, args...)
	}

	_, file, line, _ := runtime.Caller(3)

	data := map[string]interface{}{
		"time_rfc3339": time.Now().Format(time.RFC3339),
		"level":        levelNames[lvl],
		"short_file":   path.Base(file),
		"long_file":    file,
		"line":         strconv.Itoa(line),
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	buf := l.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		l.bufferPool.Put(buf)
	}()

	if err := l.template().Execute(buf, data); err != nil {
		fmt.Fprintf(l.Output, "%s %s\n", levelNames[lvl], message)
		return
	}

	s := buf.Bytes()
	if len(s) > 0 && s[len(s)-1] == '}' {
		buf.Truncate(buf.Len() - 1)
		buf.WriteByte(',')
		buf.WriteString(`"message":`)
		mb, _ := json.Marshal(message)
		buf.Write(mb)
		buf.WriteByte('}')
	} else {
		buf.WriteByte(' ')
		buf.WriteString(message)
	}
	buf.WriteByte('\n')
	l.Output.Write(buf.Bytes())
}

func (l *Logger) Debug(args ...interface{}) { l.log(lvlDebug, "", args...) }
func (l *Logger) Info(args ...interface{})  { l.log(lvlInfo, "", args...) }
func (l *Logger) Warn(args ...interface{})  { l.log(lvlWarn, "", args...) }
func (l *Logger) Error(args ...interface{}) { l.log(lvlError, "", args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(lvlDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(lvlInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(lvlWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(lvlError, format, args...) }

// defaultLogger backs the package-level logDebug/logInfo/logWarn/
// logError helpers that components without their own injected Logger
// (router registration warnings, plugin lifecycle panics) fall back
// to. A Server's own calls go through its Logger field instead.
var defaultLogger = NewLogger(os.Stdout)

func logDebug(format string, args ...interface{}) { defaultLogger.Debugf(format, args...) }
func logInfo(format string, args ...interface{})  { defaultLogger.Infof(format, args...) }
func logWarn(format string, args ...interface{})  { defaultLogger.Warnf(format, args...) }
func logError(args ...interface{})                { defaultLogger.Error(args...) }
