// Package ldlog supplies the fallback logging configuration used whenever a caller leaves
// Config.Loggers unset.
package ldlog

import (
	"io"
	"log"
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// New builds a Loggers that splits output the way every core component expects: everything
// below Error goes to stdout, Error goes to stderr, so error output survives even when a caller
// redirects stdout away. minLevel sets the enabled floor; callers with no opinion should pass
// ldlog.Info.
func New(minLevel ldlog.LogLevel) ldlog.Loggers {
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetBaseLogger(destination(os.Stdout))
	loggers.SetBaseLoggerForLevel(ldlog.Error, destination(os.Stderr))
	loggers.SetMinLevel(minLevel)
	return loggers
}

func destination(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}
