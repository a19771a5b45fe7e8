package logsvc

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
)

// ZeroLogger writes human readable log lines to a terminal or a file.
type ZeroLogger struct {
	zl zerolog.Logger
}

var _ core.Logger = (*ZeroLogger)(nil)

func NewZeroLogger(out io.Writer, conf *core.Config) *ZeroLogger {
	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    conf.TestMode,
	}
	zl := zerolog.New(output).
		With().
		Timestamp().
		Str("app", conf.AppName).
		Str("env", conf.Env).
		Logger().
		Level(level)
	return &ZeroLogger{zl: zl}
}

// expected fmt: error, map[string]interface{}, contact.Contact
func (l ZeroLogger) log(e *zerolog.Event, msg string, args []interface{}) {
	var errCount int
	for i, arg := range args {
		switch v := arg.(type) {
		case error:
			if errCount == 0 {
				e = e.Err(v)
			} else {
				e = e.AnErr(fmt.Sprintf("error%d", errCount+1), v)
			}
			errCount++
		case map[string]interface{}:
			e = e.Fields(v)
		case contact.Contact:
			e = e.Str("contact", v.ID)
		case nil:
		default:
			e = e.Interface(fmt.Sprintf("arg%d", i), v)
		}
	}
	e.Msg(msg)
}

func (l ZeroLogger) Debug(msg string, args ...interface{}) { l.log(l.zl.Debug(), msg, args) }
func (l ZeroLogger) Info(msg string, args ...interface{})  { l.log(l.zl.Info(), msg, args) }
func (l ZeroLogger) Warn(msg string, args ...interface{})  { l.log(l.zl.Warn(), msg, args) }
func (l ZeroLogger) Error(msg string, args ...interface{}) { l.log(l.zl.Error(), msg, args) }
func (l ZeroLogger) Fatal(msg string, args ...interface{}) { l.log(l.zl.Fatal(), msg, args) }
