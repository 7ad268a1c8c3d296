package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// InitLogger replaces the global zerolog logger. Console output prints the
// caller relative to the working directory.
func InitLogger(level string, format string) error {
	return initLogger(os.Stdout, level, format)
}

func initLogger(out io.Writer, level string, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var writer io.Writer
	switch format {
	case "", LogFormatConsole:
		wd, _ := os.Getwd()
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			FormatCaller: func(i interface{}) string {
				path, ok := i.(string)
				if !ok {
					return ""
				}
				relPath, err := filepath.Rel(wd, path)
				if err != nil || wd == "" {
					relPath = path
				}
				return fmt.Sprintf("[%s]", relPath)
			},
		}
	case LogFormatJSON:
		writer = out
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	log.Logger = zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()
	return nil
}
