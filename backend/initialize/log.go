package initialize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"drive-eval/backend/global"

	"github.com/rs/zerolog"
)

// InitLogger points global.Logger at a console writer on stdout, or at an
// append-only file when path is set. The returned closer releases the file.
func InitLogger(path, level string) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout}
	var closer io.Closer = io.NopCloser(nil)
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		out, closer = f, f
	}
	global.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return closer, nil
}
