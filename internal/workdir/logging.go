// SPDX-License-Identifier: MPL-2.0

package workdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// logSinks holds the two logging destinations of an active context: the log
// file in the target directory (all levels down to the configured file
// level, Debug by default) and the console (Info and above by default).
type logSinks struct {
	console *log.Logger
	file    *log.Logger
	f       *os.File
}

func openSinks(dir string, o options) (*logSinks, error) {
	path := filepath.Join(dir, o.logFilename)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	file := log.NewWithOptions(f, log.Options{
		Level:           o.fileLevel,
		ReportTimestamp: true,
	})
	console := log.NewWithOptions(o.consoleWriter, log.Options{
		Level: o.consoleLevel,
	})

	return &logSinks{console: console, file: file, f: f}, nil
}

func (s *logSinks) log(level log.Level, msg string, keyvals ...any) {
	s.console.Log(level, msg, keyvals...)
	s.file.Log(level, msg, keyvals...)
}

func (s *logSinks) close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
