package logger

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newFileWriter returns the writer for the main log file. Rotation is handled by
// lumberjack when MaxSize is set, otherwise the file is appended to as is.
func newFileWriter(cfg *FileOutput) (io.WriteCloser, error) {
	if err := ensureFileDirectory(cfg.Path); err != nil {
		return nil, err
	}

	if cfg.MaxSize <= 0 {
		const filePermissions = 0o600
		return os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermissions)
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxRotatedFiles,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}, nil
}
