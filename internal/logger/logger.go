package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the process-wide sugared logger. Init must be called before use;
// until then it points at a no-op logger so tests can run without setup.
var L = zap.NewNop().Sugar()

// Init configures the logger to write to both stdout and a file.
func Init(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	logFile, err := os.OpenFile(filepath.Join(logDir, "tenantql.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(logFile), zapcore.InfoLevel),
	)

	L = zap.New(core, zap.AddCaller()).Sugar()
	return nil
}

// Sync flushes buffered entries; safe to call on shutdown.
func Sync() {
	_ = L.Sync()
}
