package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger: colored console output in development,
// JSON in production, plus a JSON file sink under logDir when it can be
// created. A broken log dir never blocks startup.
func New(dev bool, logDir string) *zap.Logger {
	level := zap.InfoLevel
	if dev {
		level = zap.DebugLevel
	}

	var consoleEnc zapcore.Encoder
	if dev {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		consoleEnc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stdout), level),
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(logDir, "app.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
				cores = append(cores, zapcore.NewCore(fileEnc, zapcore.Lock(f), level))
			}
		}
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
