package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New construit le logger zap du service.
// En développement la sortie est lisible en console, sinon en JSON.
func New(level, environment string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "development" || environment == "test" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	return cfg.Build()
}

// ParseLevel convertit un niveau textuel en niveau zap (info par défaut)
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// OrNop retourne un logger utilisable même si l'appelant n'en fournit pas
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
