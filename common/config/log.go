package config

import (
	"strings"

	"go.uber.org/zap"
)

// ParseLogLevel accepts zap level names plus WARNING and CRITICAL, case
// insensitive.
func ParseLogLevel(level string) (zap.AtomicLevel, error) {
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "warning":
		return zap.NewAtomicLevelAt(zap.WarnLevel), nil
	case "critical":
		return zap.NewAtomicLevelAt(zap.DPanicLevel), nil
	default:
		return zap.ParseAtomicLevel(name)
	}
}
