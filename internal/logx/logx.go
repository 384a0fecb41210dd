// Package logx configures structured logging and keeps secrets out of log records.
package logx

import (
	"io"
	"log/slog"
	"strings"
)

const (
	maskRunes   = 8
	shownPrefix = 6
	shownSuffix = 4
)

// Mask hides the middle of raw. Values too short to keep both ends visible are hidden completely.
func Mask(raw string) string {
	runes := []rune(raw)
	if len(runes) < shownPrefix+shownSuffix+maskRunes {
		return strings.Repeat("#", maskRunes)
	}
	return string(runes[:shownPrefix]) + strings.Repeat("#", maskRunes) + string(runes[len(runes)-shownSuffix:])
}

// Secret is a string that is masked whenever it is logged
type Secret string

var _ slog.LogValuer = Secret("")

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(Mask(string(s)))
}

// Setup installs a JSON logger writing to w at level as the process default
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
