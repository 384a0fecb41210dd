package logx

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMask(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: "########"},
		{name: "short", raw: "abcdefghijklm", want: "########"},
		{name: "token", raw: "U2FsdGVkX1abcdefghijklmnop==", want: "U2FsdG########op=="},
		{name: "multibyte", raw: "ключ-ключ-ключ-ключ", want: "ключ-к########ключ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mask(tt.raw))
		})
	}
}

func TestSecret_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("verify", "token", Secret("U2FsdGVkX1abcdefghijklmnop=="))

	assert.Contains(t, buf.String(), "U2FsdG########op==")
	assert.NotContains(t, buf.String(), "abcdefghijklmnop")
}
