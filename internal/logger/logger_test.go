package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var log Logger = &zapLogger{logger: zap.New(core)}

	cycle := log.With(String("run_id", "r-1"))
	cycle.Debug("dropped")
	cycle.Info("cycle done", Int("inserted", 2))
	cycle.Error("cycle failed", Error(errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "cycle done", entries[0].Message)
	assert.Equal(t, "r-1", entries[0].ContextMap()["run_id"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["inserted"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNewAndNop(t *testing.T) {
	log, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	log.Info("started")

	nop := NewNop()
	nop.With(Bool("ok", true)).Warn("ignored")
	assert.NoError(t, nop.Sync())
}
