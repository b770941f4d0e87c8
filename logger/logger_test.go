package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{name: "JSON output mode", jsonOutput: true},
		{name: "Console output mode", jsonOutput: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			require.NoError(t, Initialize(tt.jsonOutput, VerbosityInfo))
			require.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)

			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestSetVerbosity(t *testing.T) {
	require.NoError(t, Initialize(false, VerbosityUser))
	defer func() { Logger = zap.NewNop().Sugar() }()

	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))

	SetVerbosity(VerbosityDebug)
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(5))
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(-1))

	assert.Equal(t, "User", LevelName(0))
	assert.Equal(t, "Info (-v)", LevelName(1))
	assert.Equal(t, "Debug (-vv)", LevelName(3))
}

func TestFieldsFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FieldsFromContext(ctx))

	ctx = WithJobID(ctx, "posting_job_1")
	ctx = WithRequestID(ctx, "req-9")
	ctx = WithComponent(ctx, "jobs")

	fields := FieldsFromContext(ctx)
	assert.Equal(t, []interface{}{
		FieldJobID, "posting_job_1",
		FieldRequestID, "req-9",
		FieldComponent, "jobs",
	}, fields)
}

func TestLoggerFromContextCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core).Sugar()
	defer func() { Logger = zap.NewNop().Sugar() }()

	ctx := WithJobID(context.Background(), "reply_job_3")
	LoggerFromContext(ctx).Infow("posted", FieldItemIndex, 0)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "posted", entries[0].Message)
	assert.Equal(t, "reply_job_3", entries[0].ContextMap()[FieldJobID])
	assert.EqualValues(t, 0, entries[0].ContextMap()[FieldItemIndex])
}

func TestComponentLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Logger = zap.New(core).Sugar()
	defer func() { Logger = zap.NewNop().Sugar() }()

	ChildLogger(ComponentLogger("poster"), FieldKind, "post").Debugw("waiting")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "poster", entries[0].LoggerName)
	assert.Equal(t, "post", entries[0].ContextMap()[FieldKind])
}

func TestPackageHelpersAreSafeWithNilLogger(t *testing.T) {
	Logger = nil
	defer func() { Logger = zap.NewNop().Sugar() }()

	assert.NotPanics(t, func() {
		Info("x")
		Infof("%s", "x")
		Infow("x")
		Warnw("x")
		Errorw("x")
		Debugw("x")
		Cleanup()
	})
}
