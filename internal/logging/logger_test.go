package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/learnd/internal/config"
	"github.com/fyrsmithlabs/learnd/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestLogger_WritesServiceAndContextFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	logger, err := NewLoggerWithWriter(cfg, &buf)
	require.NoError(t, err)

	ctx := WithInteractionID(context.Background(), "int-1")
	ctx = WithRequestID(ctx, "req-9")
	logger.Info(ctx, "interaction processed", zap.Int("insights", 2))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "learnd", lines[0]["service"])
	assert.Equal(t, "int-1", lines[0]["interaction.id"])
	assert.Equal(t, "req-9", lines[0]["request.id"])
	assert.Equal(t, float64(2), lines[0]["insights"])
}

func TestLogger_BridgesToOTELProvider(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Output.OTEL = true

	var buf bytes.Buffer
	logger, err := newLogger(cfg, tel.LoggerProvider(), &buf)
	require.NoError(t, err)

	logger.Info(context.Background(), "learning state saved", zap.Int("insights", 4))

	assert.Equal(t, []string{"learning state saved"}, tel.LogRecorder.Bodies())
	assert.Len(t, decodeLines(t, &buf), 1, "stdout output is kept alongside the bridge")
}

func TestLogger_OTELOnlyWithoutProviderFails(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Stdout = false
	cfg.Output.OTEL = true

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	logger, err := NewLoggerWithWriter(cfg, &buf)
	require.NoError(t, err)

	logger.Info(context.Background(), "stored",
		zap.String("content", "I love quantum physics"),
		zap.String("target", "postgres://user:hunter2@db/learnd"),
		zap.String("category", "topic_interest"),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED]", lines[0]["content"])
	assert.Equal(t, "[REDACTED:pattern]", lines[0]["target"])
	assert.Equal(t, "topic_interest", lines[0]["category"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestLogger_TraceLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Level = TraceLevel
	logger, err := NewLoggerWithWriter(cfg, &buf)
	require.NoError(t, err)

	logger.Trace(context.Background(), "reinforcement scored")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])

	buf.Reset()
	cfg2 := NewDefaultConfig()
	cfg2.Sampling.Enabled = false
	quiet, err := NewLoggerWithWriter(cfg2, &buf)
	require.NoError(t, err)
	quiet.Trace(context.Background(), "dropped")
	assert.Empty(t, buf.String())
}

func TestLogger_SamplingKeepsErrors(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Sampling.Initial = 1
	cfg.Sampling.Thereafter = 1000
	logger, err := NewLoggerWithWriter(cfg, &buf)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		logger.Info(context.Background(), "repeated")
		logger.Error(context.Background(), "failure")
	}

	var infos, errs int
	for _, line := range decodeLines(t, &buf) {
		switch line["msg"] {
		case "repeated":
			infos++
		case "failure":
			errs++
		}
	}
	assert.Equal(t, 1, infos)
	assert.Equal(t, 5, errs)
}

func TestContextFields_Trace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tl := NewTestLogger()
	tl.Info(ctx, "traced")
	tl.AssertTraceCorrelation(t, "traced")
	tl.AssertField(t, "traced", "trace_id", traceID.String())
}

func TestWithID_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { WithInteractionID(context.Background(), "") })
	assert.Panics(t, func() { WithSessionID(context.Background(), "has space") })
	assert.Panics(t, func() { WithRequestID(context.Background(), strings.Repeat("a", 200)) })
	assert.NotPanics(t, func() { WithSessionID(context.Background(), "user:42") })
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Warn(ctx, "from context")
	tl.AssertLogged(t, zapcore.WarnLevel, "from context")
}

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "connecting", Secret("dsn", config.Secret("postgres://u:p@h/db")))
	tl.AssertNoSecrets(t)
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Redaction.Patterns = []string{"("}
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Output.Stdout = false
	assert.Error(t, cfg.Validate())

	assert.NoError(t, NewDefaultConfig().Validate())
}

func TestFromObservability(t *testing.T) {
	cfg, err := FromObservability(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console", ServiceName: "learnd-test"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "learnd-test", cfg.Fields["service"])

	assert.False(t, cfg.Output.OTEL)

	cfg, err = FromObservability(config.ObservabilityConfig{})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)

	cfg, err = FromObservability(config.ObservabilityConfig{EnableTelemetry: true, ServiceName: "learnd"})
	require.NoError(t, err)
	assert.True(t, cfg.Output.OTEL)

	_, err = FromObservability(config.ObservabilityConfig{LogLevel: "loud"})
	assert.Error(t, err)

	_, err = FromObservability(config.ObservabilityConfig{LogFormat: "xml"})
	assert.Error(t, err)
}
