package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level), logs
}

func fastQuery(sql string) func() (string, int64) {
	return func() (string, int64) {
		return sql, 1
	}
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Warn)

	clone := gl.LogMode(gormlogger.Silent)

	require.NotSame(t, gl, clone)
	assert.Equal(t, gormlogger.Warn, gl.logLevel)
}

func TestGormLogger_LevelGating(t *testing.T) {
	ctx := context.Background()

	t.Run("info suppressed below info level", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn)
		gl.Info(ctx, "migrating %s", "users")
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("warn passes at warn level", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn)
		gl.Warn(ctx, "retrying %s", "tx")
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("error passes at error level", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error)
		gl.Error(ctx, "connect failed")
		assert.Equal(t, 1, logs.Len())
	})
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("failed statement logs at error", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error)

		gl.Trace(ctx, time.Now(), fastQuery("INSERT INTO token_ledger"), errors.New("constraint violated"))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.Equal(t, "sql failed", entry.Message)
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error)

		gl.Trace(ctx, time.Now(), fastQuery("SELECT * FROM token_balances"), gormlogger.ErrRecordNotFound)

		assert.Equal(t, 0, logs.Len())
	})

	t.Run("slow statement logs at warn", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn)

		begin := time.Now().Add(-2 * slowQueryThreshold)
		gl.Trace(ctx, begin, fastQuery("SELECT * FROM token_ledger"), nil)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.Equal(t, "slow sql", entry.Message)
	})

	t.Run("fast statement logs at debug when info enabled", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Info)

		gl.Trace(ctx, time.Now(), fastQuery("SELECT 1"), nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	})

	t.Run("silent level drops everything", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Silent)

		gl.Trace(ctx, time.Now(), fastQuery("SELECT 1"), errors.New("ignored"))

		assert.Equal(t, 0, logs.Len())
	})

	t.Run("request id from context is attached", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error)
		ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-sql-1")

		gl.Trace(ctx, time.Now(), fastQuery("UPDATE token_balances"), errors.New("boom"))

		require.Equal(t, 1, logs.Len())
		found := false
		for _, f := range logs.All()[0].Context {
			if f.Key == "request_id" {
				found = true
				assert.Equal(t, "req-sql-1", f.String)
			}
		}
		assert.True(t, found)
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
		{"bogus", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
