package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingBeforeInitIsNoop(t *testing.T) {
	require.NotNil(t, GetLogger())
	Info(context.Background(), "before init")
	Warn(nil, "nil context")
}

func TestWithContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	orig := log
	log = zap.New(core)
	t.Cleanup(func() { log = orig })

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, TenantIDKey, "tenant-1")
	ctx = context.WithValue(ctx, HandlerIDKey, "payos_settlement")
	Warn(ctx, "settlement webhook status not recognized", zap.String("status", "on_hold"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, "tenant-1", fields["tenant_id"])
	require.Equal(t, "payos_settlement", fields["handler_id"])
	require.Equal(t, "on_hold", fields["status"])
}

func TestWithContextPrefersGinRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	orig := log
	log = zap.New(core)
	t.Cleanup(func() { log = orig })

	ctx := context.WithValue(context.Background(), "request_id", "gin-req")
	LogRequest(ctx, "GET", "/health", 200, 10*time.Millisecond, "127.0.0.1")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "gin-req", entries[0].ContextMap()["request_id"])
	require.Equal(t, int64(200), entries[0].ContextMap()["status"])
}

func TestInit_DevelopmentAndProduction(t *testing.T) {
	orig := log
	t.Cleanup(func() {
		log = orig
		once = sync.Once{}
	})

	once = sync.Once{}
	Init("production")
	require.NotNil(t, GetLogger())
	SetLevel(zapcore.WarnLevel)
	Debug(context.Background(), "filtered")

	once = sync.Once{}
	Init("development")
	require.NotNil(t, GetLogger())
	require.NotNil(t, WithContext(context.Background()))
	Sync()
}
