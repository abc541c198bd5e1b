// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 配置全局 zerolog：Unix 时间戳 + service 字段。
// 各服务在 main 中调用一次。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 从 context 中取出 logger；如果 context 里带有有效的 trace，
// 会自动附加 trace_id 字段，方便在 Jaeger 和日志之间互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zlog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &zlog.Logger
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		enriched := l.With().Str("trace_id", sc.TraceID().String()).Logger()
		return &enriched
	}
	return l
}

// WithContext 将 logger 存入 context，供下游 handler 使用。
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}
