package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// QueryLogger writes GORM statements to zap, tagged with the request, job,
// order and trace ids found in the statement's context.
type QueryLogger struct {
	log    *zap.Logger
	level  gormlogger.LogLevel
	config QueryLoggerConfig
}

// QueryLoggerConfig tunes statement logging
type QueryLoggerConfig struct {
	// Level is the application log level, mapped by QueryLevel
	Level string
	// SlowThreshold flags slower statements; zero disables the check
	SlowThreshold time.Duration
	// MaxSQLLength truncates logged statements; zero logs them whole
	MaxSQLLength int
}

var _ gormlogger.Interface = (*QueryLogger)(nil)

// NewQueryLogger creates a GORM logger backed by zap
func NewQueryLogger(log *zap.Logger, cfg QueryLoggerConfig) *QueryLogger {
	return &QueryLogger{
		log:    log.Named("sql"),
		level:  QueryLevel(cfg.Level),
		config: cfg,
	}
}

// QueryLevel maps the application log level to what GORM reports.
// Individual statements are only logged at debug; slow statements from warn.
func QueryLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// LogMode implements gormlogger.Interface
func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *QueryLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.With(correlationFields(ctx)...).Sugar().Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.With(correlationFields(ctx)...).Sugar().Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (l *QueryLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.With(correlationFields(ctx)...).Sugar().Errorf(msg, data...)
	}
}

// Trace implements gormlogger.Interface. A missing row is not a failure.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	slow := l.config.SlowThreshold > 0 && elapsed >= l.config.SlowThreshold

	switch {
	case failed && l.level >= gormlogger.Error:
		l.log.Error("Query failed", l.statementFields(ctx, elapsed, fc, zap.Error(err))...)
	case slow && l.level >= gormlogger.Warn:
		l.log.Warn("Slow query", l.statementFields(ctx, elapsed, fc,
			zap.Duration("threshold", l.config.SlowThreshold))...)
	case l.level >= gormlogger.Info:
		l.log.Debug("Query", l.statementFields(ctx, elapsed, fc)...)
	}
}

func (l *QueryLogger) statementFields(ctx context.Context, elapsed time.Duration, fc func() (string, int64), extra ...zap.Field) []zap.Field {
	sql, rows := fc()
	if limit := l.config.MaxSQLLength; limit > 0 && len(sql) > limit {
		sql = sql[:limit] + "..."
	}
	fields := append(correlationFields(ctx),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
	return append(fields, extra...)
}

// correlationFields collects the ids a sync carries through its context
func correlationFields(ctx context.Context) []zap.Field {
	ids := []struct{ key, value string }{
		{string(RequestIDKey), GetRequestID(ctx)},
		{string(JobIDKey), GetJobID(ctx)},
		{string(OrderIDKey), GetOrderID(ctx)},
		{"trace_id", GetTraceID(ctx)},
	}
	fields := make([]zap.Field, 0, len(ids)+4)
	for _, id := range ids {
		if id.value != "" {
			fields = append(fields, zap.String(id.key, id.value))
		}
	}
	return fields
}
