package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

// queryLogger routes GORM diagnostics into the service logger. Only slow
// statements and real failures are written; record-not-found is a normal
// lookup outcome for the ledger and stays silent.
type queryLogger struct {
	logg  *logger.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) *queryLogger {
	level := gormlogger.Warn
	if logg == nil {
		level = gormlogger.Silent
	}
	return &queryLogger{logg: logg, slow: slow, level: level}
}

func (q *queryLogger) on(level gormlogger.LogLevel) bool {
	return q.logg != nil && q.level >= level
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.on(gormlogger.Info) {
		q.logg.Info(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.on(gormlogger.Warn) {
		q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.on(gormlogger.Error) {
		q.logg.Error(ctx, fmt.Sprintf(msg, args...), nil)
	}
}

// Trace never logs bound values; statements may carry amounts and ids
// tied to a user, the SQL text with placeholders is enough.
func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if !q.on(gormlogger.Error) {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		q.logg.Error(q.fields(ctx, sql, rows, elapsed), "database statement failed", err)
	case q.slow > 0 && elapsed > q.slow && q.on(gormlogger.Warn):
		sql, rows := fc()
		q.logg.Warn(q.fields(ctx, sql, rows, elapsed), "slow database statement")
	case q.on(gormlogger.Info):
		sql, rows := fc()
		q.logg.Debug(q.fields(ctx, sql, rows, elapsed), "database statement")
	}
}

// ParamsFilter keeps bound values out of the SQL text handed to Trace.
func (q *queryLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

func (q *queryLogger) fields(ctx context.Context, sql string, rows int64, elapsed time.Duration) context.Context {
	return q.logg.WithFields(ctx, map[string]any{
		"sql":        sql,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}
