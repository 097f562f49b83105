package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds database span settings.
type DBTracingConfig struct {
	Enabled         bool
	DBSystem        string // postgresql, sqlite
	LogFullSQL      bool   // include bound variables; development only
	SlowQueryThresh time.Duration
}

// DefaultSlowQueryThreshold marks a statement as slow in its span.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm on db plus callbacks that tag rows
// affected, table and slow statements on the active span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultSlowQueryThreshold
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := markQueryStart
	after := func(tx *gorm.DB) { annotateStatement(tx, cfg.SlowQueryThresh) }

	cb := db.Callback()
	regs := []error{
		cb.Create().Before("gorm:create").Register("madas_timing:before_create", before),
		cb.Query().Before("gorm:query").Register("madas_timing:before_query", before),
		cb.Update().Before("gorm:update").Register("madas_timing:before_update", before),
		cb.Delete().Before("gorm:delete").Register("madas_timing:before_delete", before),
		cb.Row().Before("gorm:row").Register("madas_timing:before_row", before),
		cb.Raw().Before("gorm:raw").Register("madas_timing:before_raw", before),
		cb.Create().After("gorm:create").Register("madas_timing:after_create", after),
		cb.Query().After("gorm:query").Register("madas_timing:after_query", after),
		cb.Update().After("gorm:update").Register("madas_timing:after_update", after),
		cb.Delete().After("gorm:delete").Register("madas_timing:after_delete", after),
		cb.Row().After("gorm:row").Register("madas_timing:after_row", after),
		cb.Raw().After("gorm:raw").Register("madas_timing:after_raw", after),
	}
	if err := errors.Join(regs...); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", cfg.DBSystem),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markQueryStart(tx *gorm.DB) {
	if tx.Statement.Context != nil {
		tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
	}
}

func annotateStatement(tx *gorm.DB, slow time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
		span.RecordError(tx.Error)
	}

	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		if elapsed := time.Since(start); elapsed > slow {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
