package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/core/domain"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultStoreTimeout bounds store work when the caller set no deadline
const DefaultStoreTimeout = 5 * time.Second

var tracer = otel.Tracer("village-registry/internal/core/services")

// withStoreTimeout applies d unless ctx already carries a deadline
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// isTransient reports failures worth retrying later
func isTransient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone)
}

// storeError translates a repository error into a domain error
func storeError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case repositories.IsNotFound(err):
		return errors.Wrap(domain.ErrNotFound, msg)
	case repositories.IsDuplicate(err):
		return errors.Wrap(domain.ErrDuplicateEntry, msg)
	case isTransient(err):
		return errors.Wrapf(domain.ErrTransientStore, "%s: %v", msg, err)
	default:
		return errors.Wrap(err, msg)
	}
}

// endSpan records err on span before ending it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
