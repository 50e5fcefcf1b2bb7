// Package service implements the equipment and maintenance use cases over the
// record store and the attachment store.
package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/domain"
	apperrors "labtrack.io/labtrack/internal/pkg/errors"
	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/pkg/metrics"
	"labtrack.io/labtrack/internal/pkg/worker"
	"labtrack.io/labtrack/internal/repository"
)

// DefaultDueWindowDays is the derived-status horizon.
const DefaultDueWindowDays = 30

// Option configures the services.
type Option func(*base)

// WithClock replaces time.Now.
func WithClock(clock domain.Clock) Option {
	return func(b *base) { b.clock = clock }
}

// WithEvents publishes committed changes to d.
func WithEvents(d *domain.EventDispatcher) Option {
	return func(b *base) { b.events = d }
}

// WithPools runs blob deletion fan-out on the files pool.
func WithPools(p *worker.Pools) Option {
	return func(b *base) { b.pools = p }
}

// WithMetrics records upload outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *base) { b.metrics = m }
}

// WithDueWindow sets the derived-status horizon in days.
func WithDueWindow(days int) Option {
	return func(b *base) { b.dueWindow = days }
}

// WithMaxFiles caps the attachments accepted per request.
func WithMaxFiles(n int) Option {
	return func(b *base) { b.maxFiles = n }
}

type base struct {
	clock     domain.Clock
	events    *domain.EventDispatcher
	pools     *worker.Pools
	metrics   *metrics.Metrics
	dueWindow int
	maxFiles  int
	validate  *validator.Validate
}

func newBase(opts []Option) base {
	b := base{
		clock:     time.Now,
		dueWindow: DefaultDueWindowDays,
		maxFiles:  10,
		validate:  newValidator(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) now() time.Time { return b.clock() }

func (b *base) timestamp() string { return domain.Timestamp(b.clock()) }

func (b *base) publish(ctx context.Context, events ...*domain.DomainEvent) {
	b.events.Publish(ctx, events...)
}

// filesPool returns the files pool or nil when pools are not configured.
func (b *base) filesPool() *worker.Pool {
	if b.pools == nil {
		return nil
	}
	return b.pools.Files
}

func (b *base) check(v any) error {
	if err := b.validate.Struct(v); err != nil {
		return apperrors.FromValidation(err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("labdate", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseDate(fl.Field().String())
		return ok
	})
	return v
}

// storeError maps repository failures onto API errors.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	var se *repository.StoreError
	if errors.As(err, &se) {
		if se.Op == "read" {
			logger.Error("Store read failed",
				zap.String("collection", se.Collection),
				zap.Error(se.Err),
			)
			return apperrors.StoreRead(err, se.Collection)
		}
		return apperrors.StoreWrite(err, se.Collection)
	}
	return err
}
