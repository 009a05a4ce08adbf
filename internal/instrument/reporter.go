package instrument

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrorReporter logs query failures that clients only see as a generic 500
// and counts them per endpoint.
type ErrorReporter struct {
	logger  *zap.Logger
	metrics *Metrics
}

func NewErrorReporter(logger *zap.Logger, m *Metrics) *ErrorReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorReporter{logger: logger, metrics: m}
}

func (r *ErrorReporter) Report(_ context.Context, endpoint, mode string, err error) {
	r.logger.Error("endpoint query failed",
		zap.String("endpoint", endpoint),
		zap.String("mode", mode),
		zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		zap.Error(err))
	if r.metrics != nil {
		r.metrics.QueryErrors.WithLabelValues(endpoint, mode).Inc()
	}
}
