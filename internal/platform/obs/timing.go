package obs

import (
	"time"

	"go.uber.org/zap"
)

// Time logs the duration (and outcome) of a named operation. Use it with
// a named error return:
//
//	defer obs.Time(logger, "gateway.Route")(&err)
func Time(logger *zap.Logger, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		fields := []zap.Field{
			zap.String("op", name),
			zap.Int64("dur_ms", time.Since(start).Milliseconds()),
		}
		if errp != nil && *errp != nil {
			logger.Warn("operation failed", append(fields, zap.Error(*errp))...)
			return
		}
		logger.Debug("operation done", fields...)
	}
}
