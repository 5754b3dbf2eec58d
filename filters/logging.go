package filters

import (
	"io"
	"time"

	"github.com/kbukum/httpkit"
	"github.com/kbukum/httpkit/logger"
)

const loggingStartKey = "filters.logging.start"

// Logging is an access-log filter. It logs every attempt as it is sent and
// answered, and the exchange outcome once, with the attempt count and total
// duration.
type Logging struct {
	log *logger.Logger
}

// NewLogging creates a logging filter. A nil log falls back to the
// registered httpclient logger.
func NewLogging(log *logger.Logger) *Logging {
	if log == nil {
		log = logger.Get("httpclient")
	}
	return &Logging{log: log}
}

// OnRequest logs the attempt start.
func (l *Logging) OnRequest(ex *httpkit.Exchange, _ io.Writer) {
	if _, ok := ex.Value(loggingStartKey); !ok {
		ex.Set(loggingStartKey, time.Now())
	}
	l.log.WithContext(ex.Context()).Debug("request sent", logger.Fields(
		logger.FieldMethod, ex.Request.Method,
		logger.FieldURL, ex.Request.Path,
		logger.FieldAttempt, ex.Retries+1,
	))
}

// OnResponse logs the attempt outcome, warning on error statuses.
func (l *Logging) OnResponse(ex *httpkit.Exchange) {
	fields := logger.Fields(
		logger.FieldMethod, ex.Request.Method,
		logger.FieldURL, ex.Request.Path,
		logger.FieldStatus, ex.Response.StatusCode,
		logger.FieldAttempt, ex.Retries+1,
	)
	log := l.log.WithContext(ex.Context())
	if ex.Response.IsError() {
		log.Warn("request failed", fields)
		return
	}
	log.Info("request succeeded", fields)
}

// OnComplete logs the exchange outcome with the total duration.
func (l *Logging) OnComplete(ex *httpkit.Exchange) {
	fields := logger.Fields(
		logger.FieldMethod, ex.Request.Method,
		logger.FieldURL, ex.Request.Path,
		logger.FieldStatus, ex.Response.StatusCode,
		logger.FieldAttempt, ex.Retries+1,
	)
	if start, ok := ex.Value(loggingStartKey); ok {
		fields = logger.MergeWithDuration(fields, time.Since(start.(time.Time)))
	}
	l.log.WithContext(ex.Context()).Info("exchange complete", fields)
}
