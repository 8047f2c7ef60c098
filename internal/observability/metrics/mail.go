// Package metrics centralises metric names and tagging so emit sites
// stay consistent across the codebase.
package metrics

import (
	"time"

	"github.com/tasknest/tasknest/internal/observability/statsd"
)

// Result values used for the "result" tag.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// MailDelivery captures one outbox delivery attempt.
type MailDelivery struct {
	Result   string
	Duration time.Duration
}

// EmitMailDelivery records a delivery attempt counter and its latency.
func EmitMailDelivery(sink statsd.Sink, in MailDelivery) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": in.Result}
	sink.Count("mail.delivery", 1, tags)
	if in.Duration > 0 {
		sink.Timing("mail.delivery_ms", in.Duration, tags)
	}
}

// HTTPRequest captures one served HTTP request.
type HTTPRequest struct {
	Method   string
	Status   int
	Duration time.Duration
}

// EmitHTTPRequest records request count and latency tagged by method and
// status class (2xx, 4xx, ...). Paths are deliberately not tagged to keep
// metric cardinality bounded.
func EmitHTTPRequest(sink statsd.Sink, in HTTPRequest) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"method": in.Method,
		"status": statusClass(in.Status),
	}
	sink.Count("http.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("http.request_ms", in.Duration, tags)
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
