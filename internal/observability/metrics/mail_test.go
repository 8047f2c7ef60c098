package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMetric struct {
	name  string
	value int64
	ms    time.Duration
	tags  map[string]string
}

type recordingSink struct {
	mu      sync.Mutex
	counts  []recordedMetric
	timings []recordedMetric
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, recordedMetric{name: name, value: value, tags: tags})
}

func (r *recordingSink) Gauge(string, float64, map[string]string) {}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings = append(r.timings, recordedMetric{name: name, ms: value, tags: tags})
}

func TestEmitMailDelivery(t *testing.T) {
	sink := &recordingSink{}

	EmitMailDelivery(sink, MailDelivery{Result: ResultSuccess, Duration: 120 * time.Millisecond})

	require.Len(t, sink.counts, 1)
	assert.Equal(t, "mail.delivery", sink.counts[0].name)
	assert.Equal(t, ResultSuccess, sink.counts[0].tags["result"])
	require.Len(t, sink.timings, 1)
	assert.Equal(t, 120*time.Millisecond, sink.timings[0].ms)
}

func TestEmitMailDeliverySkipsZeroDuration(t *testing.T) {
	sink := &recordingSink{}

	EmitMailDelivery(sink, MailDelivery{Result: ResultError})

	require.Len(t, sink.counts, 1)
	assert.Empty(t, sink.timings)
}

func TestEmitHTTPRequestStatusClasses(t *testing.T) {
	sink := &recordingSink{}

	EmitHTTPRequest(sink, HTTPRequest{Method: "GET", Status: 204, Duration: time.Millisecond})
	EmitHTTPRequest(sink, HTTPRequest{Method: "POST", Status: 404})
	EmitHTTPRequest(sink, HTTPRequest{Method: "PUT", Status: 502})

	require.Len(t, sink.counts, 3)
	assert.Equal(t, "2xx", sink.counts[0].tags["status"])
	assert.Equal(t, "4xx", sink.counts[1].tags["status"])
	assert.Equal(t, "5xx", sink.counts[2].tags["status"])
}

func TestEmitWithNilSinkIsNoop(t *testing.T) {
	EmitMailDelivery(nil, MailDelivery{Result: ResultSuccess})
	EmitHTTPRequest(nil, HTTPRequest{Method: "GET", Status: 200})
}
