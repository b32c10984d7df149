package osc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []string
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.mu.Lock()
	r.spans = append(r.spans, name)
	r.mu.Unlock()
	return r.Tracer.Start(ctx, name, opts...)
}

func (r *recordingTracer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spans)
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

func TestHandshakeSpans(t *testing.T) {
	tracer := &recordingTracer{}
	ch, opt := messageSink()
	srv := startTestServer(t, opt, WithTracerProvider(recordingProvider{tracer: tracer}))

	sendDatagram(t, srv.HandshakeAddr(), []byte("#bad"))
	sendMessage(t, srv.HandshakeAddr(), "/avatar/test")
	waitMessage(t, ch)

	// Data channel datagrams are not traced.
	sendMessage(t, srv.DataAddr(), "/avatar/test")

	assert.Eventually(t, func() bool { return tracer.count() == 2 }, time.Second, 10*time.Millisecond)
	tracer.mu.Lock()
	defer tracer.mu.Unlock()
	assert.Equal(t, []string{"osc.handshake", "osc.handshake"}, tracer.spans)
}
