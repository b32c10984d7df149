package osc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultBufferSize is the receive buffer size of both endpoints. Larger
// datagrams are dropped.
const DefaultBufferSize = 1024

const tracerName = "github.com/benaclejames/OSC-HSL/osc"

// Server owns a handshake endpoint, answering roster queries and reporting
// OSC messages, and a data endpoint whose messages go to a Dispatcher.
//
// Each endpoint is read by its own goroutine. A datagram that fails to
// decode is logged and dropped; only socket errors stop a loop.
type Server struct {
	// ID identifies this server instance in logs and metrics.
	ID string

	opts      options
	handshake *net.UDPConn
	data      *net.UDPConn
	status    []byte // encoded OpStatus operation, read-only after Start
	log       *slog.Logger
	metrics   *metrics
	tracer    trace.Tracer
	limiter   *rate.Limiter

	closed atomic.Bool
	wg     sync.WaitGroup
	errMu  sync.Mutex
	err    error
}

type options struct {
	logger         *slog.Logger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	capture        *CaptureWriter
	dispatcher     *Dispatcher
	onMessage      func(*Message, *net.UDPAddr)
	onOperation    func(*Operation, *net.UDPAddr)
	extraApps      []AppInfo
	additionalData []byte
	replyLimit     rate.Limit
	replyBurst     int
	bufferSize     int
}

// Option configures a Server.
type Option func(*options)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the server metrics with reg. Default: no
// registration.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTracerProvider sets the provider used for per-datagram spans.
// Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithCapture records every handshake datagram, valid or not, to cw.
func WithCapture(cw *CaptureWriter) Option {
	return func(o *options) { o.capture = cw }
}

// WithDispatcher routes data channel messages to d.
func WithDispatcher(d *Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// OnMessage is called from the handshake loop for every OSC message decoded
// on the handshake endpoint.
func OnMessage(fn func(msg *Message, from *net.UDPAddr)) Option {
	return func(o *options) { o.onMessage = fn }
}

// OnOperation is called from the handshake loop for every handshake
// operation other than OpQuery.
func OnOperation(fn func(op *Operation, from *net.UDPAddr)) Option {
	return func(o *options) { o.onOperation = fn }
}

// WithApps appends apps to the advertised roster after the server's own app.
func WithApps(apps ...AppInfo) Option {
	return func(o *options) { o.extraApps = append(o.extraApps, apps...) }
}

// WithAdditionalData sets the opaque bytes sent after the roster.
func WithAdditionalData(data []byte) Option {
	return func(o *options) { o.additionalData = append([]byte(nil), data...) }
}

// WithReplyLimit limits status replies to limit per second with the given
// burst. Default: rate.Inf.
func WithReplyLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.replyLimit = limit
		o.replyBurst = burst
	}
}

// WithBufferSize sets the receive buffer size.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// Start binds the handshake endpoint on bindAddr:handshakePort and the data
// endpoint on bindAddr:dataPort, then starts one receive loop per endpoint.
// A port of 0 picks an ephemeral port. If either bind fails a *BindError is
// returned and nothing is left running.
func Start(app AppInfo, bindAddr string, dataPort, handshakePort int, opts ...Option) (*Server, error) {
	o := options{
		logger:     slog.Default(),
		replyLimit: rate.Inf,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.dispatcher == nil {
		o.dispatcher = NewDispatcher()
	}

	// The roster is copied so the caller can reuse its slices.
	apps := make([]AppInfo, 0, 1+len(o.extraApps))
	apps = append(apps, app)
	apps = append(apps, o.extraApps...)
	payload, err := (&Status{Apps: apps, AdditionalData: o.additionalData}).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode status: %w", err)
	}
	status, _ := (&Operation{Opcode: OpStatus, Payload: payload}).MarshalBinary()

	id := uuid.NewString()
	s := &Server{
		ID:      id,
		opts:    o,
		status:  status,
		log:     o.logger.With("server_id", id),
		metrics: newMetrics(o.registerer, id),
		tracer:  o.tracerProvider.Tracer(tracerName),
		limiter: rate.NewLimiter(o.replyLimit, o.replyBurst),
	}

	s.handshake, err = listenUDP(bindAddr, handshakePort)
	if err != nil {
		return nil, err
	}
	s.log.Info("listening for handshakes", "addr", s.handshake.LocalAddr().String())

	s.data, err = listenUDP(bindAddr, dataPort)
	if err != nil {
		s.handshake.Close()
		return nil, err
	}
	s.log.Info("listening for packets", "addr", s.data.LocalAddr().String())

	s.wg.Add(2)
	go s.serve(s.handshake, channelHandshake, s.handleHandshake)
	go s.serve(s.data, channelData, s.handleData)

	return s, nil
}

func listenUDP(host string, port int) (*net.UDPConn, error) {
	hostport := net.JoinHostPort(host, strconv.Itoa(port))
	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return nil, &BindError{Addr: hostport, Err: err}
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, &BindError{Addr: hostport, Err: err}
	}
	return conn, nil
}

// HandshakeAddr returns the bound handshake endpoint address.
func (s *Server) HandshakeAddr() *net.UDPAddr {
	return s.handshake.LocalAddr().(*net.UDPAddr)
}

// DataAddr returns the bound data endpoint address.
func (s *Server) DataAddr() *net.UDPAddr {
	return s.data.LocalAddr().(*net.UDPAddr)
}

// Wait blocks until both receive loops have exited and returns the first
// socket error that stopped one of them. After Close it returns nil.
func (s *Server) Wait() error {
	s.wg.Wait()
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close closes both endpoints, which stops the receive loops.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return errors.Join(s.handshake.Close(), s.data.Close())
}

// serve reads datagrams from conn until it is closed or fails.
func (s *Server) serve(conn *net.UDPConn, channel string, handle func([]byte, *net.UDPAddr)) {
	defer s.wg.Done()

	// One spare byte detects datagrams larger than the buffer.
	buf := make([]byte, s.opts.bufferSize+1)
	var tempDelay time.Duration
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if s.closed.Load() {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			s.log.Error("receive loop stopped", "channel", channel, "error", err)
			s.setErr(fmt.Errorf("%s loop: %w", channel, err))
			return
		}
		tempDelay = 0

		s.metrics.datagrams.WithLabelValues(channel).Inc()
		if n > s.opts.bufferSize {
			s.dropped(channel, addr, fmt.Errorf("datagram exceeds %d bytes: %w",
				s.opts.bufferSize, ErrTruncatedMessage))
			continue
		}
		handle(buf[:n], addr)
	}
}

func (s *Server) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Server) dropped(channel string, from *net.UDPAddr, err error) {
	kind := ErrorKind(err)
	s.metrics.decodeErrors.WithLabelValues(channel, kind).Inc()
	s.log.Warn("dropping datagram", "channel", channel, "from", from.String(), "kind", kind, "error", err)
}

// handleHandshake classifies a handshake datagram by its first byte: '#'
// starts a handshake operation, anything else must be an OSC message.
func (s *Server) handleHandshake(data []byte, from *net.UDPAddr) {
	_, span := s.tracer.Start(context.Background(), "osc.handshake",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("net.peer.addr", from.String()),
			attribute.Int("osc.datagram.size", len(data)),
		))
	defer span.End()

	if s.opts.capture != nil {
		if err := s.opts.capture.WriteDatagram(data); err != nil {
			s.log.Warn("capture failed", "error", err)
		}
	}

	fail := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
		s.dropped(channelHandshake, from, err)
	}

	if len(data) > 0 && data[0] == '#' {
		op, err := ParseOperation(data)
		if err != nil {
			fail(err)
			return
		}
		span.SetAttributes(attribute.String("osc.opcode", op.Opcode.String()))
		s.metrics.operations.WithLabelValues(op.Opcode.String()).Inc()
		s.handleOperation(op, from)
		return
	}

	msg, err := ParseMessage(data)
	if err != nil {
		fail(err)
		return
	}
	span.SetAttributes(attribute.String("osc.address", msg.Address))
	s.log.Info("received osc message", "address", msg.Address, "from", from.String())
	if s.opts.onMessage != nil {
		s.opts.onMessage(msg, from)
	}
}

func (s *Server) handleOperation(op *Operation, from *net.UDPAddr) {
	if op.Opcode != OpQuery {
		s.log.Debug("received handshake operation", "opcode", op.Opcode.String(), "from", from.String())
		if s.opts.onOperation != nil {
			s.opts.onOperation(op, from)
		}
		return
	}

	if !s.limiter.Allow() {
		s.metrics.throttled.Inc()
		s.log.Debug("status reply throttled", "to", from.String())
		return
	}
	if _, err := s.handshake.WriteToUDP(s.status, from); err != nil {
		s.log.Warn("failed to send status", "to", from.String(), "error", err)
		return
	}
	s.metrics.replies.Inc()
	s.log.Debug("sent status", "to", from.String())
}

func (s *Server) handleData(data []byte, from *net.UDPAddr) {
	msg, err := ParseMessage(data)
	if err != nil {
		s.dropped(channelData, from, err)
		return
	}
	if s.opts.dispatcher.Dispatch(msg) == 0 {
		s.log.Debug("no handler for message", "address", msg.Address, "from", from.String())
	}
}
