// Package ethereum provides node-facing infrastructure adapters for the
// blockchain context.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashloan-bot/business/blockchain/app"
	"github.com/fd1az/flashloan-bot/business/blockchain/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
	"github.com/fd1az/flashloan-bot/internal/circuitbreaker"
	"github.com/fd1az/flashloan-bot/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashloan-bot/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/flashloan-bot/business/blockchain/infra/ethereum"
)

// SubscriberConfig holds connection settings for the block subscriber.
type SubscriberConfig struct {
	WSURL          string        // WebSocket endpoint (primary)
	HTTPURL        string        // HTTP endpoint (polling fallback)
	PollInterval   time.Duration // HTTP polling cadence
	InitialBackoff time.Duration // first WS reconnect delay
	MaxBackoff     time.Duration // backoff ceiling
	BufferSize     int           // block channel buffer size
}

// DefaultSubscriberConfig returns sensible defaults for mainnet cadence.
func DefaultSubscriberConfig(wsURL, httpURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   12 * time.Second, // ~1 block time
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		BufferSize:     16,
	}
}

// subscriberMetrics holds OTEL metric instruments.
type subscriberMetrics struct {
	blocksReceived  metric.Int64Counter
	subscribeErrors metric.Int64Counter
	pollingFallback metric.Int64Counter
	connectionState metric.Int64Gauge
}

// Subscriber implements BlockSubscriber with a WebSocket newHeads
// subscription as primary source and HTTP header polling as fallback.
// WS reconnects are retried with exponential backoff; while a retry is
// pending the poller keeps blocks flowing.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface

	wsClient   *ethclient.Client
	httpClient *ethclient.Client
	clientMu   sync.RWMutex

	state      domain.ConnectionState
	stateMu    sync.RWMutex
	polling    atomic.Bool
	lastBlock  atomic.Uint64
	reconnects atomic.Int32

	blocks  chan *domain.Block
	done    chan struct{}
	closed  atomic.Bool
	closeMu sync.Mutex

	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// Ensure Subscriber implements BlockSubscriber.
var _ app.BlockSubscriber = (*Subscriber)(nil)

// NewSubscriber creates a block subscriber.
func NewSubscriber(cfg SubscriberConfig, log logger.LoggerInterface) (*Subscriber, error) {
	if cfg.WSURL == "" && cfg.HTTPURL == "" {
		return nil, errors.New("subscriber needs a ws or http url")
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		state:  domain.StateDisconnected,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		done:   make(chan struct{}),
		httpCB: circuitbreaker.New[*types.Header](circuitbreaker.DefaultConfig("eth-http")),
		tracer: otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total blocks received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total subscription and polling errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.pollingFallback, err = meter.Int64Counter(
		"eth_polling_fallback_total",
		metric.WithDescription("Times the HTTP polling fallback took over"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("Connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	return err
}

// Subscribe starts the block feed. The returned channel stays open across
// reconnects and fallback switches; it closes only on Close.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.subscribe",
		trace.WithAttributes(
			attribute.String("ws_url", s.config.WSURL),
			attribute.String("http_url", s.config.HTTPURL),
		),
	)
	defer span.End()

	if s.closed.Load() {
		err := errors.New("subscriber is closed")
		span.RecordError(err)
		return nil, err
	}

	s.setState(domain.StateConnecting)

	if s.config.HTTPURL != "" {
		client, err := ethclient.DialContext(ctx, s.config.HTTPURL)
		if err != nil {
			span.RecordError(err)
		} else {
			s.clientMu.Lock()
			s.httpClient = client
			s.clientMu.Unlock()
		}
	}

	s.clientMu.RLock()
	httpReady := s.httpClient != nil
	s.clientMu.RUnlock()

	if s.config.WSURL == "" && !httpReady {
		s.setState(domain.StateDisconnected)
		return nil, apperror.New(apperror.CodeRPCConnectionFailed,
			apperror.WithContext("no usable endpoint"))
	}

	go s.run(ctx)

	span.SetStatus(codes.Ok, "subscribed")
	return s.blocks, nil
}

// run owns the WS session lifecycle. Each failed session falls back to the
// poller for one backoff window, then WS is retried. A successful session
// resets the backoff.
func (s *Subscriber) run(ctx context.Context) {
	backoff := s.config.InitialBackoff

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if s.config.WSURL != "" {
			if err := s.serveWS(ctx); err == nil {
				// Clean shutdown.
				return
			}
			s.reconnects.Add(1)
			s.setState(domain.StateReconnecting)
		}

		s.pollFor(ctx, backoff)

		backoff *= 2
		if backoff > s.config.MaxBackoff {
			backoff = s.config.MaxBackoff
		}
		if s.config.WSURL == "" {
			backoff = s.config.MaxBackoff
		}
	}
}

// serveWS dials the WS endpoint, subscribes to newHeads and drains headers
// until the subscription errors or the subscriber stops. A nil return
// means deliberate shutdown.
func (s *Subscriber) serveWS(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, s.config.WSURL)
	if err != nil {
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "ws dial failed", "error", err)
		return err
	}

	s.clientMu.Lock()
	s.wsClient = client
	s.clientMu.Unlock()

	headers := make(chan *types.Header, s.config.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "subscribe new heads failed", "error", err)
		client.Close()
		return err
	}
	defer sub.Unsubscribe()

	s.polling.Store(false)
	s.setState(domain.StateConnected)
	s.logger.Info(ctx, "subscribed to new heads via ws")

	for {
		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			if err != nil {
				s.metrics.subscribeErrors.Add(ctx, 1)
				s.logger.Error(ctx, "ws subscription dropped", "error", err)
			}
			return fmt.Errorf("subscription ended: %w", err)
		case header := <-headers:
			if header != nil {
				s.emitHeader(ctx, header, false)
			}
		}
	}
}

// pollFor serves blocks from the HTTP endpoint for the given window.
func (s *Subscriber) pollFor(ctx context.Context, window time.Duration) {
	s.clientMu.RLock()
	client := s.httpClient
	s.clientMu.RUnlock()

	if client == nil {
		select {
		case <-s.done:
		case <-ctx.Done():
		case <-time.After(window):
		}
		return
	}

	if s.polling.CompareAndSwap(false, true) {
		s.metrics.pollingFallback.Add(ctx, 1)
		s.logger.Info(ctx, "http polling fallback active", "interval", s.config.PollInterval)
	}
	s.setState(domain.StateConnected)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(window)
	defer deadline.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
			s.pollOnce(ctx, client)
		}
	}
}

func (s *Subscriber) pollOnce(ctx context.Context, client *ethclient.Client) {
	ctx, span := s.tracer.Start(ctx, "eth.poll_block")
	defer span.End()

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil) // nil = latest
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "http poll failed", "error", err)
		return
	}

	if header.Number.Uint64() <= s.lastBlock.Load() {
		span.AddEvent("duplicate_block")
		return
	}

	s.emitHeader(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

// emitHeader converts and publishes a header without blocking. When the
// consumer lags the block is dropped; the next one supersedes it anyway.
func (s *Subscriber) emitHeader(ctx context.Context, header *types.Header, fromPoll bool) {
	block := headerToBlock(header)
	s.lastBlock.Store(block.Number)

	select {
	case s.blocks <- block:
		s.metrics.blocksReceived.Add(ctx, 1)
		s.logger.Debug(ctx, "block received",
			"number", block.Number,
			"from_poll", fromPoll,
		)
	default:
		s.logger.Warn(ctx, "block dropped, buffer full", "number", block.Number)
	}
}

func headerToBlock(header *types.Header) *domain.Block {
	return &domain.Block{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(int64(header.Time), 0),
		GasLimit:   header.GasLimit,
		GasUsed:    header.GasUsed,
		BaseFee:    header.BaseFee,
	}
}

// LatestBlock fetches the newest header on demand.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	s.clientMu.RLock()
	wsClient := s.wsClient
	httpClient := s.httpClient
	s.clientMu.RUnlock()

	client := httpClient
	if client == nil {
		client = wsClient
	}
	if client == nil {
		return nil, apperror.New(apperror.CodeRPCConnectionFailed,
			apperror.WithContext("no node client connected"))
	}

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest block"))
	}

	span.SetStatus(codes.Ok, "fetched")
	return headerToBlock(header), nil
}

// State returns the current connection state.
func (s *Subscriber) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Status returns detailed connection status.
func (s *Subscriber) Status() domain.ConnectionStatus {
	return domain.ConnectionStatus{
		State:      s.State(),
		LastBlock:  s.lastBlock.Load(),
		LastUpdate: time.Now(),
		Reconnects: int(s.reconnects.Load()),
		Polling:    s.polling.Load(),
	}
}

// Close gracefully shuts the subscriber down and closes the block channel.
func (s *Subscriber) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed.Load() {
		return nil
	}
	s.closed.Store(true)
	close(s.done)

	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
	if s.httpClient != nil {
		s.httpClient.Close()
		s.httpClient = nil
	}
	s.clientMu.Unlock()

	close(s.blocks)
	s.setState(domain.StateDisconnected)
	return nil
}

func (s *Subscriber) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	var v int64
	switch state {
	case domain.StateConnecting:
		v = 1
	case domain.StateConnected:
		v = 2
	case domain.StateReconnecting:
		v = 3
	}
	s.metrics.connectionState.Record(context.Background(), v)
}
