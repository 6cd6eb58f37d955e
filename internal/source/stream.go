package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// StreamConfig configures a websocket-fed venue.
type StreamConfig struct {
	// Name identifies the venue in quotes and logs, e.g. "jupiter".
	Name string

	// WSURL is the venue's quote stream endpoint.
	WSURL string

	// Pairs to subscribe to on connect.
	Pairs []domain.Pair

	// FeeBps overrides the venue taker fee when stream messages do not carry
	// one.
	FeeBps float64
}

// streamCommand is the subscribe/unsubscribe frame sent to the venue stream.
type streamCommand struct {
	Type  string   `json:"type"`
	Pairs []string `json:"pairs"`
}

// streamQuote is the quote frame pushed by the venue stream.
type streamQuote struct {
	Type       string  `json:"type"`
	Pair       string  `json:"pair"`
	Price      float64 `json:"price"`
	Liquidity  float64 `json:"liquidity"`
	FeeBps     float64 `json:"fee_bps"`
	Confidence float64 `json:"confidence"`
	TsUnixMs   int64   `json:"ts"`
}

// StreamSource maintains a websocket subscription to a venue's quote stream
// and serves GetQuote from the last pushed quote per pair. Run must be
// started for quotes to flow; until the first push for a pair arrives,
// GetQuote returns domain.ErrSourceUnavailable.
type StreamSource struct {
	cfg    StreamConfig
	logger *slog.Logger

	mu     sync.RWMutex
	latest map[domain.Pair]domain.Quote

	closeOnce sync.Once
	done      chan struct{}
}

// NewStreamSource creates a streaming quote source for one venue.
func NewStreamSource(cfg StreamConfig, logger *slog.Logger) (*StreamSource, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("source: stream source requires a venue name")
	}
	if cfg.WSURL == "" {
		return nil, fmt.Errorf("source: stream source %s requires a ws URL", cfg.Name)
	}
	return &StreamSource{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "stream_source"), slog.String("venue", cfg.Name)),
		latest: make(map[domain.Pair]domain.Quote),
		done:   make(chan struct{}),
	}, nil
}

// Name returns the venue identifier.
func (s *StreamSource) Name() string {
	return s.cfg.Name
}

// GetQuote returns the most recently pushed quote for the pair. Staleness is
// the aggregator's concern; the source only reports what the stream last
// delivered.
func (s *StreamSource) GetQuote(ctx context.Context, pair domain.Pair, referenceAmount float64) (domain.Quote, error) {
	s.mu.RLock()
	q, ok := s.latest[pair]
	s.mu.RUnlock()
	if !ok {
		return domain.Quote{}, fmt.Errorf("source: %s: %w: no quote streamed for %s", s.cfg.Name, domain.ErrSourceUnavailable, pair)
	}
	return q, nil
}

// Run connects, subscribes to the configured pairs, and consumes quote frames
// until ctx is cancelled or Close is called. Reconnects with exponential
// backoff on disconnect.
func (s *StreamSource) Run(ctx context.Context) error {
	if len(s.cfg.Pairs) == 0 {
		s.logger.Info("no pairs to subscribe, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		err := s.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("quote stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the source.
func (s *StreamSource) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *StreamSource) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := dialer.DialContext(dialCtx, s.cfg.WSURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("source: %s: connect: %w", s.cfg.Name, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.logger.Info("quote stream subscribed", slog.Int("pairs", len(s.cfg.Pairs)))

	go s.pingLoop(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("source: %s: read: %w", s.cfg.Name, err)
		}
		s.handleMessage(message)
	}
}

func (s *StreamSource) subscribe(conn *websocket.Conn) error {
	pairs := make([]string, 0, len(s.cfg.Pairs))
	for _, p := range s.cfg.Pairs {
		pairs = append(pairs, p.String())
	}

	cmd := streamCommand{Type: "subscribe", Pairs: pairs}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("source: %s: marshal subscribe: %w", s.cfg.Name, err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("source: %s: subscribe: %w", s.cfg.Name, err)
	}
	return nil
}

// pingLoop keeps the connection alive. It exits when the connection dies, the
// context is cancelled, or the source is closed.
func (s *StreamSource) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses one stream frame and stores quote frames in the latest
// map. Unparseable or non-quote frames are silently dropped.
func (s *StreamSource) handleMessage(raw []byte) {
	var msg streamQuote
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Type != "quote" && msg.Type != "" {
		return
	}

	pair, err := domain.ParsePair(msg.Pair)
	if err != nil {
		return
	}

	q := domain.Quote{
		Pair:               pair,
		Venue:              s.cfg.Name,
		Price:              msg.Price,
		AvailableLiquidity: msg.Liquidity,
		FeeBps:             msg.FeeBps,
		Confidence:         msg.Confidence,
		ObservedAt:         time.Now().UTC(),
	}
	if q.FeeBps == 0 {
		q.FeeBps = s.cfg.FeeBps
	}
	if msg.TsUnixMs > 0 {
		q.ObservedAt = time.UnixMilli(msg.TsUnixMs)
	}

	s.mu.Lock()
	prev, ok := s.latest[pair]
	if !ok || !q.ObservedAt.Before(prev.ObservedAt) {
		s.latest[pair] = q
	}
	s.mu.Unlock()
}

// Compile-time interface check.
var _ domain.QuoteSource = (*StreamSource)(nil)
