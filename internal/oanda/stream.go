package oanda

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mvpforex/internal/events"
)

// StreamManager consumes the OANDA pricing stream and republishes ticks on
// the event bus. One goroutine runs per subscribed instrument; dropped
// connections are retried with backoff until the manager is shut down.
type StreamManager struct {
	mu          sync.Mutex
	client      *Client
	bus         *events.EventBus
	logger      zerolog.Logger
	cancels     map[string]context.CancelFunc
	lastTicks   map[string]*Tick
	reconnectIn time.Duration
}

// NewStreamManager creates a stream manager over the given client.
func NewStreamManager(client *Client, bus *events.EventBus, logger zerolog.Logger) *StreamManager {
	return &StreamManager{
		client:      client,
		bus:         bus,
		logger:      logger.With().Str("component", "StreamManager").Logger(),
		cancels:     make(map[string]context.CancelFunc),
		lastTicks:   make(map[string]*Tick),
		reconnectIn: 5 * time.Second,
	}
}

// Start begins streaming prices for the instrument. Calling Start twice for
// the same instrument is a no-op.
func (sm *StreamManager) Start(ctx context.Context, instrument string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, active := sm.cancels[instrument]; active {
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	sm.cancels[instrument] = cancel

	go sm.run(streamCtx, instrument)
	sm.logger.Info().Str("instrument", instrument).Msg("Price stream started")
}

// Stop ends the stream for the instrument.
func (sm *StreamManager) Stop(instrument string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if cancel, active := sm.cancels[instrument]; active {
		cancel()
		delete(sm.cancels, instrument)
		sm.logger.Info().Str("instrument", instrument).Msg("Price stream stopped")
	}
}

// Shutdown stops all active streams.
func (sm *StreamManager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for instrument, cancel := range sm.cancels {
		cancel()
		delete(sm.cancels, instrument)
	}
	sm.logger.Info().Msg("All price streams stopped")
}

// LastTick returns the most recent tick seen for the instrument, or nil.
func (sm *StreamManager) LastTick(instrument string) *Tick {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.lastTicks[instrument]
}

// ActiveStreams returns the instruments currently streaming.
func (sm *StreamManager) ActiveStreams() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	out := make([]string, 0, len(sm.cancels))
	for instrument := range sm.cancels {
		out = append(out, instrument)
	}
	return out
}

// run maintains the stream connection until the context is cancelled.
func (sm *StreamManager) run(ctx context.Context, instrument string) {
	for {
		err := sm.consume(ctx, instrument)
		if ctx.Err() != nil {
			return
		}

		sm.logger.Warn().
			Str("instrument", instrument).
			Err(err).
			Dur("retry_in", sm.reconnectIn).
			Msg("Price stream dropped, reconnecting")
		sm.bus.Publish(events.Event{
			Type: events.EventStreamDropped,
			Data: map[string]interface{}{
				"instrument": instrument,
				"error":      err.Error(),
			},
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(sm.reconnectIn):
		}
	}
}

// streamMessage is one line of the chunked pricing stream.
type streamMessage struct {
	Type       string    `json:"type"` // PRICE or HEARTBEAT
	Instrument string    `json:"instrument"`
	Time       time.Time `json:"time"`
	Bids       []quote   `json:"bids"`
	Asks       []quote   `json:"asks"`
}

func (sm *StreamManager) consume(ctx context.Context, instrument string) error {
	endpoint := fmt.Sprintf("%s/v3/accounts/%s/pricing/stream?instruments=%s&snapshot=true",
		sm.client.streamHost, sm.client.accountID, instrument)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sm.client.apiKey)

	// The stream stays open indefinitely, so bypass the REST timeout.
	streamHTTP := &http.Client{}
	resp, err := streamHTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream connect failed: status %d", resp.StatusCode)
	}

	sm.logger.Info().Str("instrument", instrument).Msg("Connected to pricing stream")
	sm.bus.Publish(events.Event{
		Type: events.EventStreamConnected,
		Data: map[string]interface{}{"instrument": instrument},
	})

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg streamMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			sm.logger.Warn().Err(err).Msg("Unparseable stream line")
			continue
		}

		if msg.Type != "PRICE" || msg.Instrument != instrument {
			continue
		}
		if len(msg.Bids) == 0 || len(msg.Asks) == 0 {
			continue
		}

		bid, err1 := strconv.ParseFloat(msg.Bids[0].Price, 64)
		ask, err2 := strconv.ParseFloat(msg.Asks[0].Price, 64)
		if err1 != nil || err2 != nil {
			continue
		}

		tick := &Tick{
			Instrument: msg.Instrument,
			Time:       msg.Time,
			Bid:        bid,
			Ask:        ask,
			Spread:     spread(msg.Instrument, bid, ask),
		}

		sm.mu.Lock()
		sm.lastTicks[instrument] = tick
		sm.mu.Unlock()

		sm.bus.PublishPriceUpdate(tick.Instrument, tick.Bid, tick.Ask, tick.Time)
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream closed by server")
}
