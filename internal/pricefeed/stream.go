package pricefeed

import (
	"context"
	"time"

	"insightai-sync/internal/types"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Stream delivers live quotes for one symbol over the backend WebSocket
// endpoint. On transport loss it reconnects after a fixed delay and keeps
// retrying until the context is cancelled; missed quotes are not replayed.
type Stream struct {
	wsBaseURL      string
	reconnectDelay time.Duration
}

type streamFrame struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
}

func NewStream(wsBaseURL string) *Stream {
	return &Stream{
		wsBaseURL:      wsBaseURL,
		reconnectDelay: 5 * time.Second,
	}
}

// Subscribe emits quotes for symbol until ctx is cancelled. The returned
// channel is closed on cancellation, never on transport errors.
func (s *Stream) Subscribe(ctx context.Context, symbol string) <-chan types.PriceQuote {
	out := make(chan types.PriceQuote)

	go func() {
		defer close(out)
		for {
			if err := s.readConn(ctx, symbol, out); err != nil {
				log.Debugf("stream for %s lost: %v", symbol, err)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(s.reconnectDelay):
			}
		}
	}()

	return out
}

func (s *Stream) readConn(ctx context.Context, symbol string, out chan<- types.PriceQuote) error {
	url := s.wsBaseURL + "/" + symbol

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Debugf("stream connected to %s", url)

	// Unblock ReadJSON when the subscription is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.Price <= 0 {
			continue
		}

		quote := types.PriceQuote{
			Symbol:    symbol,
			Price:     frame.Price,
			Change24h: frame.Change24h,
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- quote:
		}
	}
}
