package binance

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spooky-finn/go-marketdepth/domain"
	"github.com/spooky-finn/go-marketdepth/logger"
)

var apiLogger = logger.Component("binance-stream-api")

// depthUpdateData is the payload of a <symbol>@depth event.
type depthUpdateData struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// StreamAPI decodes raw combined-stream frames into typed domain events.
type StreamAPI struct {
	client *StreamClient
}

func NewStreamAPI(client *StreamClient) *StreamAPI {
	return &StreamAPI{client: client}
}

// DepthDiffStream subscribes to the 100ms depth diff stream for symbol and
// returns typed updates. The returned stream closes when the client does.
func (s *StreamAPI) DepthDiffStream(symbol *domain.MarketSymbol) (*domain.Subscription[*domain.OrderBookUpdate], error) {
	topic := fmt.Sprintf("%s@depth@100ms", symbol.Join(""))

	raw, err := s.client.Subscribe(topic)
	if err != nil {
		return nil, err
	}

	out := make(chan *domain.OrderBookUpdate)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-raw.Stream:
				if !ok {
					return
				}
				update, err := decodeDepthUpdate(msg, symbol)
				if err != nil {
					apiLogger.WithError(err).WithField("topic", topic).Warn("dropping undecodable depth update")
					continue
				}
				// The consumer may already be gone; never strand the
				// decoder on a send nobody will receive.
				select {
				case out <- update:
				case <-done:
					return
				}
			}
		}
	}()

	var unsubscribeOnce sync.Once
	return &domain.Subscription[*domain.OrderBookUpdate]{
		Stream: out,
		Topic:  topic,
		Unsubscribe: func() {
			unsubscribeOnce.Do(func() {
				close(done)
				raw.Unsubscribe()
			})
		},
	}, nil
}

func decodeDepthUpdate(msg []byte, symbol *domain.MarketSymbol) (*domain.OrderBookUpdate, error) {
	var message streamMessage[depthUpdateData]
	if err := json.Unmarshal(msg, &message); err != nil {
		return nil, fmt.Errorf("unmarshal depth update: %w", err)
	}

	return domain.NewOrderBookUpdate(
		message.Data.Bids, message.Data.Asks,
		message.Data.FirstUpdateID, message.Data.FinalUpdateID,
		symbol,
	), nil
}
