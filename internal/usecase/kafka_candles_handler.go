package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
	pkgkafka "DeepInfo/pkg/kafka"
	"DeepInfo/pkg/util"
)

// KafkaCandlesHandler consumes market candles from Kafka and writes them to the candle store.
type KafkaCandlesHandler struct {
	topic   string
	store   domrepo.CandleStore
	metrics domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, store domrepo.CandleStore, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// candleMessage is the wire schema: {market_symbol, base, quote, t, o, v}.
// t may be unix seconds or milliseconds.
type candleMessage struct {
	MarketSymbol string  `json:"market_symbol"`
	Base         string  `json:"base"`
	Quote        string  `json:"quote"`
	T            int64   `json:"t"`
	O            float64 `json:"o"`
	V            float64 `json:"v"`
}

// Handle accepts one candle object or an array of them.
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	msgs, err := decodeCandles(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	candles := make([]models.MarketCandle, 0, len(msgs))
	for _, m := range msgs {
		c, err := m.toModel()
		if err != nil {
			h.metrics.RecordError("consumer_invalid")
			return err
		}
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil
	}

	start := time.Now()
	err = h.store.StoreBatch(ctx, candles)
	h.metrics.RecordFetch("ingest", err, time.Since(start))
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordIngested(len(candles))
	return nil
}

func decodeCandles(b []byte) ([]candleMessage, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var ms []candleMessage
		if err := json.Unmarshal(b, &ms); err != nil {
			return nil, fmt.Errorf("decode candle batch: %w", err)
		}
		return ms, nil
	}
	var m candleMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode candle: %w", err)
	}
	return []candleMessage{m}, nil
}

func (m candleMessage) toModel() (models.MarketCandle, error) {
	if m.MarketSymbol == "" || m.T <= 0 {
		return models.MarketCandle{}, fmt.Errorf("candle missing market_symbol or t")
	}
	ts := util.UnixAuto(m.T).Unix()
	base, quote := m.Base, m.Quote
	if base == "" || quote == "" {
		// exchange:BASE:QUOTE
		parts := strings.Split(m.MarketSymbol, ":")
		if len(parts) == 3 {
			base, quote = parts[1], parts[2]
		}
	}
	if base == "" || quote == "" {
		return models.MarketCandle{}, fmt.Errorf("candle %s: base and quote unknown", m.MarketSymbol)
	}
	return models.MarketCandle{
		MarketSymbol: m.MarketSymbol,
		Base:         strings.ToUpper(base),
		Quote:        strings.ToUpper(quote),
		StartUnix:    ts,
		Open:         m.O,
		Volume:       m.V,
	}, nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
