package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
	pkgch "DeepInfo/pkg/clickhouse"
	applogger "DeepInfo/pkg/logger"
)

// CandleSchema returns the DDL for the market candle table in database.
func CandleSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.market_candles (
            market_symbol LowCardinality(String),
            base          LowCardinality(String),
            quote         LowCardinality(String),
            ts            DateTime,
            open          Float64,
            volume        Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (base, quote, market_symbol, ts)`, database),
	}
}

// CHCandleStore stores market candles in ClickHouse and aggregates them into chart payloads.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHCandleStore {
	return &CHCandleStore{db: ch.DB(), table: database + ".market_candles", l: l}
}

// Fetch buckets every market of the pair at the requested resolution and derives
// the volume weighted reference series from them.
func (s *CHCandleStore) Fetch(ctx context.Context, p models.FetchParams) (*models.CurrencyPayload, error) {
	res, ok := domrepo.FindResolution(p.Resolution)
	if !ok {
		return nil, fmt.Errorf("unknown resolution %q", p.Resolution)
	}
	start := time.Now()

	q := fmt.Sprintf(`
        SELECT market_symbol,
               toUnixTimestamp(toStartOfInterval(ts, toIntervalSecond(?))) AS bucket,
               argMin(open, ts) AS o,
               sum(volume) AS v
        FROM %s FINAL
        WHERE base = ? AND quote = ? AND ts >= ? AND ts <= ?
        GROUP BY market_symbol, bucket
        ORDER BY market_symbol, bucket ASC
    `, s.table)
	base, quote := strings.ToUpper(p.CurrencySymbol), strings.ToUpper(p.QuoteSymbol)
	rows, err := s.db.QueryContext(ctx, q, res.Seconds, base, quote,
		time.Unix(p.StartTime, 0).UTC(), time.Unix(p.EndTime, 0).UTC())
	if err != nil {
		s.l.Error("clickhouse fetch_candles query error",
			applogger.String("base", base),
			applogger.String("quote", quote),
			applogger.String("resolution", p.Resolution),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	defer rows.Close()

	var markets []models.MarketSeries
	for rows.Next() {
		var (
			symbol string
			bucket uint32
			c      models.Candle
		)
		if err := rows.Scan(&symbol, &bucket, &c.Open, &c.Volume); err != nil {
			s.l.Error("clickhouse fetch_candles scan error",
				applogger.String("base", base),
				applogger.String("quote", quote),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.StartUnix = int64(bucket)
		if n := len(markets); n == 0 || markets[n-1].MarketSymbol != symbol {
			markets = append(markets, models.MarketSeries{MarketSymbol: symbol})
		}
		last := &markets[len(markets)-1]
		last.Timeseries = append(last.Timeseries, c)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse fetch_candles rows error",
			applogger.String("base", base),
			applogger.String("quote", quote),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("rows: %w", err)
	}

	payload := &models.CurrencyPayload{Comparison: markets}
	if ref := VolumeWeighted(markets); len(ref) > 0 {
		payload.Reference = []models.MarketSeries{{
			MarketSymbol: "vwa:" + base + ":" + quote,
			Timeseries:   ref,
		}}
	}
	s.l.Debug("clickhouse fetch_candles ok",
		applogger.String("base", base),
		applogger.String("quote", quote),
		applogger.String("resolution", p.Resolution),
		applogger.Int("markets", len(markets)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return payload, nil
}

// VolumeWeighted merges market series into one series: per bucket the open is the
// volume weighted mean of the market opens (plain mean when no volume traded) and
// the volume is the sum.
func VolumeWeighted(markets []models.MarketSeries) []models.Candle {
	type acc struct {
		weighted, volume, opens float64
		n                       int
	}
	buckets := make(map[int64]*acc)
	for _, m := range markets {
		for _, c := range m.Timeseries {
			a := buckets[c.StartUnix]
			if a == nil {
				a = &acc{}
				buckets[c.StartUnix] = a
			}
			a.weighted += c.Open * c.Volume
			a.volume += c.Volume
			a.opens += c.Open
			a.n++
		}
	}
	out := make([]models.Candle, 0, len(buckets))
	for ts, a := range buckets {
		open := a.opens / float64(a.n)
		if a.volume > 0 {
			open = a.weighted / a.volume
		}
		out = append(out, models.Candle{StartUnix: ts, Open: open, Volume: a.volume})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartUnix < out[j].StartUnix })
	return out
}

// StoreBatch inserts candles inside one transaction, the way clickhouse-go batches
// rows through database/sql.
func (s *CHCandleStore) StoreBatch(ctx context.Context, candles []models.MarketCandle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (market_symbol, base, quote, ts, open, volume)", s.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx,
			c.MarketSymbol, c.Base, c.Quote, time.Unix(c.StartUnix, 0).UTC(), c.Open, c.Volume,
		); err != nil {
			_ = tx.Rollback()
			s.l.Error("clickhouse store_batch append error",
				applogger.String("market", c.MarketSymbol),
				applogger.Error(err),
			)
			return fmt.Errorf("append candle: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		s.l.Error("clickhouse store_batch commit error", applogger.Int("rows", len(candles)), applogger.Error(err))
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *CHCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.CandleStore = (*CHCandleStore)(nil)
