package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
	pkgch "PairScan/pkg/clickhouse"
)

// ClickHouseStore implements CandleStore and ReportStore on ClickHouse.
// The velas table is a ReplacingMergeTree keyed by (instrument, timeframe,
// open_time), so re-inserting an in-progress candle with a newer updated_at
// supersedes the old row on merge; reads use FINAL.
type ClickHouseStore struct {
	client  *pkgch.Client
	db      *sql.DB
	testnet bool
}

// NewClickHouseStore creates ClickHouse-backed candle and report storage.
func NewClickHouseStore(client *pkgch.Client, testnet bool) *ClickHouseStore {
	return &ClickHouseStore{client: client, db: client.DB(), testnet: testnet}
}

var chSchema = []string{
	`CREATE TABLE IF NOT EXISTS velas (
		instrument  String,
		timeframe   String,
		open_time   DateTime64(3, 'UTC'),
		open        Float64,
		high        Float64,
		low         Float64,
		close       Float64,
		volume      Float64,
		seq         Int64,
		testnet     UInt8,
		updated_at  DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(updated_at)
	PARTITION BY toYYYYMM(open_time)
	ORDER BY (instrument, timeframe, open_time, testnet)`,
	`CREATE TABLE IF NOT EXISTS pares_filtro_dinamico (
		instrument   String,
		approved     UInt8,
		layer        String,
		reason       String,
		volume_24h   Float64,
		age_days     Int32,
		activity_15m Float64,
		activity_1h  Float64,
		fail_rate    Float64,
		testnet      UInt8,
		created_at   DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (testnet, created_at, instrument)`,
}

func (s *ClickHouseStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, chSchema)
}

func (s *ClickHouseStore) UpsertCandles(ctx context.Context, instrument string, tf repository.Timeframe, candles models.CandleSeries) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	values := make([]string, 0, len(candles))
	args := make([]interface{}, 0, len(candles)*10)
	now := time.Now().UTC()
	for _, c := range candles {
		if c.OpenTime.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			instrument,
			string(tf),
			c.OpenTime,
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
			c.Seq,
			boolToUInt8(s.testnet),
			now,
		)
	}
	if len(values) == 0 {
		return 0, nil
	}
	q := "INSERT INTO velas (instrument, timeframe, open_time, open, high, low, close, volume, seq, testnet, updated_at) VALUES " + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return 0, fmt.Errorf("upsert velas: %w", err)
	}
	return len(values), nil
}

func (s *ClickHouseStore) RecentCandles(ctx context.Context, instrument string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
	q := `SELECT open_time, open, high, low, close, volume, seq
		FROM velas FINAL
		WHERE instrument = ? AND timeframe = ? AND testnet = ?
		ORDER BY open_time DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, instrument, string(tf), boolToUInt8(s.testnet), limit)
	if err != nil {
		return nil, fmt.Errorf("query velas: %w", err)
	}
	defer rows.Close()

	var series models.CandleSeries
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Seq); err != nil {
			return nil, err
		}
		c.Closed = time.Since(c.OpenTime) >= tf.Duration()
		series = append(series, c)
	}
	reverse(series)
	return series, rows.Err()
}

func (s *ClickHouseStore) EarliestOpenTime(ctx context.Context, instrument string) (time.Time, bool, error) {
	q := `SELECT min(open_time) FROM velas WHERE instrument = ? AND testnet = ?`
	var ts sql.NullTime
	if err := s.db.QueryRowContext(ctx, q, instrument, boolToUInt8(s.testnet)).Scan(&ts); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("earliest open_time: %w", err)
	}
	if !ts.Valid || ts.Time.IsZero() || ts.Time.Unix() <= 0 {
		return time.Time{}, false, nil
	}
	return ts.Time, true, nil
}

func (s *ClickHouseStore) CountCandles(ctx context.Context, instrument string, tf repository.Timeframe) (int, error) {
	q := `SELECT count() FROM velas WHERE instrument = ? AND timeframe = ? AND testnet = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, instrument, string(tf), boolToUInt8(s.testnet)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count velas: %w", err)
	}
	return n, nil
}

func (s *ClickHouseStore) SaveReport(ctx context.Context, report []models.FilterDecision) error {
	if len(report) == 0 {
		return nil
	}
	values := make([]string, 0, len(report))
	args := make([]interface{}, 0, len(report)*11)
	now := time.Now().UTC()
	for _, d := range report {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			d.Instrument,
			boolToUInt8(d.Approved),
			string(d.Layer),
			d.Reason,
			d.Volume24h,
			d.AgeDays,
			d.Activity15m,
			d.Activity1h,
			d.FailRate,
			boolToUInt8(s.testnet),
			now,
		)
	}
	q := "INSERT INTO pares_filtro_dinamico (instrument, approved, layer, reason, volume_24h, age_days, activity_15m, activity_1h, fail_rate, testnet, created_at) VALUES " + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) LatestReport(ctx context.Context, limit int) ([]models.FilterDecision, error) {
	q := `SELECT instrument, approved, layer, reason, volume_24h, age_days, activity_15m, activity_1h, fail_rate
		FROM pares_filtro_dinamico
		WHERE testnet = ? AND created_at = (SELECT max(created_at) FROM pares_filtro_dinamico WHERE testnet = ?)
		ORDER BY instrument LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, boolToUInt8(s.testnet), boolToUInt8(s.testnet), limit)
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	defer rows.Close()

	var report []models.FilterDecision
	for rows.Next() {
		var d models.FilterDecision
		var approved uint8
		var layer string
		if err := rows.Scan(&d.Instrument, &approved, &layer, &d.Reason, &d.Volume24h, &d.AgeDays, &d.Activity15m, &d.Activity1h, &d.FailRate); err != nil {
			return nil, err
		}
		d.Approved = approved != 0
		d.Layer = models.FilterLayer(layer)
		report = append(report, d)
	}
	return report, rows.Err()
}

func (s *ClickHouseStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStore) Close() error {
	return s.client.Close()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func reverse(s models.CandleSeries) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

var (
	_ repository.CandleStore = (*ClickHouseStore)(nil)
	_ repository.ReportStore = (*ClickHouseStore)(nil)
)
