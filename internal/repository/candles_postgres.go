package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"PairScan/internal/domain/models"
	"PairScan/internal/domain/repository"
)

// PostgresStore implements CandleStore and ReportStore on Postgres with
// native upsert semantics: insert when the natural key is new, update only
// when the mutable fields of an in-progress candle changed, no-op otherwise.
type PostgresStore struct {
	db      *sqlx.DB
	testnet bool
}

// NewPostgresStore opens a Postgres-backed candle and report store.
func NewPostgresStore(dsn string, maxOpen, maxIdle int, testnet bool) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	return &PostgresStore{db: db, testnet: testnet}, nil
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS velas (
	instrument  TEXT             NOT NULL,
	timeframe   TEXT             NOT NULL,
	open_time   TIMESTAMPTZ      NOT NULL,
	open        DOUBLE PRECISION NOT NULL,
	high        DOUBLE PRECISION NOT NULL,
	low         DOUBLE PRECISION NOT NULL,
	close       DOUBLE PRECISION NOT NULL,
	volume      DOUBLE PRECISION NOT NULL,
	seq         BIGINT           NOT NULL,
	testnet     BOOLEAN          NOT NULL,
	updated_at  TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (instrument, timeframe, open_time, testnet)
);
CREATE TABLE IF NOT EXISTS pares_filtro_dinamico (
	id           BIGSERIAL PRIMARY KEY,
	instrument   TEXT             NOT NULL,
	approved     BOOLEAN          NOT NULL,
	layer        TEXT             NOT NULL,
	reason       TEXT             NOT NULL,
	volume_24h   DOUBLE PRECISION NOT NULL,
	age_days     INT              NOT NULL,
	activity_15m DOUBLE PRECISION NOT NULL,
	activity_1h  DOUBLE PRECISION NOT NULL,
	fail_rate    DOUBLE PRECISION NOT NULL,
	testnet      BOOLEAN          NOT NULL,
	created_at   TIMESTAMPTZ      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pares_created ON pares_filtro_dinamico (testnet, created_at DESC);
`

func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, pgSchema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

const upsertCandleQuery = `
INSERT INTO velas (instrument, timeframe, open_time, open, high, low, close, volume, seq, testnet, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (instrument, timeframe, open_time, testnet) DO UPDATE
SET close = EXCLUDED.close, high = EXCLUDED.high, low = EXCLUDED.low,
    volume = EXCLUDED.volume, updated_at = EXCLUDED.updated_at
WHERE velas.close IS DISTINCT FROM EXCLUDED.close
   OR velas.volume IS DISTINCT FROM EXCLUDED.volume`

func (s *PostgresStore) UpsertCandles(ctx context.Context, instrument string, tf repository.Timeframe, candles models.CandleSeries) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	affected := 0
	now := time.Now().UTC()
	for _, c := range candles {
		if c.OpenTime.IsZero() {
			continue
		}
		res, err := tx.ExecContext(ctx, upsertCandleQuery,
			instrument, string(tf), c.OpenTime,
			c.Open, c.High, c.Low, c.Close, c.Volume,
			c.Seq, s.testnet, now,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert velas %s/%s: %w", instrument, tf, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return affected, nil
}

func (s *PostgresStore) RecentCandles(ctx context.Context, instrument string, tf repository.Timeframe, limit int) (models.CandleSeries, error) {
	q := `SELECT open_time, open, high, low, close, volume, seq FROM velas
		WHERE instrument = $1 AND timeframe = $2 AND testnet = $3
		ORDER BY open_time DESC LIMIT $4`
	rows, err := s.db.QueryContext(ctx, q, instrument, string(tf), s.testnet, limit)
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

func (s *PostgresStore) EarliestOpenTime(ctx context.Context, instrument string) (time.Time, bool, error) {
	q := `SELECT min(open_time) FROM velas WHERE instrument = $1 AND testnet = $2`
	var ts sql.NullTime
	if err := s.db.QueryRowContext(ctx, q, instrument, s.testnet).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("earliest open_time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time, true, nil
}

func (s *PostgresStore) CountCandles(ctx context.Context, instrument string, tf repository.Timeframe) (int, error) {
	q := `SELECT count(*) FROM velas WHERE instrument = $1 AND timeframe = $2 AND testnet = $3`
	var n int
	if err := s.db.QueryRowContext(ctx, q, instrument, string(tf), s.testnet).Scan(&n); err != nil {
		return 0, fmt.Errorf("count velas: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, report []models.FilterDecision) error {
	if len(report) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report: %w", err)
	}
	defer tx.Rollback()

	q := `INSERT INTO pares_filtro_dinamico
		(instrument, approved, layer, reason, volume_24h, age_days, activity_15m, activity_1h, fail_rate, testnet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	now := time.Now().UTC()
	for _, d := range report {
		if _, err := tx.ExecContext(ctx, q,
			d.Instrument, d.Approved, string(d.Layer), d.Reason,
			d.Volume24h, d.AgeDays, d.Activity15m, d.Activity1h, d.FailRate,
			s.testnet, now,
		); err != nil {
			return fmt.Errorf("save report %s: %w", d.Instrument, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) LatestReport(ctx context.Context, limit int) ([]models.FilterDecision, error) {
	q := `SELECT instrument, approved, layer, reason, volume_24h, age_days, activity_15m, activity_1h, fail_rate
		FROM pares_filtro_dinamico
		WHERE testnet = $1 AND created_at = (SELECT max(created_at) FROM pares_filtro_dinamico WHERE testnet = $1)
		ORDER BY instrument LIMIT $2`
	rows, err := s.db.QueryContext(ctx, q, s.testnet, limit)
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	defer rows.Close()

	var report []models.FilterDecision
	for rows.Next() {
		var d models.FilterDecision
		var layer string
		if err := rows.Scan(&d.Instrument, &d.Approved, &layer, &d.Reason, &d.Volume24h, &d.AgeDays, &d.Activity15m, &d.Activity1h, &d.FailRate); err != nil {
			return nil, err
		}
		d.Layer = models.FilterLayer(layer)
		report = append(report, d)
	}
	return report, rows.Err()
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var (
	_ repository.CandleStore = (*PostgresStore)(nil)
	_ repository.ReportStore = (*PostgresStore)(nil)
)
