package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapRouter/internal/storage"
)

// Schema creates the journal tables.
const Schema = `
CREATE TABLE IF NOT EXISTS quotes (
	chain_id BIGINT NOT NULL,
	seq BIGINT NOT NULL,
	quoted_at TIMESTAMPTZ NOT NULL,
	trade_type TEXT NOT NULL,
	token_in TEXT NOT NULL,
	token_out TEXT NOT NULL,
	amount_in NUMERIC,
	amount_out NUMERIC,
	gas_estimate BIGINT,
	gas_cost NUMERIC,
	pools INT NOT NULL,
	error TEXT,
	PRIMARY KEY (chain_id, quoted_at, seq)
);
CREATE TABLE IF NOT EXISTS quote_routes (
	chain_id BIGINT NOT NULL,
	quoted_at TIMESTAMPTZ NOT NULL,
	seq BIGINT NOT NULL,
	route_index INT NOT NULL,
	percent INT NOT NULL,
	path JSONB NOT NULL,
	pools JSONB NOT NULL,
	amount_in NUMERIC NOT NULL,
	amount_out NUMERIC NOT NULL,
	PRIMARY KEY (chain_id, quoted_at, seq, route_index)
);
CREATE TABLE IF NOT EXISTS submissions (
	chain_id BIGINT NOT NULL,
	seq BIGINT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	router TEXT NOT NULL,
	sender TEXT NOT NULL,
	value NUMERIC NOT NULL,
	gas_limit NUMERIC,
	bound NUMERIC NOT NULL,
	handle TEXT,
	error TEXT,
	PRIMARY KEY (chain_id, submitted_at, seq)
);
`

// Store provides Postgres persistence for the journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// PutQuote upserts the quote and its routes in one batch.
func (s *Store) PutQuote(ctx context.Context, rec storage.QuoteRecord) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO quotes (
			chain_id, seq, quoted_at, trade_type, token_in, token_out,
			amount_in, amount_out, gas_estimate, gas_cost, pools, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (chain_id, quoted_at, seq)
		DO UPDATE SET
			amount_in = EXCLUDED.amount_in,
			amount_out = EXCLUDED.amount_out,
			gas_estimate = EXCLUDED.gas_estimate,
			gas_cost = EXCLUDED.gas_cost,
			pools = EXCLUDED.pools,
			error = EXCLUDED.error
	`,
		int64(rec.ChainID),
		int64(rec.Seq),
		rec.At,
		rec.TradeType,
		rec.TokenIn,
		rec.TokenOut,
		nullable(rec.AmountIn),
		nullable(rec.AmountOut),
		int64(rec.GasEstimate),
		nullable(rec.GasCost),
		rec.Pools,
		nullable(rec.Error),
	)
	for i, r := range rec.Routes {
		path, err := json.Marshal(r.Path)
		if err != nil {
			return fmt.Errorf("marshal route path: %w", err)
		}
		pools, err := json.Marshal(r.Pools)
		if err != nil {
			return fmt.Errorf("marshal route pools: %w", err)
		}
		batch.Queue(`
			INSERT INTO quote_routes (
				chain_id, quoted_at, seq, route_index, percent, path, pools, amount_in, amount_out
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (chain_id, quoted_at, seq, route_index)
			DO UPDATE SET
				percent = EXCLUDED.percent,
				path = EXCLUDED.path,
				pools = EXCLUDED.pools,
				amount_in = EXCLUDED.amount_in,
				amount_out = EXCLUDED.amount_out
		`,
			int64(rec.ChainID),
			rec.At,
			int64(rec.Seq),
			i,
			int32(r.Percent),
			path,
			pools,
			r.AmountIn,
			r.AmountOut,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutSubmission records one swap attempt.
func (s *Store) PutSubmission(ctx context.Context, rec storage.SubmissionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (
			chain_id, seq, submitted_at, router, sender, value, gas_limit, bound, handle, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (chain_id, submitted_at, seq) DO NOTHING
	`,
		int64(rec.ChainID),
		int64(rec.Seq),
		rec.At,
		rec.Router,
		rec.From,
		rec.Value,
		nullable(rec.GasLimit),
		rec.Bound,
		nullable(rec.Handle),
		nullable(rec.Error),
	)
	return err
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
