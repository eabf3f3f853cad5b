package audit

import (
	"context"
	"fmt"

	"microtrader/types"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createTableStatement = `CREATE TABLE IF NOT EXISTS audit (
		id          UUID PRIMARY KEY,
		action      TEXT        NOT NULL,
		symbol      TEXT        NOT NULL,
		amount      BIGINT      NOT NULL,
		owned       BIGINT      NOT NULL,
		price       NUMERIC     NOT NULL,
		cash        NUMERIC     NOT NULL,
		executed_at TIMESTAMPTZ NOT NULL
	)`
	insertStatement = `INSERT INTO audit (id, action, symbol, amount, owned, price, cash, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	selectStatement = `SELECT id, action, symbol, amount, owned, price, cash, executed_at
		FROM audit ORDER BY executed_at DESC LIMIT $1`
)

// Database is the Postgres-backed store for the audit journal.
type Database struct {
	conn *pgxpool.Pool
}

// NewDatabase connects to Postgres, verifies connectivity and ensures the
// audit table exists.
func NewDatabase(ctx context.Context, dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(ctx, createTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &Database{conn: conn}, nil
}

func (db *Database) Insert(ctx context.Context, ev types.TradeEvent) error {
	_, err := db.conn.Exec(ctx, insertStatement,
		ev.ID, string(ev.Action), ev.Symbol, ev.Amount, ev.Owned, ev.Price, ev.Cash, ev.Timestamp)
	return err
}

func (db *Database) LastOperations(ctx context.Context, limit int) ([]types.TradeEvent, error) {
	rows, err := db.conn.Query(ctx, selectStatement, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []types.TradeEvent
	for rows.Next() {
		var ev types.TradeEvent
		var action string
		if err := rows.Scan(&ev.ID, &action, &ev.Symbol, &ev.Amount, &ev.Owned, &ev.Price, &ev.Cash, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Action = types.Side(action)
		ops = append(ops, ev)
	}
	return ops, rows.Err()
}

func (db *Database) Close() {
	db.conn.Close()
}
