package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vango-go/voicenav/pkg/core/types"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// PostgresStore persists dialogues in a conversation_turns table, one row
// per turn, ordered by a per-session sequence number.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and applies pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := migrate(dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// migrate applies pending goose migrations. goose runs over database/sql,
// so it gets its own short-lived connection through the pgx stdlib driver.
func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open postgres for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(embeddedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, sessionID string, turns []types.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM conversation_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear session %q: %w", sessionID, err)
	}

	if len(turns) > 0 {
		batch := &pgx.Batch{}
		for i, turn := range turns {
			var toolCalls []byte
			if len(turn.ToolCalls) > 0 {
				toolCalls, err = json.Marshal(turn.ToolCalls)
				if err != nil {
					return fmt.Errorf("encode tool calls: %w", err)
				}
			}
			batch.Queue(
				`INSERT INTO conversation_turns (session_id, seq, role, content, tool_calls, tool_call_id, tool_name)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				sessionID, i, turn.Role, turn.Content, toolCalls,
				nullable(turn.ToolCallID), nullable(turn.Name),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert turns: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) ([]types.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, tool_calls, tool_call_id, tool_name
		 FROM conversation_turns WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []types.Message
	for rows.Next() {
		var turn types.Message
		var toolCalls []byte
		var callID, name *string
		if err := rows.Scan(&turn.Role, &turn.Content, &toolCalls, &callID, &name); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if len(toolCalls) > 0 {
			if err := json.Unmarshal(toolCalls, &turn.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		if callID != nil {
			turn.ToolCallID = *callID
		}
		if name != nil {
			turn.Name = *name
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	return turns, nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// nullable stores empty strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
