// Package postgres provides a PostgreSQL + pgvector implementation of the
// vector store.
//
// Similarity search runs in the database using pgvector's cosine distance
// operator, so it scales past what the in-memory backends can handle.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// Client implements storage.VectorStore backed by PostgreSQL with pgvector.
type Client struct {
	db             *sql.DB
	collectionName string
	dimensions     int
	historyLimit   int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int
	SSLMode            string

	// HistoryLimit bounds the version history per memory (0 = unlimited).
	HistoryLimit int
}

// NewClient creates a new PostgreSQL client, enabling the pgvector extension
// and creating the memory and history tables.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	client := &Client{
		db:             db,
		collectionName: cfg.CollectionName,
		dimensions:     cfg.EmbeddingModelDims,
		historyLimit:   cfg.HistoryLimit,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) initTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`, c.collectionName, c.dimensions)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	historyQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_history (
			id BIGSERIAL PRIMARY KEY,
			memory_id BIGINT NOT NULL,
			content TEXT NOT NULL,
			replaced_at TIMESTAMP NOT NULL
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, historyQuery); err != nil {
		return fmt.Errorf("initTables: create history table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	historyIndexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_history_memory ON %s_history(memory_id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, historyIndexQuery); err != nil {
		return fmt.Errorf("initTables: create history index: %w", err)
	}

	return nil
}

// Insert inserts a memory.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, content, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.collectionName)

	metadataJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.UserID,
		memory.Content,
		vectorToString(memory.Embedding),
		string(metadataJSON),
		memory.CreatedAt,
		memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector search using pgvector's cosine distance operator.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	// $1 is the query vector, owner filter (if any) starts at $2.
	whereClause := ""
	args := []interface{}{vectorToString(embedding)}
	if opts.UserID != "" || opts.ExactUser {
		whereClause = "WHERE user_id = $2"
		args = append(args, opts.UserID)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, metadata, created_at, updated_at,
		       1 - (embedding <=> $1) AS similarity
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, c.collectionName, whereClause, len(args)+1)
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	memories, err := scanMemories(rows, true)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	if opts.MinScore > 0 {
		filtered := memories[:0]
		for _, memory := range memories {
			if memory.Score >= opts.MinScore {
				filtered = append(filtered, memory)
			}
		}
		memories = filtered
	}

	return memories, nil
}

// Get retrieves a memory by ID, including its version history.
func (c *Client) Get(ctx context.Context, id int64, opts *storage.GetOptions) (*storage.Memory, error) {
	if opts == nil {
		opts = &storage.GetOptions{}
	}

	whereClause := "WHERE id = $1"
	args := []interface{}{id}
	if opts.UserID != "" {
		whereClause += " AND user_id = $2"
		args = append(args, opts.UserID)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, metadata, created_at, updated_at
		FROM %s
		%s
	`, c.collectionName, whereClause)

	row := c.db.QueryRowContext(ctx, query, args...)

	memory, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	history, err := c.loadHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	memory.History = history

	return memory, nil
}

// Update replaces a memory's content and embedding, appending the prior
// content to the version history in the same transaction.
func (c *Client) Update(ctx context.Context, id int64, content string, embedding []float64, opts *storage.UpdateOptions) (*storage.Memory, error) {
	if opts == nil {
		opts = &storage.UpdateOptions{}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectClause := "WHERE id = $1"
	selectArgs := []interface{}{id}
	if opts.UserID != "" || opts.ExactUser {
		selectClause += " AND user_id = $2"
		selectArgs = append(selectArgs, opts.UserID)
	}

	var prior string
	query := fmt.Sprintf("SELECT content FROM %s %s FOR UPDATE", c.collectionName, selectClause)
	err = tx.QueryRowContext(ctx, query, selectArgs...).Scan(&prior)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Update: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	now := time.Now().UTC()

	historyQuery := fmt.Sprintf(`
		INSERT INTO %s_history (memory_id, content, replaced_at) VALUES ($1, $2, $3)
	`, c.collectionName)
	if _, err := tx.ExecContext(ctx, historyQuery, id, prior, now); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s SET content = $1, embedding = $2, updated_at = $3 WHERE id = $4
	`, c.collectionName)
	updateArgs := []interface{}{content, vectorToString(embedding), now, id}
	if opts.Metadata != nil {
		metadataJSON, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
		updateQuery = fmt.Sprintf(`
			UPDATE %s SET content = $1, embedding = $2, metadata = $3, updated_at = $4 WHERE id = $5
		`, c.collectionName)
		updateArgs = []interface{}{content, vectorToString(embedding), string(metadataJSON), now, id}
	}
	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	if c.historyLimit > 0 {
		trimQuery := fmt.Sprintf(`
			DELETE FROM %s_history
			WHERE memory_id = $1 AND id NOT IN (
				SELECT id FROM %s_history WHERE memory_id = $1 ORDER BY id DESC LIMIT $2
			)
		`, c.collectionName, c.collectionName)
		if _, err := tx.ExecContext(ctx, trimQuery, id, c.historyLimit); err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	return c.Get(ctx, id, &storage.GetOptions{UserID: opts.UserID})
}

// Delete deletes a memory and its version history.
func (c *Client) Delete(ctx context.Context, id int64, opts *storage.DeleteOptions) error {
	if opts == nil {
		opts = &storage.DeleteOptions{}
	}

	whereClause := "WHERE id = $1"
	args := []interface{}{id}
	if opts.UserID != "" {
		whereClause += " AND user_id = $2"
		args = append(args, opts.UserID)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("DELETE FROM %s %s", c.collectionName, whereClause)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("Delete: %w", storage.ErrNotFound)
	}

	historyQuery := fmt.Sprintf("DELETE FROM %s_history WHERE memory_id = $1", c.collectionName)
	if _, err := tx.ExecContext(ctx, historyQuery, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	return nil
}

// GetAll retrieves all memories, newest first, with optional pagination.
func (c *Client) GetAll(ctx context.Context, opts *storage.GetAllOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.GetAllOptions{}
	}

	whereClause := ""
	var args []interface{}
	if opts.UserID != "" {
		whereClause = "WHERE user_id = $1"
		args = append(args, opts.UserID)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, metadata, created_at, updated_at
		FROM %s
		%s
		ORDER BY created_at DESC
	`, c.collectionName, whereClause)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, opts.Limit, opts.Offset)
	} else if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	defer func() { _ = rows.Close() }()

	memories, err := scanMemories(rows, false)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}

	for _, memory := range memories {
		history, err := c.loadHistory(ctx, memory.ID)
		if err != nil {
			return nil, fmt.Errorf("GetAll: %w", err)
		}
		memory.History = history
	}

	return memories, nil
}

// DeleteAll deletes all memories matching the given owner filter.
func (c *Client) DeleteAll(ctx context.Context, opts *storage.DeleteAllOptions) error {
	if opts == nil {
		opts = &storage.DeleteAllOptions{}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("DeleteAll: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if opts.UserID != "" {
		historyQuery := fmt.Sprintf(`
			DELETE FROM %s_history WHERE memory_id IN (
				SELECT id FROM %s WHERE user_id = $1
			)
		`, c.collectionName, c.collectionName)
		if _, err := tx.ExecContext(ctx, historyQuery, opts.UserID); err != nil {
			return fmt.Errorf("DeleteAll: %w", err)
		}

		query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", c.collectionName)
		if _, err := tx.ExecContext(ctx, query, opts.UserID); err != nil {
			return fmt.Errorf("DeleteAll: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s_history", c.collectionName)); err != nil {
			return fmt.Errorf("DeleteAll: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", c.collectionName)); err != nil {
			return fmt.Errorf("DeleteAll: %w", err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Client) loadHistory(ctx context.Context, id int64) ([]storage.HistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT content, replaced_at FROM %s_history WHERE memory_id = $1 ORDER BY id
	`, c.collectionName)

	rows, err := c.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var history []storage.HistoryEntry
	for rows.Next() {
		var entry storage.HistoryEntry
		if err := rows.Scan(&entry.Content, &entry.ReplacedAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}
