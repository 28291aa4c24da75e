// Package sqlite provides a SQLite implementation of the vector store.
//
// SQLite is a lightweight, file-based database suitable for local development
// and small deployments. Vectors are stored as JSON strings in TEXT fields,
// and similarity search uses in-memory cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// Client implements storage.VectorStore using SQLite as the backend.
type Client struct {
	db             *sql.DB
	collectionName string
	dimensions     int
	historyLimit   int
}

// Config contains configuration for creating a SQLite vector store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CollectionName is the name of the table to use.
	CollectionName string

	// EmbeddingModelDims is the dimension of embedding vectors.
	EmbeddingModelDims int

	// HistoryLimit bounds the version history per memory (0 = unlimited).
	HistoryLimit int
}

// NewClient creates a new SQLite vector store client and initializes the
// memory and history tables.
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
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
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	historyQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			replaced_at DATETIME NOT NULL
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, historyQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	historyIndexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_history_memory ON %s_history(memory_id)
	`, c.collectionName, c.collectionName)
	if _, err := c.db.ExecContext(ctx, historyIndexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a memory into the SQLite database.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, content, embedding, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.collectionName)

	embeddingJSON, err := json.Marshal(memory.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	metadataJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.UserID,
		memory.Content,
		string(embeddingJSON),
		string(metadataJSON),
		memory.CreatedAt,
		memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector similarity search using cosine similarity.
//
// SQLite has no native vector operations, so similarity is calculated in
// memory over the owner's rows. Returned memories carry no version history.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	whereClause, args := buildWhereClause(opts.UserID, opts.ExactUser)

	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, metadata, created_at, updated_at
		FROM %s
		%s
		ORDER BY id
	`, c.collectionName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("Search: %w", err)
		}

		memory.Score = cosineSimilarity(embedding, memory.Embedding)
		if memory.Score >= opts.MinScore {
			memories = append(memories, memory)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	return sortByScore(memories, opts.Limit), nil
}

// Get retrieves a memory by ID, including its version history.
func (c *Client) Get(ctx context.Context, id int64, opts *storage.GetOptions) (*storage.Memory, error) {
	if opts == nil {
		opts = &storage.GetOptions{}
	}

	whereClause := "WHERE id = ?"
	args := []interface{}{id}
	if opts.UserID != "" {
		whereClause += " AND user_id = ?"
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

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	selectClause := "WHERE id = ?"
	selectArgs := []interface{}{id}
	if opts.UserID != "" || opts.ExactUser {
		selectClause += " AND user_id = ?"
		selectArgs = append(selectArgs, opts.UserID)
	}

	var prior string
	query := fmt.Sprintf("SELECT content FROM %s %s", c.collectionName, selectClause)
	err = tx.QueryRowContext(ctx, query, selectArgs...).Scan(&prior)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Update: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	now := time.Now().UTC()

	historyQuery := fmt.Sprintf(`
		INSERT INTO %s_history (memory_id, content, replaced_at) VALUES (?, ?, ?)
	`, c.collectionName)
	if _, err := tx.ExecContext(ctx, historyQuery, id, prior, now); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s SET content = ?, embedding = ?, updated_at = ? WHERE id = ?
	`, c.collectionName)
	updateArgs := []interface{}{content, string(embeddingJSON), now, id}
	if opts.Metadata != nil {
		metadataJSON, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
		updateQuery = fmt.Sprintf(`
			UPDATE %s SET content = ?, embedding = ?, metadata = ?, updated_at = ? WHERE id = ?
		`, c.collectionName)
		updateArgs = []interface{}{content, string(embeddingJSON), string(metadataJSON), now, id}
	}
	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	if c.historyLimit > 0 {
		trimQuery := fmt.Sprintf(`
			DELETE FROM %s_history
			WHERE memory_id = ? AND id NOT IN (
				SELECT id FROM %s_history WHERE memory_id = ? ORDER BY id DESC LIMIT ?
			)
		`, c.collectionName, c.collectionName)
		if _, err := tx.ExecContext(ctx, trimQuery, id, id, c.historyLimit); err != nil {
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

	whereClause := "WHERE id = ?"
	args := []interface{}{id}
	if opts.UserID != "" {
		whereClause += " AND user_id = ?"
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

	historyQuery := fmt.Sprintf("DELETE FROM %s_history WHERE memory_id = ?", c.collectionName)
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

	whereClause, args := buildWhereClause(opts.UserID, false)

	query := fmt.Sprintf(`
		SELECT id, user_id, content, embedding, metadata, created_at, updated_at
		FROM %s
		%s
		ORDER BY created_at DESC
	`, c.collectionName, whereClause)

	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	} else if opts.Offset > 0 {
		// SQLite needs a LIMIT for OFFSET; -1 means unlimited.
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("GetAll: %w", err)
		}
		memories = append(memories, memory)
	}
	if err := rows.Err(); err != nil {
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
				SELECT id FROM %s WHERE user_id = ?
			)
		`, c.collectionName, c.collectionName)
		if _, err := tx.ExecContext(ctx, historyQuery, opts.UserID); err != nil {
			return fmt.Errorf("DeleteAll: %w", err)
		}

		query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", c.collectionName)
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
	return c.db.Close()
}

func (c *Client) loadHistory(ctx context.Context, id int64) ([]storage.HistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT content, replaced_at FROM %s_history WHERE memory_id = ? ORDER BY id
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
