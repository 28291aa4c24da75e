// Package mysql provides a MySQL implementation of the vector store.
//
// Vectors are stored as JSON strings and similarity search uses in-memory
// cosine similarity, so it works on stock MySQL without vector extensions.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// Client implements storage.VectorStore backed by MySQL.
type Client struct {
	db             *sql.DB
	collectionName string
	dimensions     int
	historyLimit   int
}

// Config contains MySQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int

	// HistoryLimit bounds the version history per memory (0 = unlimited).
	HistoryLimit int
}

// NewClient creates a new MySQL client and initializes the memory and
// history tables.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding LONGTEXT NOT NULL,
			metadata JSON,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			INDEX idx_user (user_id)
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	historyQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_history (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			memory_id BIGINT NOT NULL,
			content TEXT NOT NULL,
			replaced_at DATETIME(6) NOT NULL,
			INDEX idx_memory (memory_id)
		)
	`, c.collectionName)

	if _, err := c.db.ExecContext(ctx, historyQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a memory.
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

// Search performs vector similarity search with in-memory cosine similarity.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	whereClause := ""
	var args []interface{}
	if opts.UserID != "" || opts.ExactUser {
		whereClause = "WHERE user_id = ?"
		args = append(args, opts.UserID)
	}

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

	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Score > memories[j].Score
	})
	if opts.Limit > 0 && len(memories) > opts.Limit {
		memories = memories[:opts.Limit]
	}

	return memories, nil
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
		// MySQL cannot delete from a table referenced in a subquery, so the
		// surviving ids are wrapped in a derived table.
		trimQuery := fmt.Sprintf(`
			DELETE FROM %s_history
			WHERE memory_id = ? AND id NOT IN (
				SELECT id FROM (
					SELECT id FROM %s_history WHERE memory_id = ? ORDER BY id DESC LIMIT ?
				) keep
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

	whereClause := ""
	var args []interface{}
	if opts.UserID != "" {
		whereClause = "WHERE user_id = ?"
		args = append(args, opts.UserID)
	}

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
		// MySQL requires a LIMIT for OFFSET; the documented way to leave it
		// unbounded is the maximum row count.
		query += " LIMIT 18446744073709551615 OFFSET ?"
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
			DELETE h FROM %s_history h
			JOIN %s m ON h.memory_id = m.id
			WHERE m.user_id = ?
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
	if c.db != nil {
		return c.db.Close()
	}
	return nil
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

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (*storage.Memory, error) {
	var memory storage.Memory
	var embeddingJSON string
	var metadataJSON sql.NullString

	err := row.Scan(
		&memory.ID,
		&memory.UserID,
		&memory.Content,
		&embeddingJSON,
		&metadataJSON,
		&memory.CreatedAt,
		&memory.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embeddingJSON), &memory.Embedding); err != nil {
		return nil, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &memory.Metadata); err != nil {
			return nil, err
		}
	}

	return &memory, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
