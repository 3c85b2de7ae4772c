package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (collection, id)
);`

// SQLiteStore is an embedded backend for local development. json_patch
// merges the written keys into the stored object.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// 单连接，避免并发写入时出现 SQLITE_BUSY
	conn.SetMaxOpenConns(1)
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: conn}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return decodeRow(id, []byte(raw))
}

func (s *SQLiteStore) Set(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, json(?))
		ON CONFLICT (collection, id) DO UPDATE SET data = json_patch(documents.data, excluded.data)`,
		collection, id, string(raw))
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, json(?))
		ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(raw))
	if err != nil {
		return err
	}
	return requireAffected(res, ErrAlreadyExists)
}

func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET data = json_patch(data, ?) WHERE collection = ? AND id = ?`,
		string(raw), collection, id)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrNotFound)
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)
	args := []any{collection}
	for _, f := range filters {
		// 字段名已通过 validateFilters 校验
		fmt.Fprintf(&b, ` AND json_extract(data, '$.%s') = ?`, f.Field)
		args = append(args, f.Value)
	}
	b.WriteString(` ORDER BY id`)
	if limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		doc, err := decodeRow(id, []byte(data))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result, errNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNone
	}
	return nil
}
