// Package db is the document store used by the services: string-keyed JSON
// documents grouped in collections, atomic per document only.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Fields is a partial document. Writes merge these keys into the stored
// document and leave every other key untouched.
type Fields map[string]any

// Document is a stored document and its identifier.
type Document struct {
	ID   string
	Data map[string]any
}

// Decode converts the document data into v through its JSON tags.
func (d Document) Decode(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Filter is an equality match on a top-level field.
type Filter struct {
	Field string
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Store is the contract the services need from a document database.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set merges fields into the document, creating it when absent.
	Set(ctx context.Context, collection, id string, fields Fields) error
	// Create inserts a new document and returns ErrAlreadyExists when one is present.
	Create(ctx context.Context, collection, id string, fields Fields) error
	// Update merges fields into an existing document and returns ErrNotFound otherwise.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Query returns up to limit documents matching every filter. limit <= 0 means no limit.
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Document, error)
	Close() error
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if !fieldNamePattern.MatchString(f.Field) {
			return fmt.Errorf("invalid filter field %q", f.Field)
		}
	}
	return nil
}
