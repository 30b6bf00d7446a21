// Package gormdoc stores configuration documents as JSON rows through GORM.
// The postgres and sqlite plugins share it.
package gormdoc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/chirino/console-migrate/internal/model"
	registrystore "github.com/chirino/console-migrate/internal/registry/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Row is one stored document.
type Row struct {
	Collection string    `gorm:"primaryKey;column:collection;index:idx_config_documents_name,priority:1"`
	ID         string    `gorm:"primaryKey;column:id"`
	Name       string    `gorm:"column:name;index:idx_config_documents_name,priority:2"`
	Body       string    `gorm:"column:body;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

// TableName implements gorm's Tabler.
func (Row) TableName() string { return "config_documents" }

// Store implements DocumentStore on a gorm.DB.
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates the documents table when missing.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Row{})
}

func (s *Store) NewID() string { return uuid.NewString() }

func (s *Store) FindAll(ctx context.Context, c model.Collection) ([]model.Document, error) {
	var rows []Row
	if err := s.db.WithContext(ctx).
		Where("collection = ?", string(c)).
		Order("created_at, id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find %s: %w", c, err)
	}
	docs := make([]model.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := decode(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) FindOne(ctx context.Context, c model.Collection, match registrystore.Match) (model.Document, error) {
	q := s.db.WithContext(ctx).Where("collection = ?", string(c))
	switch match.Field {
	case model.FieldID:
		q = q.Where("id = ?", match.Value)
	case model.FieldName:
		q = q.Where("name = ?", match.Value)
	default:
		return s.scan(ctx, c, match)
	}
	var row Row
	err := q.Order("created_at, id").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(c, match)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c, err)
	}
	return decode(row)
}

// scan matches on fields that have no column of their own.
func (s *Store) scan(ctx context.Context, c model.Collection, match registrystore.Match) (model.Document, error) {
	docs, err := s.FindAll(ctx, c)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if reflect.DeepEqual(d[match.Field], match.Value) {
			return d, nil
		}
	}
	return nil, notFound(c, match)
}

func (s *Store) UpdateFields(ctx context.Context, c model.Collection, id string, patch registrystore.Patch) error {
	if patch.IsEmpty() {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Row
		err := tx.Where("collection = ? AND id = ?", string(c), id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &registrystore.NotFoundError{Collection: c, ID: id}
		}
		if err != nil {
			return fmt.Errorf("update %s %s: %w", c, id, err)
		}
		doc, err := decode(row)
		if err != nil {
			return err
		}
		patch.Apply(doc)
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", c, id, err)
		}
		return tx.Model(&Row{}).
			Where("collection = ? AND id = ?", string(c), id).
			Updates(map[string]any{"body": string(body), "name": doc.Name()}).Error
	})
}

func (s *Store) Insert(ctx context.Context, c model.Collection, doc model.Document) (string, error) {
	stored, err := doc.Clone()
	if err != nil {
		return "", err
	}
	if stored == nil {
		stored = model.Document{}
	}
	id := stored.ID()
	if id == "" {
		id = s.NewID()
		stored[model.FieldID] = id
	}
	body, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode %s %s: %w", c, id, err)
	}
	row := Row{
		Collection: string(c),
		ID:         id,
		Name:       stored.Name(),
		Body:       string(body),
		CreatedAt:  time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return "", &registrystore.ConflictError{Collection: c, ID: id, Message: "duplicate key"}
	}
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", c, err)
	}
	return id, nil
}

func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decode(r Row) (model.Document, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(r.Body)))
	dec.UseNumber()
	var doc model.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", r.Collection, r.ID, err)
	}
	if doc == nil {
		doc = model.Document{}
	}
	doc[model.FieldID] = r.ID
	return doc, nil
}

func notFound(c model.Collection, match registrystore.Match) error {
	return &registrystore.NotFoundError{Collection: c, ID: fmt.Sprintf("%s=%v", match.Field, match.Value)}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
