// Package storage defines the persistence interface for collections and vector records.
package storage

import (
	"context"

	"github.com/hyperjump/mieru/internal/models"
)

// Storage defines collection and vector persistence operations.
type Storage interface {
	// Collection operations
	CreateCollection(ctx context.Context, col *models.Collection) error
	GetCollection(ctx context.Context, name string) (*models.Collection, error)
	ListCollections(ctx context.Context) ([]*models.Collection, error)
	DeleteCollection(ctx context.Context, name string) error

	// Vector operations
	InsertVector(ctx context.Context, collection string, rec *models.VectorRecord) (int64, error)
	GetVector(ctx context.Context, collection string, id int64) (*models.VectorRecord, error)
	ListVectors(ctx context.Context, collection string, offset, limit int) ([]*models.VectorRecord, error)
	DeleteVector(ctx context.Context, collection string, id int64) error

	// Batch operations
	BatchInsertVectors(ctx context.Context, collection string, recs []*models.VectorRecord) ([]int64, error)

	// Stats
	CountCollections(ctx context.Context) (int64, error)
	CountVectors(ctx context.Context, collection string) (int64, error)

	Close() error
}
