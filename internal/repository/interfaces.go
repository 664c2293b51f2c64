// Package repository provides persistence for environments.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/chromenv/internal/models"
)

// EnvironmentRepository stores environment records. Lookups return nil, nil
// when no matching record exists.
type EnvironmentRepository interface {
	Create(ctx context.Context, env *models.Environment) error
	GetByID(ctx context.Context, id string) (*models.Environment, error)
	GetActive(ctx context.Context, id string) (*models.Environment, error)
	GetDeleted(ctx context.Context, id string) (*models.Environment, error)
	ListActive(ctx context.Context) ([]*models.Environment, error)
	ListDeleted(ctx context.Context) ([]*models.Environment, error)
	ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Environment, error)
	Update(ctx context.Context, env *models.Environment) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
	Restore(ctx context.Context, id string) (bool, error)
	HardDelete(ctx context.Context, id string) (bool, error)
	ActiveGroups(ctx context.Context) ([]string, error)
	CountActiveInGroup(ctx context.Context, group string) (int, error)
}
