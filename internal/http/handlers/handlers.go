// Package handlers contains HTTP handlers for the control API.
package handlers

import (
	"context"

	"github.com/jmylchreest/chromenv/internal/models"
	"github.com/jmylchreest/chromenv/internal/orchestrator"
	"github.com/jmylchreest/chromenv/internal/version"
)

// EnvironmentService is the orchestrator surface the handlers drive.
type EnvironmentService interface {
	Create(ctx context.Context, req orchestrator.CreateRequest) (*models.Environment, error)
	Get(ctx context.Context, id string) (*models.EnvironmentStatus, error)
	List(ctx context.Context) ([]models.EnvironmentStatus, error)
	Update(ctx context.Context, id string, upd models.EnvironmentUpdate) (*models.Environment, error)
	Delete(ctx context.Context, id string) (bool, error)

	Launch(ctx context.Context, id string) (models.InstanceInfo, error)
	Close(ctx context.Context, id string) (bool, error)
	Instances() []models.InstanceInfo

	ListDeleted(ctx context.Context) ([]models.TrashedEnvironment, error)
	Restore(ctx context.Context, id string) (bool, error)
	PermanentlyDelete(ctx context.Context, id string) (bool, error)
	PurgeExpired(ctx context.Context) (int, error)

	Groups(ctx context.Context) ([]string, error)
	EmptyGroups(ctx context.Context) ([]string, error)
	DeclareGroup(name string) error
	DeleteEmptyGroup(ctx context.Context, name string) (bool, error)
}

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string       `json:"status" doc:"Always \"healthy\" when the daemon answers"`
		Version version.Info `json:"version" doc:"Build information"`
	}
}

// HealthCheck returns the health status of the daemon.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get()
	return out, nil
}
