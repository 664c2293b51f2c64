package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// TrashedEnvironmentOutput is an environment in the trash.
type TrashedEnvironmentOutput struct {
	EnvironmentOutput
	DaysRemaining int `json:"days_remaining" doc:"Whole days until permanent deletion"`
}

// ListTrashOutput represents the trash listing.
type ListTrashOutput struct {
	Body struct {
		Environments []TrashedEnvironmentOutput `json:"environments" doc:"Trashed environments, most recently deleted first"`
	}
}

// ListTrash returns trashed environments with their remaining retention.
func (h *EnvironmentHandler) ListTrash(ctx context.Context, input *struct{}) (*ListTrashOutput, error) {
	envs, err := h.svc.ListDeleted(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}

	out := &ListTrashOutput{}
	out.Body.Environments = make([]TrashedEnvironmentOutput, 0, len(envs))
	for _, e := range envs {
		out.Body.Environments = append(out.Body.Environments, TrashedEnvironmentOutput{
			EnvironmentOutput: environmentToOutput(&e.Environment),
			DaysRemaining:     e.DaysRemaining,
		})
	}
	return out, nil
}

// RestoreEnvironment takes an environment back out of the trash.
func (h *EnvironmentHandler) RestoreEnvironment(ctx context.Context, input *EnvironmentIDInput) (*GetEnvironmentOutput, error) {
	ok, err := h.svc.Restore(ctx, input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	if !ok {
		return nil, huma.Error404NotFound("environment not in trash")
	}

	status, err := h.svc.Get(ctx, input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &GetEnvironmentOutput{Body: statusToOutput(*status)}, nil
}

// PermanentlyDeleteEnvironment removes a trashed environment and its profile directory.
func (h *EnvironmentHandler) PermanentlyDeleteEnvironment(ctx context.Context, input *EnvironmentIDInput) (*struct{}, error) {
	ok, err := h.svc.PermanentlyDelete(ctx, input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	if !ok {
		return nil, huma.Error404NotFound("environment not in trash")
	}
	return nil, nil
}

// PurgeTrashOutput reports how many environments were removed.
type PurgeTrashOutput struct {
	Body struct {
		Purged int `json:"purged" doc:"Number of environments permanently deleted"`
	}
}

// PurgeTrash permanently deletes environments past the retention window.
func (h *EnvironmentHandler) PurgeTrash(ctx context.Context, input *struct{}) (*PurgeTrashOutput, error) {
	n, err := h.svc.PurgeExpired(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	out := &PurgeTrashOutput{}
	out.Body.Purged = n
	return out, nil
}
