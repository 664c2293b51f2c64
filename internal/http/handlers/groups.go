package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// GroupsOutput lists group names.
type GroupsOutput struct {
	Body struct {
		Groups []string `json:"groups" doc:"Group names"`
	}
}

func groupsOutput(groups []string) *GroupsOutput {
	out := &GroupsOutput{}
	out.Body.Groups = groups
	if out.Body.Groups == nil {
		out.Body.Groups = []string{}
	}
	return out
}

// ListGroups returns the groups referenced by active environments.
func (h *EnvironmentHandler) ListGroups(ctx context.Context, input *struct{}) (*GroupsOutput, error) {
	groups, err := h.svc.Groups(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	return groupsOutput(groups), nil
}

// ListEmptyGroups returns declared groups without active environments.
func (h *EnvironmentHandler) ListEmptyGroups(ctx context.Context, input *struct{}) (*GroupsOutput, error) {
	groups, err := h.svc.EmptyGroups(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	return groupsOutput(groups), nil
}

// DeclareGroupInput represents a group declaration.
type DeclareGroupInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"100" doc:"Group name"`
	}
}

// DeclareGroup records a group before any environment uses it.
func (h *EnvironmentHandler) DeclareGroup(ctx context.Context, input *DeclareGroupInput) (*struct{}, error) {
	if err := h.svc.DeclareGroup(input.Body.Name); err != nil {
		return nil, toHumaError(err)
	}
	return nil, nil
}

// GroupNameInput identifies a group by path.
type GroupNameInput struct {
	Name string `path:"name" doc:"Group name"`
}

// DeleteGroup removes a declared group that no active environment references.
func (h *EnvironmentHandler) DeleteGroup(ctx context.Context, input *GroupNameInput) (*struct{}, error) {
	ok, err := h.svc.DeleteEmptyGroup(ctx, input.Name)
	if err != nil {
		return nil, toHumaError(err)
	}
	if !ok {
		return nil, huma.Error409Conflict("group is unknown or still in use")
	}
	return nil, nil
}
