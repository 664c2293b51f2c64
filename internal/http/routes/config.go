// Package routes wires the control API: middleware, Huma configuration and
// route registration.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/chromenv/internal/http/mw"
	"github.com/jmylchreest/chromenv/internal/version"
)

// NewHumaConfig creates the Huma configuration for the control API.
func NewHumaConfig() huma.Config {
	cfg := huma.DefaultConfig("chromenv", version.Get().Version)
	cfg.Info.Description = "Local control API for isolated browser environments: profiles, launches, trash and settings."

	// Disable $schema field in responses
	cfg.CreateHooks = nil

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Control token from CONTROL_TOKEN, sent as `Authorization: Bearer <token>`.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Environments", Description: "Environment records and profile directories"},
		{Name: "Instances", Description: "Launching and closing browsers"},
		{Name: "Trash", Description: "Soft-deleted environments"},
		{Name: "Groups", Description: "Environment groups"},
		{Name: "Settings", Description: "User settings"},
		{Name: "Events", Description: "Change notifications"},
		{Name: "System", Description: "Health and diagnostics"},
	}

	return cfg
}
