package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/chromenv/internal/http/handlers"
	"github.com/jmylchreest/chromenv/internal/http/mw"
)

// Prefix is the base path of every API route.
const Prefix = "/api/v1"

// Handlers groups the handler implementations registered by Register.
type Handlers struct {
	Environments *handlers.EnvironmentHandler
	Settings     *handlers.SettingsHandler
	Events       *handlers.EventsHandler
}

// Register registers all API routes with the given Huma API instance.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// System
	// =========================================================================

	mw.PublicGet(api, Prefix+"/health", handlers.HealthCheck,
		mw.WithTags("System"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))
	mw.ProtectedGet(api, Prefix+"/logging/level", handlers.GetLogLevel,
		mw.WithTags("System"),
		mw.WithSummary("Get log level"),
		mw.WithOperationID("getLogLevel"))
	mw.ProtectedPut(api, Prefix+"/logging/level", handlers.SetLogLevel,
		mw.WithTags("System"),
		mw.WithSummary("Set log level"),
		mw.WithOperationID("setLogLevel"))

	// =========================================================================
	// Environments
	// =========================================================================

	env := h.Environments
	mw.ProtectedGet(api, Prefix+"/environments", env.ListEnvironments,
		mw.WithTags("Environments"),
		mw.WithSummary("List environments"),
		mw.WithOperationID("listEnvironments"))
	mw.ProtectedPost(api, Prefix+"/environments", env.CreateEnvironment,
		mw.WithTags("Environments"),
		mw.WithSummary("Create environment"),
		mw.WithDefaultStatus(http.StatusCreated),
		mw.WithOperationID("createEnvironment"))
	mw.ProtectedGet(api, Prefix+"/environments/{id}", env.GetEnvironment,
		mw.WithTags("Environments"),
		mw.WithSummary("Get environment"),
		mw.WithOperationID("getEnvironment"))
	mw.ProtectedPatch(api, Prefix+"/environments/{id}", env.UpdateEnvironment,
		mw.WithTags("Environments"),
		mw.WithSummary("Update environment"),
		mw.WithDescription("Replaces the supplied fields. The id, data directory and creation time cannot change."),
		mw.WithOperationID("updateEnvironment"))
	mw.ProtectedDelete(api, Prefix+"/environments/{id}", env.DeleteEnvironment,
		mw.WithTags("Environments"),
		mw.WithSummary("Move environment to trash"),
		mw.WithDescription("Closes the browser if running. The profile directory is kept until the environment is purged."),
		mw.WithOperationID("deleteEnvironment"))

	// --- Instances ---
	mw.ProtectedPost(api, Prefix+"/environments/{id}/launch", env.LaunchEnvironment,
		mw.WithTags("Instances"),
		mw.WithSummary("Launch browser"),
		mw.WithDescription("Returns once the process is spawned. The instance stays launching until its debugging endpoint is confirmed."),
		mw.WithOperationID("launchEnvironment"))
	mw.ProtectedPost(api, Prefix+"/environments/{id}/close", env.CloseEnvironment,
		mw.WithTags("Instances"),
		mw.WithSummary("Close browser"),
		mw.WithOperationID("closeEnvironment"))
	mw.ProtectedGet(api, Prefix+"/instances", env.ListInstances,
		mw.WithTags("Instances"),
		mw.WithSummary("List running instances"),
		mw.WithOperationID("listInstances"))

	// =========================================================================
	// Trash
	// =========================================================================

	mw.ProtectedGet(api, Prefix+"/trash", env.ListTrash,
		mw.WithTags("Trash"),
		mw.WithSummary("List trashed environments"),
		mw.WithOperationID("listTrash"))
	mw.ProtectedPost(api, Prefix+"/trash/{id}/restore", env.RestoreEnvironment,
		mw.WithTags("Trash"),
		mw.WithSummary("Restore environment"),
		mw.WithOperationID("restoreEnvironment"))
	mw.ProtectedDelete(api, Prefix+"/trash/{id}", env.PermanentlyDeleteEnvironment,
		mw.WithTags("Trash"),
		mw.WithSummary("Permanently delete environment"),
		mw.WithOperationID("permanentlyDeleteEnvironment"))
	mw.ProtectedPost(api, Prefix+"/trash/purge", env.PurgeTrash,
		mw.WithTags("Trash"),
		mw.WithSummary("Purge expired environments"),
		mw.WithOperationID("purgeTrash"))

	// =========================================================================
	// Groups
	// =========================================================================

	mw.ProtectedGet(api, Prefix+"/groups", env.ListGroups,
		mw.WithTags("Groups"),
		mw.WithSummary("List groups in use"),
		mw.WithOperationID("listGroups"))
	mw.ProtectedGet(api, Prefix+"/groups/empty", env.ListEmptyGroups,
		mw.WithTags("Groups"),
		mw.WithSummary("List declared empty groups"),
		mw.WithOperationID("listEmptyGroups"))
	mw.ProtectedPost(api, Prefix+"/groups", env.DeclareGroup,
		mw.WithTags("Groups"),
		mw.WithSummary("Declare group"),
		mw.WithOperationID("declareGroup"))
	mw.ProtectedDelete(api, Prefix+"/groups/{name}", env.DeleteGroup,
		mw.WithTags("Groups"),
		mw.WithSummary("Delete empty group"),
		mw.WithOperationID("deleteGroup"))

	// =========================================================================
	// Settings & events
	// =========================================================================

	mw.ProtectedGet(api, Prefix+"/settings", h.Settings.GetSettings,
		mw.WithTags("Settings"),
		mw.WithSummary("Get settings"),
		mw.WithOperationID("getSettings"))
	mw.ProtectedPut(api, Prefix+"/settings", h.Settings.UpdateSettings,
		mw.WithTags("Settings"),
		mw.WithSummary("Update settings"),
		mw.WithOperationID("updateSettings"))

	h.Events.Register(api, Prefix+"/events")
}
