package handlers

import (
	"context"

	"github.com/jmylchreest/chromenv/internal/browser"
	"github.com/jmylchreest/chromenv/internal/config"
)

// SettingsStore persists user settings.
type SettingsStore interface {
	Get() config.Settings
	Save(config.Settings) error
}

// SettingsHandler handles the settings endpoints.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// GlobalProxyBody is the global proxy in API payloads.
type GlobalProxyBody struct {
	Enabled bool   `json:"enabled" doc:"Apply the proxy to environments without their own"`
	Address string `json:"address,omitempty" doc:"Proxy URL"`
}

// SettingsBody is the settings document in API payloads.
type SettingsBody struct {
	DataPath    string          `json:"data_path" minLength:"1" doc:"Absolute directory holding environment profiles"`
	GlobalProxy GlobalProxyBody `json:"global_proxy" doc:"Fallback proxy"`
	StartupURL  string          `json:"startup_url,omitempty" doc:"Page opened on launch"`
	ChromePath  string          `json:"chrome_path,omitempty" doc:"Browser executable; empty for auto-detection"`
}

func settingsToBody(s config.Settings) SettingsBody {
	return SettingsBody{
		DataPath:    s.DataPath,
		GlobalProxy: GlobalProxyBody{
			Enabled: s.GlobalProxy.Enabled,
			Address: browser.MaskProxyCredentials(s.GlobalProxy.Address),
		},
		StartupURL:  s.StartupURL,
		ChromePath:  s.ChromePath,
	}
}

// SettingsOutput represents the settings response.
type SettingsOutput struct {
	Body SettingsBody
}

// GetSettings returns the current settings.
func (h *SettingsHandler) GetSettings(ctx context.Context, input *struct{}) (*SettingsOutput, error) {
	return &SettingsOutput{Body: settingsToBody(h.store.Get())}, nil
}

// UpdateSettingsInput represents a full settings replacement.
type UpdateSettingsInput struct {
	Body SettingsBody
}

// UpdateSettings validates and saves the settings. The data path must be
// writable; existing environments keep their directories. A proxy address sent
// back in its masked form keeps the stored credentials.
func (h *SettingsHandler) UpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*SettingsOutput, error) {
	address := input.Body.GlobalProxy.Address
	if current := h.store.Get().GlobalProxy.Address; address != current && address == browser.MaskProxyCredentials(current) {
		address = current
	}
	s := config.Settings{
		DataPath: input.Body.DataPath,
		GlobalProxy: config.GlobalProxy{
			Enabled: input.Body.GlobalProxy.Enabled,
			Address: address,
		},
		StartupURL: input.Body.StartupURL,
		ChromePath: input.Body.ChromePath,
	}
	if err := h.store.Save(s); err != nil {
		return nil, toHumaError(err)
	}
	return &SettingsOutput{Body: settingsToBody(h.store.Get())}, nil
}
