// Package models defines the domain models for the application.
package models

import (
	"strings"
	"time"
)

// ========================================
// Environments
// ========================================

// Environment is a named, persistent browser profile and its on-disk data directory.
type Environment struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	GroupName     string     `json:"group_name"`
	Notes         string     `json:"notes"`
	WalletAddress string     `json:"wallet_address,omitempty"`
	DataDir       string     `json:"data_dir"`
	Tags          []string   `json:"tags"`
	Proxy         string     `json:"proxy,omitempty"`
	ProxyLabel    string     `json:"proxy_label,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsed      time.Time  `json:"last_used"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"` // Set while in trash
}

// IsDeleted reports whether the environment has been soft-deleted.
func (e *Environment) IsDeleted() bool {
	return e.DeletedAt != nil
}

// EnvironmentUpdate carries the replaceable fields of an environment.
// Nil fields are left untouched. ID, DataDir and CreatedAt are not replaceable.
type EnvironmentUpdate struct {
	Name          *string   `json:"name,omitempty"`
	GroupName     *string   `json:"group_name,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	Proxy         *string   `json:"proxy,omitempty"`
	ProxyLabel    *string   `json:"proxy_label,omitempty"`
	UserAgent     *string   `json:"user_agent,omitempty"`
}

// Apply copies the set fields onto env and reports whether anything changed.
// Everything but notes is stored trimmed.
func (u EnvironmentUpdate) Apply(env *Environment) bool {
	changed := false
	set := func(dst *string, src *string, trim bool) {
		if src == nil {
			return
		}
		v := *src
		if trim {
			v = strings.TrimSpace(v)
		}
		if *dst != v {
			*dst = v
			changed = true
		}
	}

	set(&env.Name, u.Name, true)
	set(&env.GroupName, u.GroupName, true)
	set(&env.Notes, u.Notes, false)
	set(&env.WalletAddress, u.WalletAddress, true)
	set(&env.Proxy, u.Proxy, true)
	set(&env.ProxyLabel, u.ProxyLabel, true)
	set(&env.UserAgent, u.UserAgent, true)

	if u.Tags != nil {
		tags := NormalizeTags(*u.Tags)
		if !equalStrings(env.Tags, tags) {
			env.Tags = tags
			changed = true
		}
	}

	return changed
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ========================================
// Instances
// ========================================

// InstanceState is the lifecycle state of an environment's browser process.
type InstanceState string

const (
	InstanceIdle      InstanceState = "idle"
	InstanceLaunching InstanceState = "launching" // Spawned, liveness not yet confirmed
	InstanceRunning   InstanceState = "running"
)

// InstanceInfo is a snapshot of a running instance.
type InstanceInfo struct {
	EnvironmentID string        `json:"environment_id"`
	State         InstanceState `json:"state"`
	DebugPort     int           `json:"debug_port"`
	LaunchedAt    time.Time     `json:"launched_at"`
	Connected     bool          `json:"connected"` // A live protocol channel is attached
}

// EnvironmentStatus is an environment annotated with its live instance state.
type EnvironmentStatus struct {
	Environment
	State     InstanceState `json:"state"`
	DebugPort int           `json:"debug_port,omitempty"`
}

// TrashedEnvironment is a soft-deleted environment with its remaining retention.
type TrashedEnvironment struct {
	Environment
	DaysRemaining int `json:"days_remaining"`
}
