// Package browser resolves the Chromium binary and spawns profile-isolated browser processes.
package browser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/jmylchreest/chromenv/internal/models"
)

// Flags beyond the ones rod names.
const (
	flagNoFirstRun           flags.Flag = "no-first-run"
	flagNoDefaultBrowser     flags.Flag = "no-default-browser-check"
	flagProxyBypassList      flags.Flag = "proxy-bypass-list"
	flagUserAgent            flags.Flag = "user-agent"
	flagRestoreLastSession   flags.Flag = "restore-last-session"
	flagRemoteAllowOrigins   flags.Flag = "remote-allow-origins"
	flagDisableSessionCrashB flags.Flag = "hide-crash-restore-bubble"
)

// ProxyBypassList keeps loopback traffic off the proxy.
const ProxyBypassList = "<-loopback>;localhost;127.0.0.1"

// Spec is everything needed to start one environment's browser.
type Spec struct {
	Environment *models.Environment
	BinaryPath  string
	DebugPort   int
	Proxy       string // Effective proxy, empty for none
	StartupURL  string
	ExtraFlags  map[flags.Flag]string
}

// Args builds the command-line arguments for spec. The startup URL, if any, is last.
func Args(spec Spec) []string {
	set := map[flags.Flag]string{
		flags.UserDataDir:         spec.Environment.DataDir,
		flags.RemoteDebuggingPort: strconv.Itoa(spec.DebugPort),
		flagRemoteAllowOrigins:    "http://127.0.0.1:" + strconv.Itoa(spec.DebugPort),
		flagNoFirstRun:            "",
		flagNoDefaultBrowser:      "",
		flagRestoreLastSession:    "",
		flagDisableSessionCrashB:  "",
	}

	if spec.Proxy != "" {
		set[flags.ProxyServer] = spec.Proxy
		set[flagProxyBypassList] = ProxyBypassList
	}
	if ua := strings.TrimSpace(spec.Environment.UserAgent); ua != "" {
		set[flagUserAgent] = ua
	}
	for k, v := range spec.ExtraFlags {
		set[k] = v
	}

	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, string(k))
	}
	sort.Strings(names)

	args := make([]string, 0, len(set)+1)
	for _, name := range names {
		if v := set[flags.Flag(name)]; v != "" {
			args = append(args, fmt.Sprintf("--%s=%s", name, v))
		} else {
			args = append(args, "--"+name)
		}
	}

	if spec.StartupURL != "" {
		args = append(args, spec.StartupURL)
	}
	return args
}
