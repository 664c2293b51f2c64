package prober

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// parsePS parses `ps -axww -o pid=,args=` output. The name is derived from
// the executable path, which may itself contain spaces on macOS.
func parsePS(out string) []ProcessInfo {
	var procs []ProcessInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		pidStr, args, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		args = strings.TrimSpace(args)

		exe := args
		if i := strings.Index(exe, " --"); i >= 0 {
			exe = exe[:i]
		}

		procs = append(procs, ProcessInfo{
			PID:         pid,
			Name:        filepath.Base(exe),
			CommandLine: args,
		})
	}
	return procs
}

// parseCIMJSON parses ConvertTo-Json output of Win32_Process objects.
// A single result is emitted as an object rather than an array.
func parseCIMJSON(out string) []ProcessInfo {
	res := gjson.Parse(strings.TrimSpace(out))
	if !res.Exists() {
		return nil
	}

	items := []gjson.Result{res}
	if res.IsArray() {
		items = res.Array()
	}

	procs := make([]ProcessInfo, 0, len(items))
	for _, item := range items {
		pid := int(item.Get("ProcessId").Int())
		if pid <= 0 {
			continue
		}
		procs = append(procs, ProcessInfo{
			PID:         pid,
			Name:        item.Get("Name").String(),
			CommandLine: item.Get("CommandLine").String(),
		})
	}
	return procs
}
