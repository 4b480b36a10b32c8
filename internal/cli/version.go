package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/sramp/internal/buildinfo"
	"github.com/aidanlsb/sramp/internal/ui"
)

const defaultModulePath = "github.com/aidanlsb/sramp"

type versionInfo struct {
	Version    string `json:"version"`
	ModulePath string `json:"module_path"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	Modified   bool   `json:"modified"`
	GoVersion  string `json:"go_version"`
	GOOS       string `json:"goos"`
	GOARCH     string `json:"goarch"`
}

var readBuildInfo = debug.ReadBuildInfo

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show sramp version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersionInfo()

		if jsonOutput {
			outputSuccess(info, nil)
			return nil
		}

		fmt.Fprintf(out, "sramp %s\n", info.Version)
		t := ui.NewTable(2)
		t.AddRow(ui.Hint("module"), info.ModulePath)
		if info.Commit != "" {
			t.AddRow(ui.Hint("commit"), info.Commit)
		}
		if info.CommitTime != "" {
			t.AddRow(ui.Hint("commit time"), info.CommitTime)
		}
		t.AddRow(ui.Hint("go"), info.GoVersion)
		t.AddRow(ui.Hint("platform"), info.GOOS+"/"+info.GOARCH)
		t.AddRow(ui.Hint("modified"), strconv.FormatBool(info.Modified))
		fmt.Fprint(out, t.String())

		return nil
	},
}

// currentVersionInfo reads module and VCS data embedded by the Go toolchain,
// falling back to the ldflags values in buildinfo.
func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:    "devel",
		ModulePath: defaultModulePath,
		GoVersion:  runtime.Version(),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}

	if bi, ok := readBuildInfo(); ok && bi != nil {
		settings := make(map[string]string, len(bi.Settings))
		for _, s := range bi.Settings {
			settings[s.Key] = s.Value
		}

		info.Version = normalizeVersion(bi.Main.Version)
		info.ModulePath = firstNonEmpty(bi.Main.Path, info.ModulePath)
		info.GoVersion = firstNonEmpty(bi.GoVersion, info.GoVersion)
		info.GOOS = firstNonEmpty(settings["GOOS"], info.GOOS)
		info.GOARCH = firstNonEmpty(settings["GOARCH"], info.GOARCH)
		info.Commit = settings["vcs.revision"]
		info.CommitTime = settings["vcs.time"]
		info.Modified = strings.EqualFold(settings["vcs.modified"], "true")
	}

	if info.Version == "devel" {
		info.Version = normalizeVersion(buildinfo.Version)
	}
	info.Commit = firstNonEmpty(info.Commit, buildinfo.Commit)
	info.CommitTime = firstNonEmpty(info.CommitTime, buildinfo.Date)
	return info
}

func normalizeVersion(version string) string {
	if version == "" || version == "(devel)" {
		return "devel"
	}
	return version
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
