package cmd

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the provision version",
	Run: func(cmd *cobra.Command, args []string) {
		info := readBuildInfo()
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), info)
		if verbose {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "go: %s\n", info.GoVersion)
		}
	},
}

// buildInfo is what the binary knows about how it was built
type buildInfo struct {
	Version   string
	Commit    string
	Modified  bool
	BuiltAt   string
	GoVersion string
}

func (b buildInfo) String() string {
	var s strings.Builder
	s.WriteString(b.Version)
	if b.Commit != "" {
		s.WriteString(" (" + b.Commit)
		if b.Modified {
			s.WriteString(" modified")
		}
		s.WriteString(")")
	}
	if b.BuiltAt != "" {
		s.WriteString(" built " + b.BuiltAt)
	}
	return s.String()
}

func readBuildInfo() buildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return buildInfo{Version: "dev"}
	}
	return fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) buildInfo {
	b := buildInfo{Version: info.Main.Version, GoVersion: info.GoVersion}
	if b.Version == "" || b.Version == "(devel)" {
		b.Version = "dev"
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			b.Commit = setting.Value
			if len(b.Commit) > 7 {
				b.Commit = b.Commit[:7]
			}
		case "vcs.modified":
			b.Modified = setting.Value == "true"
		case "vcs.time":
			b.BuiltAt = setting.Value
		}
	}
	return b
}

func getVersion() string {
	return readBuildInfo().String()
}
