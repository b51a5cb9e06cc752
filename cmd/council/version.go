package main

import (
	"fmt"

	cmtversion "github.com/cometbft/cometbft/version"
	"github.com/spf13/cobra"
)

// GitCommit is set with -ldflags at build time.
var GitCommit string

const (
	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0
)

var Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionPatch)

func VersionWithCommit(gitCommit string) string {
	if len(gitCommit) < 8 {
		return Version
	}
	return Version + "-" + gitCommit[:8]
}

var versionLong bool

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the council version",
	Aliases: []string{"V"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(VersionWithCommit(GitCommit))
		if versionLong {
			fmt.Printf("cometbft %s\nabci %s\n", cmtversion.TMCoreSemVer, cmtversion.ABCISemVer)
		}
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&versionLong, "long", "l", false, "also print the consensus engine versions")
}
