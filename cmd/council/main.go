package main

import (
	"fmt"
	"os"
)

func main() {
	clCmd.AddCommand(initCmd)
	clCmd.AddCommand(versionCmd)
	clCmd.AddCommand(keysCmd)
	clCmd.AddCommand(queryCmd)
	clCmd.AddCommand(memberCmd)
	clCmd.AddCommand(resolutionCmd)
	clCmd.AddCommand(voteCmd)
	if err := clCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
