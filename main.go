package main

import (
	"fmt"
	"os"

	"onlineindex/cmd/onlineindex/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
