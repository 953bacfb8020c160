// Package main is the entry point for the weave CLI.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/weave/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
