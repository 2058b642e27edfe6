package main

import (
	"fmt"
	"os"

	spoolcmder "github.com/papercomputeco/spool/cmd/spool"
	"github.com/papercomputeco/spool/pkg/cliui"
)

func main() {
	cmd := spoolcmder.NewSpoolCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cliui.FailMark, err)
		os.Exit(1)
	}
}
