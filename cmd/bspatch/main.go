// Command bspatch applies a bsdiff delta to an old file to produce a new
// file.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clearlinux/bsdiff/pkg/bsheader"
	"github.com/clearlinux/bsdiff/pkg/bspatch"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := &cobra.Command{
		Use:           "bspatch OLD NEW DELTA",
		Short:         "Apply a bsdiff delta to OLD to produce NEW",
		Args:          cobra.ExactArgs(3),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return bspatch.ApplyFile(args[0], args[1], args[2])
		},
	}

	err := cmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, "bspatch:", err)
	if errors.Is(err, bsheader.ErrNeedFullDownload) || errors.Is(err, bsheader.ErrDeltaTooShort) {
		return -2
	}
	return -1
}
