// Command bsdiff computes a binary delta between an old and a new file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clearlinux/bsdiff/internal/stats"
	"github.com/clearlinux/bsdiff/pkg/bsdiff"
	"github.com/clearlinux/bsdiff/pkg/codec"
)

func main() {
	os.Exit(run())
}

func run() int {
	var fullDownload bool

	cmd := &cobra.Command{
		Use:           "bsdiff OLD NEW DELTA [ENC]",
		Short:         "Compute a bsdiff delta between OLD and NEW",
		Args:          cobra.RangeArgs(3, 4),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			encName := "any"
			if len(args) == 4 {
				encName = args[3]
			}
			permitted, ok := codec.ParseEncoding(encName)
			if !ok {
				return fmt.Errorf("unknown encoding %q (want one of raw, bzip2, gzip, xz, zeros, any)", encName)
			}

			rec := stats.NewRecorder()
			full, err := bsdiff.EncodeFile(args[0], args[1], args[2], permitted, rec)
			if err != nil {
				return err
			}
			fullDownload = full
			return nil
		},
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bsdiff:", err)
		return -1
	}
	if fullDownload {
		return 1
	}
	return 0
}
