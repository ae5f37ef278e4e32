package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/proofchunk/internal/chunkfile"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <chunk.md>...",
		Short: "Check chunk files for structural consistency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if err := verifyFile(path); err != nil {
					a.log.Error("invalid chunk file", "file", path, "error", err)
					failed++
					continue
				}
				a.log.Info("ok", "file", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d chunk files failed verification", failed, len(args))
			}
			return nil
		},
	}
}

func verifyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := chunkfile.Parse(data)
	if err != nil {
		return err
	}
	return f.Check(filepath.Base(path))
}
