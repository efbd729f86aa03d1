package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gomcpgo/photo_edit_session/pkg/responses"
	"github.com/gomcpgo/photo_edit_session/pkg/storage"
)

var inspectAll bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [image...]",
	Short: "Print the stored edit of each image",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		ctx := cmd.Context()
		paths := args
		if inspectAll {
			db, ok := store.(*storage.Badger)
			if !ok {
				return fmt.Errorf("--all needs the badger store, not %q", cfg.Store)
			}
			if paths, err = db.Paths(ctx); err != nil {
				return err
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("no images given")
		}

		out := cmd.OutOrStdout()
		for _, p := range paths {
			set, err := store.LoadMetadata(ctx, p)
			if err != nil {
				fmt.Fprintln(out, responses.BuildErrorResponse("inspect", fmt.Errorf("%s: %w", p, err)))
				continue
			}
			fmt.Fprintln(out, responses.BuildEditResponse("inspect", p, set))
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectAll, "all", false, "Inspect every image in the badger store")
}
