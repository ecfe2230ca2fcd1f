package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
	"github.com/ZebulonRouseFrantzich/keg/internal/transaction"
)

func newReceiptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <name>",
		Short: "Print the install receipt of a package",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			if !descriptor.ValidName(args[0]) {
				return &usageError{err: fmt.Errorf("%q is not a valid package name", args[0])}
			}
			r, err := transaction.LoadReceipt(a.settings.ReceiptsDir, args[0])
			if errors.Is(err, fs.ErrNotExist) {
				return &usageError{err: fmt.Errorf("no receipt for %q in %s", args[0], a.settings.ReceiptsDir)}
			}
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encode receipt: %w", err)
			}
			return enc.Close()
		},
	}
}
