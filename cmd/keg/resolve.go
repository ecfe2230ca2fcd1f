package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
	"github.com/ZebulonRouseFrantzich/keg/internal/platform"
	"github.com/ZebulonRouseFrantzich/keg/internal/resolve"
)

type resolveOptions struct {
	os   string
	arch string
	bits int
	all  bool
}

func newResolveCmd(a *app) *cobra.Command {
	var opts resolveOptions

	cmd := &cobra.Command{
		Use:   "resolve <descriptor>",
		Short: "Show which artifact a descriptor selects for a platform",
		Long: `Show the artifact variant install would use, without downloading it.

The platform defaults to this machine; --os, --arch and --bits override it.`,
		Example: `  keg resolve unseal.lua
  keg resolve --os linux --arch 386 unseal.lua
  keg resolve --all unseal.lua`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.os, "os", "", "target operating system (e.g. linux, darwin)")
	cmd.Flags().StringVar(&opts.arch, "arch", "", "target architecture (e.g. amd64, x86_64, arm64)")
	cmd.Flags().IntVar(&opts.bits, "bits", 0, "target CPU word size, 32 or 64")
	cmd.Flags().BoolVar(&opts.all, "all", false, "list every matching variant, disabled ones included")

	return cmd
}

func (a *app) resolve(ctx context.Context, path string, opts resolveOptions) error {
	if opts.bits != 0 && opts.bits != 32 && opts.bits != 64 {
		return &usageError{err: fmt.Errorf("--bits must be 32 or 64, got %d", opts.bits)}
	}

	desc, err := descriptor.LoadFile(ctx, path)
	if err != nil {
		return err
	}

	detected, err := a.detector.Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}
	info := overridePlatform(*detected, opts)

	_, _ = fmt.Fprintf(a.stdout, "%s %s on %s (%d-bit)\n", desc.Name, desc.Version, info.String(), info.Bits)

	if opts.all {
		candidates := resolve.Candidates(desc, &info)
		if len(candidates) == 0 {
			_, _ = fmt.Fprintln(a.stdout, "  no matching variants")
		}
		for i, v := range candidates {
			state := "enabled"
			if !v.Enabled {
				state = "disabled"
			}
			_, _ = fmt.Fprintf(a.stdout, "\n[%d] %s\n", i+1, state)
			printVariant(a.stdout, v)
		}
	}

	variant, err := resolve.Resolve(desc, &info)
	if err != nil {
		return err
	}
	if !opts.all {
		printVariant(a.stdout, variant)
	}
	return nil
}

// overridePlatform applies the --os/--arch/--bits flags. Overriding the
// architecture also resets the word size unless --bits is given.
func overridePlatform(info platform.Info, opts resolveOptions) platform.Info {
	if opts.os != "" {
		info.OS = opts.os
	}
	if opts.arch != "" {
		info.ArchRaw = opts.arch
		info.Arch = platform.NormalizeArch(opts.arch)
		info.Bits = platform.WordSize(opts.arch)
	}
	if opts.bits != 0 {
		info.Bits = opts.bits
	}
	return info
}

func printVariant(w io.Writer, v descriptor.ArtifactVariant) {
	_, _ = fmt.Fprintf(w, "  when:    %s\n", v.When.String())
	_, _ = fmt.Fprintf(w, "  url:     %s\n", v.URL)
	_, _ = fmt.Fprintf(w, "  sha256:  %s\n", v.SHA256)
	_, _ = fmt.Fprintf(w, "  archive: %s\n", v.Archive.String())
	if v.Binary != "" {
		_, _ = fmt.Fprintf(w, "  binary:  %s\n", v.Binary)
	}
	if v.SignatureURL != "" {
		_, _ = fmt.Fprintf(w, "  signature: %s\n", v.SignatureURL)
	}
	if v.Sigstore != nil {
		_, _ = fmt.Fprintf(w, "  sigstore:  %s\n", v.Sigstore.URL)
	}
}
