package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
	"github.com/ZebulonRouseFrantzich/keg/internal/installer"
	"github.com/ZebulonRouseFrantzich/keg/internal/logger"
	"github.com/ZebulonRouseFrantzich/keg/internal/resolve"
	"github.com/ZebulonRouseFrantzich/keg/internal/version"
)

func newInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install <descriptor>",
		Short: "Install the package described by a descriptor file",
		Example: `  keg install formulas/unseal.lua
  keg install --bin-dir ~/bin unseal.yaml`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.install(cmd.Context(), args[0])
		},
	}
}

func (a *app) install(ctx context.Context, path string) error {
	desc, err := descriptor.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	if findings := descriptor.DetectSensitiveData(desc); len(findings) > 0 {
		_, _ = fmt.Fprint(a.stderr, descriptor.FormatSensitiveDataWarning(findings))
	}

	info, err := a.detector.Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}

	variant, err := resolve.Resolve(desc, info)
	if err != nil {
		return err
	}

	cfg := a.settings.InstallerConfig()
	cfg.Platform = info.String()
	cfg.HTTPClient = a.httpClient
	cfg.UserAgent = version.UserAgent()
	if a.settings.Progress {
		cfg.Progress = a.stderr
	}

	inst, err := installer.New(cfg)
	if err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "package", desc.Name, "version", desc.Version)
	res, err := inst.Install(ctx, desc, variant)
	if res != nil && res.State >= installer.StatePlaced {
		printResult(a.stdout, res, err)
	}
	return err
}

func printResult(w io.Writer, res *installer.Result, err error) {
	_, _ = fmt.Fprintf(w, "Installed %s %s -> %s\n", res.Name, res.Version, res.Path)
	_, _ = fmt.Fprintf(w, "  sha256:   %s\n", res.SHA256)

	methods := make([]string, 0, len(res.Verification))
	for _, m := range res.Verification {
		methods = append(methods, m.String())
	}
	_, _ = fmt.Fprintf(w, "  verified: %s\n", strings.Join(methods, ", "))

	source := res.URL
	if res.CacheHit {
		source = "cache"
	}
	_, _ = fmt.Fprintf(w, "  source:   %s\n", source)
	if res.Replaced {
		_, _ = fmt.Fprintln(w, "  replaced: previous binary")
	}

	var checkErr *installer.PostInstallCheckError
	switch {
	case res.Checked:
		_, _ = fmt.Fprintln(w, "  check:    ok")
	case errors.As(err, &checkErr) && checkErr.ExitCode >= 0:
		_, _ = fmt.Fprintf(w, "  check:    failed (exit %d)\n", checkErr.ExitCode)
	default:
		_, _ = fmt.Fprintln(w, "  check:    failed")
	}
	if res.ReceiptPath != "" {
		_, _ = fmt.Fprintf(w, "  receipt:  %s\n", res.ReceiptPath)
	}
}
