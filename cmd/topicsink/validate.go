package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/miladsoleymani/topicsink/broker"
	"github.com/miladsoleymani/topicsink/config"
	"github.com/miladsoleymani/topicsink/core"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config file without connecting to any broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%w: %w", core.ErrConfigUnavailable, err)
			}
			return validate(cmd.OutOrStdout(), config.Parse(data))
		},
	}

	cmd.Flags().StringVar(&path, "config", "topicsink.conf", "Subscription config file")
	return cmd
}

// validate prints one line per record: the fingerprint of a record that would
// be started, or the reason a record would be skipped.
func validate(w io.Writer, records []core.Record) error {
	var (
		resolver = broker.Resolver{}
		schemes  = broker.Schemes()
		names    = make(map[string]core.Fingerprint, len(records))
		skipped  int
	)

	for _, rec := range records {
		spec, err := core.NewSpec(rec)
		if err == nil {
			var cfg broker.Config
			if cfg, err = resolver.Config(spec); err == nil && !slices.Contains(schemes, cfg.Scheme) {
				err = fmt.Errorf("%w: unknown broker scheme %q", core.ErrInvalidConfig, cfg.Scheme)
			}
		}
		if err == nil {
			if owner, ok := names[spec.Name()]; ok {
				if owner == spec.Fingerprint() {
					fmt.Fprintf(w, "dup   %s  %s\n", spec.Fingerprint().Short(), rec)
					continue
				}
				err = fmt.Errorf("%w: %q is used by an earlier record", core.ErrNameConflict, spec.Name())
			}
		}
		if err != nil {
			skipped++
			fmt.Fprintf(w, "skip  %-8s  %s: %v\n", core.Reason(err), rec, err)
			continue
		}
		names[spec.Name()] = spec.Fingerprint()
		fmt.Fprintf(w, "ok    %s  %s\n", spec.Fingerprint().Short(), rec)
	}

	fmt.Fprintf(w, "%d records, %d skipped\n", len(records), skipped)
	if skipped > 0 {
		return errors.New("config has invalid records")
	}
	return nil
}
