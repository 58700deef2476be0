package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/shuttle/internal/config"
	"github.com/bamsammich/shuttle/internal/engine"
	"github.com/bamsammich/shuttle/internal/sink"
)

// policyFlag is a pflag.Value for --conflict.
type policyFlag struct {
	policy engine.ConflictPolicy
}

func (f *policyFlag) String() string { return f.policy.String() }
func (*policyFlag) Type() string     { return "policy" }

func (f *policyFlag) Set(val string) error {
	p, err := engine.ParsePolicy(val)
	if err != nil {
		return err
	}
	f.policy = p
	return nil
}

// transferFlags are the flags shared by commands that copy bytes.
type transferFlags struct {
	conflict  policyFlag
	bwLimit   string
	chunkSize string
	maxDepth  int
	noOwner   bool
}

func (f *transferFlags) register(fs *pflag.FlagSet, withConflict bool) {
	if withConflict {
		fs.Var(&f.conflict, "conflict",
			"when a destination file exists: abort, skip, overwrite or keep-both")
	}
	fs.StringVar(&f.bwLimit, "bwlimit", "", "bandwidth limit (e.g. 100M, 1G)")
	fs.StringVar(&f.chunkSize, "chunk-size", "", "bytes per copy chunk and progress step (e.g. 1M)")
	fs.IntVar(&f.maxDepth, "max-depth", engine.DefaultMaxDepth, "directory recursion ceiling")
	fs.BoolVar(&f.noOwner, "no-owner", false, "do not give copies the source's owner")
}

// settings is transferFlags resolved against the config file.
type settings struct {
	policy      engine.ConflictPolicy
	bwLimit     int64
	chunkSize   int64
	maxDepth    int
	ignoreOwner bool
}

// resolve applies config file defaults for flags not explicitly set on the
// CLI and parses sizes.
//
//nolint:revive // cyclomatic: one branch per flag
func (f *transferFlags) resolve(cmd *cobra.Command, d config.DefaultsConfig) (settings, error) {
	changed := cmd.Flags().Changed

	s := settings{
		policy:      f.conflict.policy,
		maxDepth:    f.maxDepth,
		ignoreOwner: f.noOwner,
	}
	if !changed("conflict") && d.Conflict != nil {
		p, err := engine.ParsePolicy(*d.Conflict)
		if err != nil {
			return s, fmt.Errorf("config defaults.conflict: %w", err)
		}
		s.policy = p
	}
	if !changed("max-depth") && d.MaxDepth != nil {
		s.maxDepth = *d.MaxDepth
	}
	if s.maxDepth <= 0 {
		return s, fmt.Errorf("invalid --max-depth %d: must be positive", s.maxDepth)
	}
	if !changed("no-owner") && d.PreserveOwner != nil {
		s.ignoreOwner = !*d.PreserveOwner
	}

	bw := f.bwLimit
	if !changed("bwlimit") && d.BWLimit != nil {
		bw = *d.BWLimit
	}
	if bw != "" {
		n, err := config.ParseSize(bw)
		if err != nil {
			return s, fmt.Errorf("invalid --bwlimit: %w", err)
		}
		s.bwLimit = n
	}

	chunk := f.chunkSize
	if !changed("chunk-size") && d.ChunkSize != nil {
		chunk = *d.ChunkSize
	}
	if chunk != "" {
		n, err := config.ParseSize(chunk)
		if err != nil {
			return s, fmt.Errorf("invalid --chunk-size: %w", err)
		}
		if n <= 0 {
			return s, fmt.Errorf("invalid --chunk-size %q: must be positive", chunk)
		}
		s.chunkSize = n
	}
	return s, nil
}

// configure copies the settings onto opts.
func (s settings) configure(opts *engine.Options) {
	opts.Policy = s.policy
	opts.MaxDepth = s.maxDepth
	opts.ChunkSize = s.chunkSize
	opts.IgnoreOwner = s.ignoreOwner
}

// sinks returns the extra progress sinks the settings need.
func (s settings) sinks(ctx context.Context) []engine.ProgressSink {
	if s.bwLimit <= 0 {
		return nil
	}
	return []engine.ProgressSink{sink.NewThrottle(ctx, sink.NewBWLimiter(s.bwLimit))}
}
