package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/netbridge/netsync"
	"github.com/netbridge/netsync/internal/targets/cmdb"
	"github.com/netbridge/netsync/internal/targets/file"
	"github.com/netbridge/netsync/internal/targets/ipam"
	"github.com/netbridge/netsync/pkg/diff"
	"github.com/netbridge/netsync/pkg/errors"
	"github.com/netbridge/netsync/pkg/inventory"
	"github.com/netbridge/netsync/pkg/target"
)

var (
	syncSource   string
	syncDest     string
	syncDatasets []string
	syncOrphans  string
	syncDryRun   bool
	syncWorkers  int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the destination against the source",
	Long: `Sync loads inventory snapshots from the source and destination,
computes the diff, and applies it to the destination.

Targets are given as TYPE:SPEC:
  file:<path>    YAML inventory file
  ipam:<url>     IPAM REST API (token via NETSYNC_SOURCE_TOKEN / NETSYNC_DEST_TOKEN)
  cmdb:<dsn>     CMDB database (sqlite DSN)

Examples:
  netsync sync --source file:approved.yaml --dest ipam:https://nautobot.example.com
  netsync sync --source ipam:https://nautobot.example.com --dest cmdb:inventory.db \
      --datasets prefixes,addresses --orphans backport`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncSource, "source", "", "source target (TYPE:SPEC)")
	syncCmd.Flags().StringVar(&syncDest, "dest", "", "destination target (TYPE:SPEC)")
	syncCmd.Flags().StringSliceVar(&syncDatasets, "datasets", []string{"prefixes", "addresses", "devices"}, "datasets to reconcile")
	syncCmd.Flags().StringVar(&syncOrphans, "orphans", "skip", "orphan policy: skip, delete, backport, prompt")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "compute and print the diff without committing")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "IPAM load worker pool size (0 = default)")

	_ = viper.BindPFlag("source", syncCmd.Flags().Lookup("source"))
	_ = viper.BindPFlag("dest", syncCmd.Flags().Lookup("dest"))
	_ = viper.BindPFlag("orphans", syncCmd.Flags().Lookup("orphans"))
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sourceSpec := firstNonEmpty(syncSource, viper.GetString("source"))
	destSpec := firstNonEmpty(syncDest, viper.GetString("dest"))
	if sourceSpec == "" || destSpec == "" {
		return errors.NewConfigError("sync", "both --source and --dest are required", nil)
	}

	datasets, err := inventory.ParseDatasets(syncDatasets)
	if err != nil {
		return err
	}

	policy, err := target.ParseOrphanPolicy(firstNonEmpty(syncOrphans, viper.GetString("orphans")))
	if err != nil {
		return err
	}

	source, err := buildTarget(sourceSpec, "source")
	if err != nil {
		return err
	}
	dest, err := buildTarget(destSpec, "dest")
	if err != nil {
		return err
	}

	opts := []netsync.Option{
		netsync.WithDatasets(datasets...),
		netsync.WithOrphanPolicy(policy),
	}
	if policy == target.OrphanPrompt {
		opts = append(opts, netsync.WithDecisionFunc(promptDecision(cmd)))
	}

	mgr, err := netsync.New(source, dest, opts...)
	if err != nil {
		return err
	}

	if err := mgr.Load(ctx); err != nil {
		return err
	}

	changes := mgr.Synchronize()
	cmd.Println(changes.String())

	if syncDryRun {
		cmd.Println("Dry run, no changes applied")
		return nil
	}
	if !changes.HasChanges() {
		return nil
	}

	return mgr.Commit(ctx)
}

// buildTarget constructs a target from a TYPE:SPEC string. role selects
// the env/config keys used for credentials.
func buildTarget(spec, role string) (target.Target, error) {
	kind, rest, found := strings.Cut(spec, ":")
	if !found || rest == "" {
		return nil, errors.NewConfigError(role, "target must be TYPE:SPEC", nil)
	}

	switch kind {
	case "file":
		return file.New(rest, file.WithName(role+":file")), nil

	case "ipam":
		token := viper.GetString(role + ".token")
		if token == "" {
			token = os.Getenv("NETSYNC_" + strings.ToUpper(role) + "_TOKEN")
		}
		var opts []ipam.Option
		opts = append(opts, ipam.WithName(role+":ipam"))
		if syncWorkers > 0 {
			opts = append(opts, ipam.WithWorkers(syncWorkers))
		}
		return ipam.New(rest, token, opts...), nil

	case "cmdb":
		return cmdb.New(rest, cmdb.WithName(role+":cmdb"))
	}

	return nil, errors.NewConfigError(role, "unknown target type "+kind, nil)
}

// promptDecision asks the operator, once per run, how to resolve orphaned
// records. The engine itself never blocks on a terminal; this is the
// interactive implementation the CLI injects.
func promptDecision(cmd *cobra.Command) target.DecisionFunc {
	return func(_ context.Context, sourceName, destName string, orphans diff.Batch) (target.OrphanPolicy, error) {
		cmd.Printf("%d records exist in %s but not in %s:\n", orphans.Len(), destName, sourceName)
		for _, d := range inventory.Datasets() {
			if n := len(orphans.Records(d)); n > 0 {
				cmd.Printf("  %s: %d\n", d, n)
			}
		}
		cmd.Printf("Resolve orphans: [s]kip, [d]elete from %s, [b]ackport into %s? ", destName, sourceName)

		reader := bufio.NewReader(cmd.InOrStdin())
		answer, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading orphan decision: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "s", "skip", "":
			return target.OrphanSkip, nil
		case "d", "delete":
			return target.OrphanDelete, nil
		case "b", "backport":
			return target.OrphanBackport, nil
		}
		return "", errors.NewValidationError("answer", answer, "expected s, d or b")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
