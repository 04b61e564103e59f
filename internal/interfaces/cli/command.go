package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"txsync/internal/application"
	"txsync/internal/config"
	"txsync/internal/domain"
	"txsync/internal/infrastructure/logging"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// ErrUsage marks invocation mistakes; main exits with status 1 for any error.
var ErrUsage = errors.New("usage error")

type SyncFunc func(ctx context.Context, cfg config.Config, address string, networks []domain.Network) (application.RunSummary, error)

type StatusFunc func(ctx context.Context, cfg config.Config, address string, networks []domain.Network) ([]application.NetworkStatus, error)

type Deps struct {
	Env     config.EnvSource
	Sync    SyncFunc
	Status  StatusFunc
	Version string
}

type flagValues struct {
	dataDir      string
	logLevel     string
	logFormat    string
	networksFile string
	store        string
}

func (f flagValues) overrides() config.EnvMap {
	return config.EnvMap{
		"DATA_DIR":      f.dataDir,
		"LOG_LEVEL":     f.logLevel,
		"LOG_FORMAT":    f.logFormat,
		"NETWORKS_FILE": f.networksFile,
		"STORE_DRIVER":  f.store,
	}
}

func NewRootCommand(deps Deps) *cobra.Command {
	var flags flagValues
	root := &cobra.Command{
		Use:           "txsync <address> [network]",
		Short:         "Sync an address's transactions from block explorers into per-network storage",
		Version:       deps.Version,
		Args:          addressArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := prepare(cmd, deps, flags, args)
			if err != nil {
				return err
			}
			defer run.close()

			started := time.Now()
			summary, err := deps.Sync(cmd.Context(), run.cfg, run.address, run.networks)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary, time.Since(started))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "directory holding one database per network (DATA_DIR)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "text, json or pretty (LOG_FORMAT)")
	root.PersistentFlags().StringVar(&flags.networksFile, "networks-file", "", "YAML or JSON file replacing the built-in networks (NETWORKS_FILE)")
	root.PersistentFlags().StringVar(&flags.store, "store", "", "sqlite or mysql (STORE_DRIVER)")

	root.AddCommand(newStatusCommand(deps, &flags))
	return root
}

func newStatusCommand(deps Deps, flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "status <address> [network]",
		Short: "Show what is stored for an address on each network",
		Args:  addressArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Status == nil {
				return errors.New("status is not available")
			}
			run, err := prepare(cmd, deps, *flags, args)
			if err != nil {
				return err
			}
			defer run.close()

			statuses, err := deps.Status(cmd.Context(), run.cfg, run.address, run.networks)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
}

func addressArgs(cmd *cobra.Command, args []string) error {
	switch {
	case len(args) == 0 || strings.TrimSpace(args[0]) == "":
		return fmt.Errorf("%w: address is required\nUsage: %s", ErrUsage, cmd.UseLine())
	case len(args) > 2:
		return fmt.Errorf("%w: too many arguments\nUsage: %s", ErrUsage, cmd.UseLine())
	case !common.IsHexAddress(strings.TrimSpace(args[0])):
		return fmt.Errorf("%w: %q is not a 0x-prefixed 20-byte hex address", ErrUsage, args[0])
	}
	return nil
}

// canonicalAddress renders a validated address as lowercase 0x-prefixed hex so
// that checksummed and plain spellings share one stored row.
func canonicalAddress(arg string) string {
	return strings.ToLower(common.HexToAddress(strings.TrimSpace(arg)).Hex())
}

type preparedRun struct {
	cfg      config.Config
	address  string
	networks []domain.Network
	close    func()
}

func prepare(cmd *cobra.Command, deps Deps, flags flagValues, args []string) (preparedRun, error) {
	if deps.Env == nil {
		return preparedRun{}, errors.New("environment is required")
	}
	cfg, err := config.Load(config.Overlay(deps.Env, flags.overrides()))
	if err != nil {
		return preparedRun{}, err
	}

	logFile, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Output:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return preparedRun{}, err
	}
	closeLog := func() {
		if logFile != nil {
			_ = logFile.Close()
		}
	}

	var selector string
	if len(args) > 1 {
		selector = args[1]
	}
	networks, err := cfg.Networks.Select(selector)
	if err != nil {
		closeLog()
		return preparedRun{}, err
	}
	return preparedRun{
		cfg:      cfg,
		address:  canonicalAddress(args[0]),
		networks: networks,
		close:    closeLog,
	}, nil
}

func printSummary(w io.Writer, summary application.RunSummary, elapsed time.Duration) {
	for _, result := range summary.Networks {
		if result.Err != nil {
			fmt.Fprintf(w, "%s: failed: %v\n", result.Network.Name, result.Err)
			continue
		}
		fmt.Fprintf(w, "%s: %d transactions\n", result.Network.Name, result.Count)
	}
	fmt.Fprintf(w, "Total transactions saved: %d (%s)\n", summary.Total, elapsed.Round(time.Millisecond))
}

func printStatus(w io.Writer, statuses []application.NetworkStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NETWORK\tTRANSACTIONS\tLAST BLOCK\tFIRST SEEN\tLAST CHECKED\tADDRESS TXS")
	for _, status := range statuses {
		if status.Err != nil {
			fmt.Fprintf(tw, "%s\terror: %v\t\t\t\t\n", status.Network.Key, status.Err)
			continue
		}
		lastBlock, firstSeen, lastChecked, addressTxs := "-", "-", "-", "-"
		if status.Head != nil {
			lastBlock = fmt.Sprint(status.Head.LastBlock)
		}
		if status.Activity != nil {
			firstSeen = formatUnix(status.Activity.FirstSeen)
			lastChecked = formatUnix(status.Activity.LastChecked)
			addressTxs = fmt.Sprint(status.Activity.TransactionCount)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", status.Network.Key, status.Transactions, lastBlock, firstSeen, lastChecked, addressTxs)
	}
	_ = tw.Flush()
}

func formatUnix(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}
