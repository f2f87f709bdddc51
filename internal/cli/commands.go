package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"evmsniper/internal/domain"
	"evmsniper/internal/ui/dashboard"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "evmsniper %s\n", Version)
		},
	}
}

func newChainsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List stored chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rows := make([][]string, 0, len(a.store.Chains()))
			for _, c := range a.store.Chains() {
				rows = append(rows, []string{c.Name, strconv.FormatUint(c.ChainID, 10), c.RPC.HTTP, c.RPC.WS})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"NAME", "CHAIN ID", "HTTP", "WS"}, rows))
			return nil
		},
	}
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

// checkResult is the outcome of probing one chain
type checkResult struct {
	Chain   domain.Chain
	ChainID uint64
	Block   uint64
	Err     error
}

// OK reports whether the node answered with the configured chain id
func (r checkResult) OK() bool {
	return r.Err == nil && r.ChainID == r.Chain.ChainID
}

func (r checkResult) status() string {
	switch {
	case r.Err != nil:
		return "error: " + r.Err.Error()
	case !r.OK():
		return fmt.Sprintf("mismatch: node reports %d", r.ChainID)
	}
	return "ok"
}

func newCheckCommand(opts *options, env *environment) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dial every stored chain and compare chain ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if timeout <= 0 {
				timeout = a.cfg.RPC.Timeout.Duration
			}
			results := checkChains(cmd.Context(), a.store.Chains(), env.dial, timeout, a.cfg.RPC.Workers)

			failed := 0
			rows := make([][]string, len(results))
			for i, r := range results {
				if !r.OK() {
					failed++
					a.logger.Error("chain check failed", "chain", r.Chain.Name, "status", r.status())
				}
				rows[i] = []string{r.Chain.Name, strconv.FormatUint(r.Chain.ChainID, 10), strconv.FormatUint(r.Block, 10), r.status()}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"NAME", "CHAIN ID", "BLOCK", "STATUS"}, rows))
			if failed > 0 {
				return fmt.Errorf("%d of %d chains failed the check", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "timeout per chain (default from config)")
	return cmd
}

// checkChains probes chains concurrently; results keep the input order
func checkChains(ctx context.Context, chains []domain.Chain, dial dashboard.DialFunc, timeout time.Duration, workers int) []checkResult {
	results := make([]checkResult, len(chains))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, chain := range chains {
		g.Go(func() error {
			results[i] = checkChain(ctx, chain, dial, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func checkChain(ctx context.Context, chain domain.Chain, dial dashboard.DialFunc, timeout time.Duration) checkResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := checkResult{Chain: chain}
	client, err := dial(ctx, chain.RPC.HTTP)
	if err != nil {
		res.Err = err
		return res
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		res.Err = fmt.Errorf("chain id: %w", err)
		return res
	}
	res.ChainID = id.Uint64()

	if res.Block, err = client.BlockNumber(ctx); err != nil {
		res.Err = fmt.Errorf("block number: %w", err)
	}
	return res
}
