package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/rl1809/cartsync/internal/core/service"
)

type StressOptions struct {
	Products []string
	Rounds   int
}

// StressReport describes a run of concurrent edits to distinct products.
// LocalCount is the item count held right after the last response arrived;
// because every response replaces the whole collection, it can lag behind
// ServerCount when responses overtake each other.
type StressReport struct {
	Products    []string      `json:"products"`
	Rounds      int           `json:"rounds"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration"`
	LocalCount  int           `json:"localCount"`
	ServerCount int           `json:"serverCount"`
}

// Consistent reports whether the server kept every successful add.
func (r StressReport) Consistent() bool {
	return r.ServerCount == r.Succeeded
}

// Stale reports whether the collection after the last response missed adds
// the server had already applied.
func (r StressReport) Stale() bool {
	return r.LocalCount != r.ServerCount
}

func NewStressCommand(rootOpts *RootOptions) *cobra.Command {
	var products string
	var rounds int

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Edit several products concurrently and report the outcome",
		Long: `Empties the cart, then adds each product one unit at a time from its own
goroutine. Edits to different products overlap; edits to the same product are
sequential. The cart is fetched again at the end to compare the server's
count with what the last response left behind.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, logger, err := openSession(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()
			defer logger.Sync() //nolint:errcheck

			report, err := RunStress(cmd.Context(), store, StressOptions{
				Products: splitProducts(products),
				Rounds:   rounds,
			})
			if err != nil {
				return operationError(err)
			}
			if err := writeStressReport(cmd.OutOrStdout(), rootOpts.Format, report); err != nil {
				return err
			}
			if !report.Consistent() {
				return NewExitError(ExitFailure, "server count does not match successful adds")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&products, "products", "1,2,3", "comma-separated product ids")
	cmd.Flags().IntVar(&rounds, "rounds", 5, "adds per product")

	return cmd
}

// RunStress clears the cart and runs opts.Rounds single-unit adds for every
// product, one goroutine per product.
func RunStress(ctx context.Context, store *service.CartStore, opts StressOptions) (StressReport, error) {
	if len(opts.Products) == 0 || opts.Rounds < 1 {
		return StressReport{}, NewExitError(ExitCommandError, "need at least one product and one round")
	}

	if err := store.ClearCart(ctx); err != nil {
		return StressReport{}, err
	}

	var succeeded, failed atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for _, id := range opts.Products {
		wg.Add(1)
		go func(productID string) {
			defer wg.Done()
			for i := 0; i < opts.Rounds; i++ {
				if err := store.AddToCart(ctx, productID, 1); err != nil {
					failed.Add(1)
					continue
				}
				succeeded.Add(1)
			}
		}(id)
	}

	wg.Wait()
	report := StressReport{
		Products:   opts.Products,
		Rounds:     opts.Rounds,
		Succeeded:  int(succeeded.Load()),
		Failed:     int(failed.Load()),
		Duration:   time.Since(start),
		LocalCount: store.View().ItemCount,
	}

	if err := store.FetchCart(ctx); err != nil {
		return report, err
	}
	report.ServerCount = store.View().ItemCount
	return report, nil
}

func writeStressReport(w io.Writer, format string, r StressReport) error {
	if format == "json" {
		return writeJSONValue(w, r)
	}

	fmt.Fprintln(w, "========== STRESS TEST RESULTS ==========")
	fmt.Fprintf(w, "Products:         %s\n", strings.Join(r.Products, ","))
	fmt.Fprintf(w, "Adds per product: %d\n", r.Rounds)
	fmt.Fprintf(w, "Successful:       %d\n", r.Succeeded)
	fmt.Fprintf(w, "Failed:           %d\n", r.Failed)
	fmt.Fprintf(w, "Duration:         %v\n", r.Duration)
	fmt.Fprintf(w, "Local count:      %d\n", r.LocalCount)
	fmt.Fprintf(w, "Server count:     %d\n", r.ServerCount)
	fmt.Fprintln(w, "==========================================")

	if r.Consistent() {
		fmt.Fprintln(w, "PASS: server kept every successful add")
	} else {
		fmt.Fprintf(w, "FAIL: expected %d on the server, got %d\n", r.Succeeded, r.ServerCount)
	}
	if r.Stale() {
		fmt.Fprintln(w, "NOTE: last response was older than the server state (last write wins)")
	}
	return nil
}

func splitProducts(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
