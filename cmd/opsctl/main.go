package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moderncolours/paintops/internal/config"
	"github.com/moderncolours/paintops/internal/simulate"
	"github.com/moderncolours/paintops/internal/store"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "opsctl",
		Short: "Operations tool for the paintops dashboard backend",
		Long: `Operational helper for the Modern Colours dashboard backend.
Seeds demo data into the configured store and inspects event demand curves.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (optional)")

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(curveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openStore() (store.Store, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(cfg.Store.SnapshotPath), nil
	case "postgres":
		return store.NewPostgresStore(context.Background(), cfg.Store.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// seedCmd populates the store with deterministic demo data
func seedCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed deterministic demo data into the configured store",
		Long: `Seeds the dealer network, SKU catalog, inventory positions, sales
history and buyer signals used by the demo dashboard. Seeding is skipped when
dealers already exist; clear the backing store to reseed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			seeded, err := runSeed(ctx, st, days)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			if !seeded {
				fmt.Println("Store already contains dealers; skipping seed")
				return nil
			}

			fmt.Printf("Seed complete: %d days of sales history\n", days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 180, "Days of sales history to generate")

	return cmd
}

// curveCmd prints an event's multiplier curve for inspection
func curveCmd() *cobra.Command {
	var (
		eventTag string
		days     int
		dealerID int64
	)

	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Print the demand multiplier curve for an event tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := simulate.NewEngine(simulate.DefaultCatalog())

			profile, known := engine.Catalog().Lookup(eventTag)
			if !known {
				fmt.Printf("Event %q is not in the catalog; multipliers default to 1.\n", eventTag)
				return nil
			}

			fmt.Printf("Event: %s (%s), avg %+.0f%%, peak %+.0f%%\n",
				eventTag, profile.Kind, profile.AvgImpact*100, profile.PeakImpact*100)

			dates := simulate.SequenceDates(days, time.Now().UTC())
			curve := engine.BuildCurve(eventTag, dates, simulate.Context{DealerID: dealerID})
			for i, d := range dates {
				bar := ""
				n := int((curve[i] - 1) * 100)
				for j := 0; j < n; j++ {
					bar += "+"
				}
				for j := 0; j < -n; j++ {
					bar += "-"
				}
				fmt.Printf("%s  %.3f  %s\n", d.Format("2006-01-02"), curve[i], bar)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&eventTag, "event-tag", "", "Event tag to inspect")
	cmd.Flags().IntVar(&days, "days", 30, "Days to plot, starting tomorrow")
	cmd.Flags().Int64Var(&dealerID, "dealer-id", 0, "Dealer for per-dealer events")
	cmd.MarkFlagRequired("event-tag")

	return cmd
}
