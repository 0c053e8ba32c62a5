package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "nftmarket",
		Short: "Local NFT escrow marketplace sandbox",
		Long: `nftmarket drives a local escrow marketplace: a persisted store holding the
listing ledger, a reference asset registry and a reference funds ledger.
Every command opens the store, runs one operation and prints the events it
emitted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "./nftmarket.toml", "path to the TOML configuration file")
	pf.StringVar(&flags.dataDir, "data-dir", "", "override DataDir from the configuration")
	pf.StringVar(&flags.backend, "backend", "", "override Backend (leveldb, bolt, memory)")
	pf.Int64Var(&flags.now, "now", 0, "pin the engine clock to these unix seconds")
	pf.StringVarP(&flags.output, "output", "o", "text", "output format: text, json or yaml")
	pf.BoolVar(&flags.json, "json", false, "shorthand for --output json")

	root.AddCommand(
		newListCmd(flags),
		newBuyCmd(flags),
		newCancelCmd(flags),
		newBidCmd(flags),
		newFinalizeCmd(flags),
		newShowCmd(flags),
		newListedCmd(flags),
		newSellerCmd(flags),
		newPendingCmd(flags),
		newWithdrawPendingCmd(flags),
		newBalanceCmd(flags),
		newAdminCmd(flags),
		newDevCmd(flags),
		newRegistryCmd(flags),
	)
	return root
}

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
