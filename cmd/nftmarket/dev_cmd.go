package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDevCmd(flags *globalFlags) *cobra.Command {
	dev := &cobra.Command{
		Use:   "dev",
		Short: "Sandbox helpers that create assets and funds",
	}

	var to string
	mint := &cobra.Command{
		Use:   "mint <collection> <asset-id>",
		Short: "Mint an asset in the reference registry",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			owner, err := parseAddress("--to", to)
			if err != nil {
				return err
			}
			if err := sb.registry.Mint(collection, id, owner); err != nil {
				return err
			}
			if err := sb.commit(); err != nil {
				return err
			}
			return sb.print(messageView{Message: fmt.Sprintf("minted %s/%s to %s", formatCollection(collection), id.Dec(), formatAccount(owner))})
		}),
	}
	mint.Flags().StringVar(&to, "to", "", "owner of the new asset")
	dev.AddCommand(mint)

	var amount string
	fund := &cobra.Command{
		Use:   "fund <address>",
		Short: "Credit native value to an account",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			addr, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			value, err := parseAmount(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			if err := sb.bank.Deposit(addr, value); err != nil {
				return err
			}
			if err := sb.commit(); err != nil {
				return err
			}
			balance, err := sb.bank.BalanceOf(addr)
			if err != nil {
				return err
			}
			return sb.print(newAmountView(addr, balance))
		}),
	}
	fund.Flags().StringVar(&amount, "amount", "", "amount in base units")
	dev.AddCommand(fund)
	return dev
}

func newBalanceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the native balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			addr, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			balance, err := sb.bank.BalanceOf(addr)
			if err != nil {
				return err
			}
			return sb.print(newAmountView(addr, balance))
		}),
	}
}

func newRegistryCmd(flags *globalFlags) *cobra.Command {
	registry := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and authorise assets in the reference registry",
	}

	registry.AddCommand(&cobra.Command{
		Use:   "owner <collection> <asset-id>",
		Short: "Show the owner of an asset",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			owner, err := sb.registry.OwnerOf(sb.ctx, collection, id)
			if err != nil {
				return err
			}
			return sb.print(messageView{Message: formatAccount(owner)})
		}),
	})

	var from, operator string
	operatorOrMarket := func(sb *sandbox) ([20]byte, error) {
		if operator == "" {
			return sb.engine.Address(), nil
		}
		return parseAddress("--operator", operator)
	}

	approve := &cobra.Command{
		Use:   "approve <collection> <asset-id>",
		Short: "Approve an operator for a single asset",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			owner, err := parseAddress("--from", from)
			if err != nil {
				return err
			}
			op, err := operatorOrMarket(sb)
			if err != nil {
				return err
			}
			if err := sb.registry.Approve(sb.ctx, owner, collection, id, op); err != nil {
				return err
			}
			return sb.commit()
		}),
	}

	var revoke bool
	approveAll := &cobra.Command{
		Use:   "approve-all <collection>",
		Short: "Approve an operator for every asset the caller holds in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, err := parseAddress("collection", args[0])
			if err != nil {
				return err
			}
			owner, err := parseAddress("--from", from)
			if err != nil {
				return err
			}
			op, err := operatorOrMarket(sb)
			if err != nil {
				return err
			}
			if err := sb.registry.SetApprovalForAll(sb.ctx, owner, collection, op, !revoke); err != nil {
				return err
			}
			return sb.commit()
		}),
	}
	approveAll.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of granting")

	for _, c := range []*cobra.Command{approve, approveAll} {
		c.Flags().StringVar(&from, "from", "", "asset owner address")
		c.Flags().StringVar(&operator, "operator", "", "operator address (defaults to the marketplace)")
	}
	registry.AddCommand(approve, approveAll)
	return registry
}
