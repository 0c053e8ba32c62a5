package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// adminCaller resolves --from, defaulting to the configured owner.
func adminCaller(sb *sandbox, from string) ([20]byte, error) {
	if from == "" {
		return sb.market.Owner, nil
	}
	return parseAddress("--from", from)
}

func newAdminCmd(flags *globalFlags) *cobra.Command {
	var from string
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Owner-only marketplace administration",
	}
	admin.PersistentFlags().StringVar(&from, "from", "", "caller address (defaults to the configured owner)")

	setPaused := func(paused bool) func(*cobra.Command, *sandbox, []string) error {
		return func(_ *cobra.Command, sb *sandbox, _ []string) error {
			caller, err := adminCaller(sb, from)
			if err != nil {
				return err
			}
			return sb.engine.SetPaused(sb.ctx, caller, paused)
		}
	}
	admin.AddCommand(&cobra.Command{
		Use:   "pause",
		Short: "Pause listing, buying and bidding",
		Args:  cobra.NoArgs,
		RunE:  withSandbox(flags, setPaused(true)),
	})
	admin.AddCommand(&cobra.Command{
		Use:   "unpause",
		Short: "Resume trading",
		Args:  cobra.NoArgs,
		RunE:  withSandbox(flags, setPaused(false)),
	})

	var remove bool
	blacklist := &cobra.Command{
		Use:   "blacklist <address>",
		Short: "Bar an address from listing, buying and bidding",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			caller, err := adminCaller(sb, from)
			if err != nil {
				return err
			}
			target, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			return sb.engine.SetBlacklist(sb.ctx, caller, target, !remove)
		}),
	}
	blacklist.Flags().BoolVar(&remove, "remove", false, "remove the address from the blacklist")
	admin.AddCommand(blacklist)

	admin.AddCommand(&cobra.Command{
		Use:   "fee <bps>",
		Short: "Set the trading fee in basis points",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			caller, err := adminCaller(sb, from)
			if err != nil {
				return err
			}
			bps, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid fee %q: %w", args[0], err)
			}
			return sb.engine.SetTradingFee(sb.ctx, caller, uint32(bps))
		}),
	})
	admin.AddCommand(&cobra.Command{
		Use:   "fee-recipient <address>",
		Short: "Change where trading fees are paid",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			caller, err := adminCaller(sb, from)
			if err != nil {
				return err
			}
			recipient, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			return sb.engine.SetFeeRecipient(sb.ctx, caller, recipient)
		}),
	})
	admin.AddCommand(&cobra.Command{
		Use:   "transfer-ownership <address>",
		Short: "Hand the admin role to another address",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			caller, err := adminCaller(sb, from)
			if err != nil {
				return err
			}
			owner, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			return sb.engine.TransferOwnership(sb.ctx, caller, owner)
		}),
	})
	admin.AddCommand(&cobra.Command{
		Use:   "withdraw",
		Short: "Send the vault surplus to the owner",
		Args:  cobra.NoArgs,
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, _ []string) error {
			caller, err := adminCaller(sb, from)
			if err != nil {
				return err
			}
			amount, err := sb.engine.Withdraw(sb.ctx, caller)
			if err != nil {
				return err
			}
			return sb.print(newAmountView(caller, amount))
		}),
	})
	admin.AddCommand(&cobra.Command{
		Use:   "policy",
		Short: "Show the current policy",
		Args:  cobra.NoArgs,
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, _ []string) error {
			policy, err := sb.engine.Policy(sb.ctx)
			if err != nil {
				return err
			}
			withdrawable, err := sb.engine.WithdrawableFees(sb.ctx)
			if err != nil {
				return err
			}
			return sb.print(policyView{
				Owner:         formatAccount(policy.Owner),
				FeeRecipient:  formatAccount(policy.FeeRecipient),
				TradingFeeBps: policy.TradingFeeBps,
				Paused:        policy.Paused,
				Withdrawable:  withdrawable.String(),
			})
		}),
	})
	return admin
}
