package main

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"nftmarket/native/marketplace"
)

func assetArgs(args []string) ([20]byte, *uint256.Int, error) {
	collection, err := parseAddress("collection", args[0])
	if err != nil {
		return collection, nil, err
	}
	id, err := parseAssetID(args[1])
	if err != nil {
		return collection, nil, err
	}
	return collection, id, nil
}

func newListCmd(flags *globalFlags) *cobra.Command {
	var from, price, mode, end string
	cmd := &cobra.Command{
		Use:   "list <collection> <asset-id>",
		Short: "Escrow an asset and list it for fixed price sale or auction",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			seller, err := parseAddress("--from", from)
			if err != nil {
				return err
			}
			amount, err := parseAmount(price)
			if err != nil {
				return fmt.Errorf("--price: %w", err)
			}
			saleMode, err := marketplace.ParseSaleMode(mode)
			if err != nil {
				return err
			}
			var endTime int64
			if saleMode == marketplace.Auction {
				if endTime, err = parseEndTime(end, sb.clock()); err != nil {
					return err
				}
			}
			listing, err := sb.engine.List(sb.ctx, seller, collection, id, amount, saleMode, endTime)
			if err != nil {
				return err
			}
			return sb.print(newListingView(listing))
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "seller address")
	cmd.Flags().StringVar(&price, "price", "", "sale price or auction reserve in base units (supports 5e17)")
	cmd.Flags().StringVar(&mode, "mode", "fixed", "sale mode: fixed or auction")
	cmd.Flags().StringVar(&end, "end", "", "auction end as +duration, RFC3339 or unix seconds")
	return cmd
}

func newBuyCmd(flags *globalFlags) *cobra.Command {
	var from, payment string
	cmd := &cobra.Command{
		Use:   "buy <collection> <asset-id>",
		Short: "Buy a fixed price listing",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			buyer, err := parseAddress("--from", from)
			if err != nil {
				return err
			}
			var amount *big.Int
			if payment != "" {
				if amount, err = parseAmount(payment); err != nil {
					return fmt.Errorf("--payment: %w", err)
				}
			} else {
				listing, ok, err := sb.engine.GetListing(sb.ctx, collection, id)
				if err != nil {
					return err
				}
				if !ok {
					return marketplace.ErrNotListed
				}
				amount = listing.Price
			}
			settlement, err := sb.engine.Buy(sb.ctx, buyer, collection, id, amount)
			if err != nil {
				return err
			}
			return sb.print(newSettlementView(settlement))
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "buyer address")
	cmd.Flags().StringVar(&payment, "payment", "", "exact payment in base units (defaults to the listed price)")
	return cmd
}

func newCancelCmd(flags *globalFlags) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "cancel <collection> <asset-id>",
		Short: "Cancel a listing and return the asset to its seller",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			seller, err := parseAddress("--from", from)
			if err != nil {
				return err
			}
			return sb.engine.CancelListing(sb.ctx, seller, collection, id)
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "seller address")
	return cmd
}

func newBidCmd(flags *globalFlags) *cobra.Command {
	var from, amount string
	cmd := &cobra.Command{
		Use:   "bid <collection> <asset-id>",
		Short: "Place a bid on a running auction",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			bidder, err := parseAddress("--from", from)
			if err != nil {
				return err
			}
			value, err := parseAmount(amount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			return sb.engine.PlaceBid(sb.ctx, bidder, collection, id, value)
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "bidder address")
	cmd.Flags().StringVar(&amount, "amount", "", "bid in base units")
	return cmd
}

func newFinalizeCmd(flags *globalFlags) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "finalize <collection> <asset-id>",
		Short: "Settle an auction whose end time has passed",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			caller := sb.market.Owner
			if from != "" {
				if caller, err = parseAddress("--from", from); err != nil {
					return err
				}
			}
			settlement, err := sb.engine.Finalize(sb.ctx, caller, collection, id)
			if err != nil {
				return err
			}
			return sb.print(newSettlementView(settlement))
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "caller address (defaults to the configured owner)")
	return cmd
}

func newShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <collection> <asset-id>",
		Short: "Show the active listing for an asset",
		Args:  cobra.ExactArgs(2),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, id, err := assetArgs(args)
			if err != nil {
				return err
			}
			listing, ok, err := sb.engine.GetListing(sb.ctx, collection, id)
			if err != nil {
				return err
			}
			if !ok {
				return marketplace.ErrNotListed
			}
			return sb.print(newListingView(listing))
		}),
	}
}

func newListedCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "listed <collection>",
		Short: "List every active listing in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			collection, err := parseAddress("collection", args[0])
			if err != nil {
				return err
			}
			listings, err := sb.engine.ActiveListings(sb.ctx, collection)
			if err != nil {
				return err
			}
			views := make(listingsView, 0, len(listings))
			for _, l := range listings {
				views = append(views, newListingView(l))
			}
			return sb.print(views)
		}),
	}
}

func newSellerCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seller <address>",
		Short: "List the assets a seller currently has listed",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			seller, err := parseAddress("seller", args[0])
			if err != nil {
				return err
			}
			keys, err := sb.engine.ListedIDsForSeller(sb.ctx, seller)
			if err != nil {
				return err
			}
			return sb.print(newKeysView(keys))
		}),
	}
}

func newPendingCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pending <address>",
		Short: "Show the pending withdrawal balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, args []string) error {
			addr, err := parseAddress("address", args[0])
			if err != nil {
				return err
			}
			pending, err := sb.engine.PendingWithdrawal(sb.ctx, addr)
			if err != nil {
				return err
			}
			return sb.print(newAmountView(addr, pending))
		}),
	}
}

func newWithdrawPendingCmd(flags *globalFlags) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "withdraw-pending",
		Short: "Claim payouts credited after a rejected transfer",
		Args:  cobra.NoArgs,
		RunE: withSandbox(flags, func(_ *cobra.Command, sb *sandbox, _ []string) error {
			caller, err := parseAddress("--from", from)
			if err != nil {
				return err
			}
			paid, err := sb.engine.WithdrawPending(sb.ctx, caller)
			if err != nil {
				return err
			}
			return sb.print(newAmountView(caller, paid))
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "claimant address")
	return cmd
}
