package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rl1809/cartsync/internal/core/service"
)

func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "view",
		Short:         "Fetch and print the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, rootOpts, func(ctx context.Context, s *service.CartStore) error {
				return s.FetchCart(ctx)
			})
		},
	}
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "add <product-id> [quantity]",
		Short:         "Add a product to the cart (quantity defaults to 1)",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity := 1
			if len(args) == 2 {
				q, err := parseQuantity(args[1])
				if err != nil {
					return err
				}
				quantity = q
			}
			return runOperation(cmd, rootOpts, func(ctx context.Context, s *service.CartStore) error {
				return s.AddToCart(ctx, args[0], quantity)
			})
		},
	}
}

func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <product-id>",
		Short:         "Remove a product from the cart",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, rootOpts, func(ctx context.Context, s *service.CartStore) error {
				return s.RemoveFromCart(ctx, args[0])
			})
		},
	}
}

func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "update <product-id> <quantity>",
		Short:         "Set the quantity of a product already in the cart",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			return runOperation(cmd, rootOpts, func(ctx context.Context, s *service.CartStore) error {
				return s.UpdateItemQuantity(ctx, args[0], quantity)
			})
		},
	}
}

func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Empty the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, rootOpts, func(ctx context.Context, s *service.CartStore) error {
				return s.ClearCart(ctx)
			})
		},
	}
}

// runOperation runs op in a fresh session and prints the resulting cart.
func runOperation(cmd *cobra.Command, opts *RootOptions, op func(context.Context, *service.CartStore) error) error {
	store, logger, err := openSession(opts)
	if err != nil {
		return err
	}
	defer store.Close()
	defer logger.Sync() //nolint:errcheck

	if err := op(cmd.Context(), store); err != nil {
		return operationError(err)
	}
	return writeView(cmd.OutOrStdout(), opts.Format, store.View())
}
