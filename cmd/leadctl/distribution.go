package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newDistributionCmd(connect connectFunc, tgt *target) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distribution",
		Short: "Inspect and maintain round-robin distribution",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restart the rotation at the first eligible member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, tgt, func(ctx context.Context, b *backend, tenantID, pipelineID uuid.UUID) error {
				if err := b.Distribution.ResetCursor(ctx, tenantID, pipelineID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rotation reset for pipeline %s\n", pipelineID)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "preview",
		Short: "Show who would receive the next lead without assigning",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, tgt, func(ctx context.Context, b *backend, tenantID, pipelineID uuid.UUID) error {
				p, err := b.Distribution.Preview(ctx, tenantID, pipelineID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !p.WouldAssign {
					fmt.Fprintf(out, "No assignment (%s): %s\n", p.Method, p.Reason)
					return nil
				}
				fmt.Fprintf(out, "Next: %s <%s> (%s), position %d of %d\n",
					p.MemberName, p.MemberEmail, p.MemberID, *p.Position+1, p.EligibleCount)
				return nil
			})
		},
	})

	return cmd
}
