package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newQualificationCmd(connect connectFunc, tgt *target) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qualification",
		Short: "Lifecycle qualification commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reevaluate",
		Short: "Run the pipeline's rules over every lead below SQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, tgt, func(ctx context.Context, b *backend, tenantID, pipelineID uuid.UUID) error {
				res, err := b.Qualification.ReevaluatePipeline(ctx, tenantID, pipelineID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evaluated %d leads, promoted %d\n", res.Evaluated, res.Promoted)
				return nil
			})
		},
	})

	return cmd
}
