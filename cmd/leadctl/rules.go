package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"crm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRulesCmd(connect connectFunc, tgt *target) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Import and export qualification rule sets",
	}

	cmd.AddCommand(newRulesImportCmd(connect, tgt))
	cmd.AddCommand(newRulesExportCmd(connect, tgt))
	return cmd
}

func newRulesImportCmd(connect connectFunc, tgt *target) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Replace a pipeline's qualification rules from a YAML file",
		Long: `Reads a rule set with "mql" and "sql" tiers from a YAML file ("-" for stdin),
validates it and stores it. Existing leads are then re-evaluated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := readRuleSet(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, connect, tgt, func(ctx context.Context, b *backend, tenantID, pipelineID uuid.UUID) error {
				saved, err := b.Qualification.SaveRules(ctx, tenantID, pipelineID, rs, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d MQL and %d SQL rules into pipeline %s\n", len(saved.MQL), len(saved.SQL), pipelineID)
				return nil
			})
		},
	}
}

func newRulesExportCmd(connect connectFunc, tgt *target) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a pipeline's qualification rules as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, tgt, func(ctx context.Context, b *backend, tenantID, pipelineID uuid.UUID) error {
				rs, err := b.Qualification.RuleSet(ctx, tenantID, pipelineID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return fmt.Errorf("create %s: %w", outPath, err)
					}
					defer f.Close()
					out = f
				}
				return writeRuleSet(out, rs.Normalize())
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func readRuleSet(stdin io.Reader, path string) (domain.RuleSet, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("read rules: %w", err)
	}

	var rs domain.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return domain.RuleSet{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return rs, nil
}

func writeRuleSet(w io.Writer, rs domain.RuleSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rs); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}
