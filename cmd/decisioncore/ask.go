package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aptmgmt/decisioncore/pkg/config"
	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

// newAskCmd runs a resident question through the pipeline and prints the
// grounded answer, per spec.md §6's question-answer interface.
func newAskCmd(loadConfig func() (config.Config, error), getLogger func() *slog.Logger) *cobra.Command {
	var residentID, buildingID, message string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "ask a policy question and print the grounded answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runHandleMessage(cmd.Context(), loadConfig, getLogger, residentID, buildingID, message)
			if err != nil {
				return err
			}
			return printResult(cmd, result)
		},
	}

	cmd.Flags().StringVar(&residentID, "resident", "", "resident id")
	cmd.Flags().StringVar(&buildingID, "building", contracts.AllBuildings, "building id")
	cmd.Flags().StringVar(&message, "message", "", "the resident's question")
	_ = cmd.MarkFlagRequired("resident")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

// runHandleMessage builds the full pipeline, runs it under the configured
// per-request deadline, and tears it down before returning.
func runHandleMessage(ctx context.Context, loadConfig func() (config.Config, error), getLogger func() *slog.Logger, residentID, buildingID, message string) (contracts.Result, error) {
	cfg, err := loadConfig()
	if err != nil {
		return contracts.Result{}, err
	}

	p, err := buildPipeline(ctx, cfg, getLogger())
	if err != nil {
		return contracts.Result{}, err
	}
	defer p.Close()

	reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()

	return p.orchestrator.HandleMessage(reqCtx, contracts.Message{ResidentID: residentID, Text: message}, buildingID, contracts.RiskAssessment{})
}

func printResult(cmd *cobra.Command, result contracts.Result) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
