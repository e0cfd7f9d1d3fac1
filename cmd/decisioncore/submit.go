package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aptmgmt/decisioncore/pkg/config"
	"github.com/aptmgmt/decisioncore/pkg/contracts"
)

// newSubmitCmd runs a resident request through the full pipeline, printing
// the classification and, depending on intent, either the grounded answer
// or the simulated options and chosen decision.
func newSubmitCmd(loadConfig func() (config.Config, error), getLogger func() *slog.Logger) *cobra.Command {
	var residentID, buildingID, message string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "submit a resident request and print the pipeline's decision",
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
	cmd.Flags().StringVar(&message, "message", "", "the resident's request")
	_ = cmd.MarkFlagRequired("resident")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}
