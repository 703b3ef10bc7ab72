package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/appraisal/cmd/appraisal/ui"
	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/pipeline"
)

var predictCmd = &cobra.Command{
	Use:   "predict <file|->",
	Short: "Predict prices for the properties described in a document",
	Long:  "Extract every property in the document and print a predicted price for each. Use - to read from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	doc, err := readDocument(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Ready() {
		ui.Warning("No trained model found; run `appraisal train` first")
	}

	ui.Section("Price Prediction")
	ui.Step("Document: %s (%d characters)", doc.SourceLabel, len(doc.Text))

	var result *pipeline.Result
	err = ui.Spin("Reading listings...", func() error {
		var err error
		result, err = a.Coordinator.Submit(ctx, doc, domain.ModePredict)
		return err
	})
	if err != nil {
		return fmt.Errorf("prediction: %w", err)
	}

	printSummary(result)
	ui.Newline()

	switch result.Status {
	case pipeline.StatusOK:
		rows := make([][]string, len(result.Predictions))
		for i, p := range result.Predictions {
			rows[i] = []string{fmt.Sprintf("%d", i+1), ui.FormatPrice(p)}
		}
		ui.Table([]string{"Property", "Predicted price"}, rows)
		ui.Newline()
		ui.Success("Priced %d properties", len(result.Predictions))
	case pipeline.StatusNoRows:
		ui.Warning("No properties could be read from %s", doc.SourceLabel)
	}

	return resultErr(result)
}
