package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/appraisal/cmd/appraisal/ui"
	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/pipeline"
)

var trainNoPersist bool

var trainCmd = &cobra.Command{
	Use:   "train <files...>",
	Short: "Train the price model on documents that include prices",
	Long: `Train the model on one or more documents. Each document is one training call
that adds boosting rounds to the current model. The model snapshot is saved after
every successful call unless --no-persist is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().BoolVar(&trainNoPersist, "no-persist", false, "keep the trained model in memory only")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	docs := make([]domain.RawDocument, 0, len(args))
	for _, path := range args {
		doc, err := readDocument(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.Section("Model Training")

	progress := ui.NewDocumentProgress(len(docs), "Training")
	results := make([]*pipeline.Result, len(docs))
	for i, doc := range docs {
		progress.Next(doc.SourceLabel)
		results[i], err = a.Coordinator.Submit(ctx, doc, domain.ModeTrain, pipeline.WithPersist(!trainNoPersist))
		if err != nil {
			progress.Close()
			return fmt.Errorf("train %s: %w", doc.SourceLabel, err)
		}
		progress.Done()
	}
	progress.Close()

	rows := make([][]string, len(docs))
	trained, failed := 0, 0
	for i, r := range results {
		note := ""
		switch {
		case r.Status == pipeline.StatusTrained:
			trained++
			if r.PersistError != nil {
				note = "not saved: " + r.PersistError.Message
			}
		case r.Status == pipeline.StatusInsufficientData:
			note = fmt.Sprintf("%d more priced rows needed", r.Shortfall)
		case r.Error != nil:
			failed++
			note = r.Error.Message
		}
		rows[i] = []string{docs[i].SourceLabel, string(r.Status), fmt.Sprintf("%d", r.RowsParsed), note}
	}
	ui.Table([]string{"Document", "Status", "Rows", "Note"}, rows)
	ui.Newline()

	if st := a.Regressor.Snapshot(); st != nil {
		ui.Info("Model: %d rounds, %d rows across %d batches", st.Model.Rounds(), st.Rows, st.Batches)
	}

	switch {
	case failed > 0:
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	case trained == 0:
		ui.Warning("No document had enough priced rows to train on")
	default:
		ui.Success("Trained on %d of %d documents", trained, len(docs))
	}
	return nil
}
