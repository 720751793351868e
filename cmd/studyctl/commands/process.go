package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-study-pipeline/internal/bootstrap"
	"github.com/tendant/simple-study-pipeline/internal/config"
	"github.com/tendant/simple-study-pipeline/internal/engine"
	"github.com/tendant/simple-study-pipeline/internal/logger"
	"github.com/tendant/simple-study-pipeline/internal/metrics"
	"github.com/tendant/simple-study-pipeline/internal/workflows"
)

var processImagePath string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the pipeline on a local image",
	Long: `Process runs the full study pipeline in this process and prints the
result as JSON. LLM, OCR and cache settings come from the environment.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processImagePath, "image", "i", "", "Path to image file (required)")
	processCmd.MarkFlagRequired("image")
	addStudyFlags(processCmd)
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	level := "warn"
	if verbose {
		level = "debug"
	}
	lg, err := logger.New("prod", level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lg.Sync()

	image, err := os.ReadFile(processImagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	if int64(len(image)) > cfg.Pipeline.MaxImageSize {
		return fmt.Errorf("image is %d bytes, limit is %d", len(image), cfg.Pipeline.MaxImageSize)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ProcessTimeout)
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, lg, metrics.New())
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer components.Close()

	eng := components.Engine
	result := eng.Run(ctx, engine.Request{
		RunID:    uuid.NewString(),
		ImageRef: filepath.Base(processImagePath),
		Image:    image,
		Options:  workflows.EngineOptions(eng.DefaultOptions(), studyOptions(cmd)),
	})

	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Success {
		msg := result.ErrorMessage
		if msg == "" {
			msg = "not enough text extracted"
		}
		return fmt.Errorf("processing failed: %s", msg)
	}
	return nil
}
