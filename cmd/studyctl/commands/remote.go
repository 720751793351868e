package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-study-pipeline/pkg/client"
	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

var (
	studyImagePath  string
	submitContentID string
	submitObjectKey string
	submitUserID    string
	statusWait      bool
	statusInterval  time.Duration
	estimateLength  int
)

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Upload an image to a pipeline server and print the result",
	RunE:  runStudy,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Enqueue a study run on a pipeline worker",
	RunE:  runSubmit,
}

var statusCmd = &cobra.Command{
	Use:   "status RUN_ID",
	Short: "Show the state of a queued run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate processing time for a text length",
	RunE:  runEstimate,
}

func init() {
	studyCmd.Flags().StringVarP(&studyImagePath, "image", "i", "", "Path to image file (required)")
	studyCmd.MarkFlagRequired("image")
	addStudyFlags(studyCmd)

	submitCmd.Flags().StringVar(&submitContentID, "content-id", "", "simple-content ID of the image")
	submitCmd.Flags().StringVar(&submitObjectKey, "object-key", "", "object store key of the image")
	submitCmd.Flags().StringVar(&submitUserID, "user-id", "", "user the run belongs to")
	submitCmd.MarkFlagsOneRequired("content-id", "object-key")
	addStudyFlags(submitCmd)

	statusCmd.Flags().BoolVarP(&statusWait, "wait", "w", false, "poll until the run finishes")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 2*time.Second, "poll interval with --wait")

	estimateCmd.Flags().IntVarP(&estimateLength, "length", "l", 0, "text length in characters (required)")
	estimateCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (1000-8000)")
	estimateCmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "chunks processed in parallel (1-5)")
	estimateCmd.MarkFlagRequired("length")

	rootCmd.AddCommand(studyCmd, submitCmd, statusCmd, estimateCmd)
}

func runStudy(cmd *cobra.Command, args []string) error {
	f, err := os.Open(studyImagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	body, err := client.New(serverURL).Study(cmd.Context(), filepath.Base(studyImagePath), f, studyOptions(cmd))
	if body != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
	}
	return err
}

func runSubmit(cmd *cobra.Command, args []string) error {
	resp, err := client.New(serverURL).Process(cmd.Context(), pipeline.ProcessRequest{
		ContentID: submitContentID,
		ObjectKey: submitObjectKey,
		Job:       pipeline.JobStudy,
		UserID:    submitUserID,
		Versions: map[string]int{
			pipeline.DerivedTypeStudyResult: 1,
		},
		Options: studyOptions(cmd),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c := client.New(serverURL)
	for {
		st, err := c.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !statusWait || finished(st.State) {
			return printJSON(cmd.OutOrStdout(), st)
		}
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", st.RunID, st.State)
		}
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(statusInterval):
		}
	}
}

func finished(state string) bool {
	switch state {
	case "succeeded", "failed", "cancelled":
		return true
	}
	return false
}

func runEstimate(cmd *cobra.Command, args []string) error {
	if estimateLength < 0 {
		return errors.New("length must not be negative")
	}
	est, err := client.New(serverURL).Estimate(cmd.Context(), pipeline.EstimateRequest{
		TextLength:     estimateLength,
		ChunkSize:      chunkSize,
		MaxConcurrency: maxConcurrency,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), est)
}
