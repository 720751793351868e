// Package commands implements the studyctl command tree.
package commands

import (
	"encoding/json"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-study-pipeline/pkg/pipeline"
)

var (
	serverURL string
	verbose   bool

	// study option flags shared by process, study and submit
	quizCount      int
	chunkSize      int
	maxConcurrency int
	noSummary      bool
	noExplanation  bool
	noQuiz         bool
	noChunking     bool
)

var rootCmd = &cobra.Command{
	Use:   "studyctl",
	Short: "Study pipeline CLI - turn photos of notes into study material",
	Long: `studyctl runs the image study pipeline locally, or talks to a running
pipeline server to upload images, enqueue runs and check their status.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env file if it exists (silently ignore if not found)
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "pipeline server URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// addStudyFlags registers the per-run option flags on cmd
func addStudyFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&quizCount, "quiz-count", "q", 0, "number of quiz questions (1-20)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (1000-8000)")
	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "chunks processed in parallel (1-5)")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "skip summary generation")
	cmd.Flags().BoolVar(&noExplanation, "no-explanation", false, "skip explanation generation")
	cmd.Flags().BoolVar(&noQuiz, "no-quiz", false, "skip quiz generation")
	cmd.Flags().BoolVar(&noChunking, "no-chunking", false, "process long text in a single pass")
}

// studyOptions builds request options from the flags the user set
func studyOptions(cmd *cobra.Command) *pipeline.StudyOptions {
	opts := &pipeline.StudyOptions{
		QuizCount:      quizCount,
		ChunkSize:      chunkSize,
		MaxConcurrency: maxConcurrency,
	}
	flags := cmd.Flags()
	if flags.Changed("no-summary") {
		opts.GenerateSummary = pipeline.Bool(!noSummary)
	}
	if flags.Changed("no-explanation") {
		opts.GenerateExplanation = pipeline.Bool(!noExplanation)
	}
	if flags.Changed("no-quiz") {
		opts.GenerateQuiz = pipeline.Bool(!noQuiz)
	}
	if flags.Changed("no-chunking") {
		opts.EnableChunking = pipeline.Bool(!noChunking)
	}
	return opts
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
