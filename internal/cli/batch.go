package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/riskcheck/internal/app"
	"github.com/ppiankov/riskcheck/internal/logging"
	"github.com/ppiankov/riskcheck/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Check many seller identifiers from a file in parallel",
	Long: `Batch runs checks concurrently:
- Read requests from the input file, one per line
- A line is "<entity_type> <entity_value>" or a JSON check request
- Blank lines and lines starting with # are skipped
- Write a JSON and a Markdown report per check

Example:
  riskcheck batch sellers.txt
  riskcheck batch sellers.txt --concurrency 4 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent checks")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./riskcheck-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable search cache (force fresh lookups)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\nRiskCheck batch\n\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n\n", batchTimeout)

	reqs, err := worker.ReadRequestsFromFile(file)
	if err != nil {
		return fmt.Errorf("read requests: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Loaded %d requests\n\n", len(reqs))

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.Cache.Enabled = cfg.Cache.Enabled && !noCache
	logger := logging.Init(cfg.Log)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	processor := worker.NewBatchProcessor(a.Pipeline, concurrency)
	results := processor.ProcessRequests(ctx, reqs)

	successCount, failureCount := 0, 0
	for _, result := range results {
		label := fmt.Sprintf("%s %s", result.Request.EntityType, result.Request.EntityValue)
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", label, result.Error)
			continue
		}

		check := result.Check
		slug := fmt.Sprintf("%03d-%s", result.Index+1, sanitizeFilename(string(check.EntityType)+"-"+check.EntityKey))
		if err := a.Renderer.WriteFile(filepath.Join(outputDir, slug+".json"), check, a.Renderer.JSON); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "FAIL %s: write JSON: %v\n", label, err)
			continue
		}
		if err := a.Renderer.WriteFile(filepath.Join(outputDir, slug+".md"), check, a.Renderer.Markdown); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "FAIL %s: write Markdown: %v\n", label, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "ok   %s: %s risk, confidence %d, grade %s\n", label, check.RiskLevel, check.Confidence, check.Grade)
	}

	fmt.Fprintf(os.Stderr, "\nBatch complete\n\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n\n", outputDir)

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d checks failed", failureCount)
	}
	return nil
}

// sanitizeFilename makes s safe to use as a file name
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
		"@", "_at_",
	)
	s = replacer.Replace(s)
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
