package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/riskcheck/internal/app"
	"github.com/ppiankov/riskcheck/internal/community"
	"github.com/ppiankov/riskcheck/internal/logging"
	"github.com/ppiankov/riskcheck/internal/model"
)

var (
	reportStatus string
	reportLimit  int
	reviewer     string
)

// reportsCmd represents the reports command
var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Moderate community reports",
	Long: `List, approve and reject community reports in the configured database.

Only approved reports influence checks. A report can be moderated once.`,
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReports(func(ctx context.Context, svc *community.Service) error {
			reports, err := svc.List(ctx, community.ListFilter{Status: model.ReportStatus(reportStatus), Limit: reportLimit})
			if err != nil {
				return err
			}
			printReports(reports)
			return nil
		})
	},
}

var reportsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReports(func(ctx context.Context, svc *community.Service) error {
			rep, err := svc.Approve(ctx, args[0], reviewer)
			if err != nil {
				return err
			}
			fmt.Printf("Report %s approved by %s\n", rep.ID, rep.Reviewer)
			return nil
		})
	},
}

var reportsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReports(func(ctx context.Context, svc *community.Service) error {
			rep, err := svc.Reject(ctx, args[0], reviewer)
			if err != nil {
				return err
			}
			fmt.Printf("Report %s rejected by %s\n", rep.ID, rep.Reviewer)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd, reportsApproveCmd, reportsRejectCmd)

	reportsListCmd.Flags().StringVar(&reportStatus, "status", string(model.StatusPending), "filter by status (pending, approved, rejected, or empty for all)")
	reportsListCmd.Flags().IntVar(&reportLimit, "limit", community.DefaultListLimit, "maximum number of reports")
	reportsCmd.PersistentFlags().StringVar(&reviewer, "reviewer", community.DefaultReviewer, "reviewer name recorded on the report")
}

// withReports runs fn against the database-backed report service
func withReports(fn func(context.Context, *community.Service) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set; reports are only kept in memory by a running server")
	}
	logger := logging.Init(cfg.Log)

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	return fn(ctx, a.Reports)
}

func printReports(reports []*model.CommunityReport) {
	if len(reports) == 0 {
		fmt.Println("No reports")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCATEGORY\tENTITY\tCREATED")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%s\n",
			r.ID, r.Status, r.Category, r.EntityType, r.EntityValue, r.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
