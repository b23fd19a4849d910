package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/riskcheck/internal/app"
	"github.com/ppiankov/riskcheck/internal/logging"
	"github.com/ppiankov/riskcheck/internal/model"
)

var (
	outJSON      string
	outMD        string
	outPDF       string
	checkTimeout time.Duration
	facts        []string
	linked       []string
	attachments  []string
	sellerPhone  string
	sellerEmail  string
	sellerSite   string
	priceRange   string
	noCache      bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <entity_type> <entity_value>",
	Short: "Run a risk check for one seller identifier",
	Long: `Check gathers evidence about one seller identifier:
- Your answers about what you observed (--fact key=yes|no|unsure)
- Public footprint: web search, reachability, domain age, email and phone checks
- Approved community reports for the seller and linked accounts
- Reuse of attached screenshots by other sellers

Entity types: ` + entityTypeList() + `

Example:
  riskcheck check website https://shop.example
  riskcheck check instagram best.deals.pk --fact asked_advance_payment=yes --phone 03001234567
  riskcheck check olx https://www.olx.com.pk/item/123 --linked whatsapp:+923001234567 --pdf report.pdf`,
	Args: cobra.ExactArgs(2),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	// Evidence flags
	checkCmd.Flags().StringArrayVar(&facts, "fact", nil, "observed fact as key=yes|no|unsure (repeatable)")
	checkCmd.Flags().StringArrayVar(&linked, "linked", nil, "linked account as platform:value (repeatable)")
	checkCmd.Flags().StringArrayVar(&attachments, "attach", nil, "SHA-256 of an uploaded screenshot (repeatable)")
	checkCmd.Flags().StringVar(&sellerPhone, "phone", "", "seller phone number")
	checkCmd.Flags().StringVar(&sellerEmail, "email", "", "seller email address")
	checkCmd.Flags().StringVar(&sellerSite, "website", "", "seller website")
	checkCmd.Flags().StringVar(&priceRange, "price", "", "price range of the deal")

	// Output flags
	checkCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	checkCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	checkCmd.Flags().StringVar(&outPDF, "pdf", "", "output PDF path (optional)")

	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 60*time.Second, "overall check timeout")
	checkCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable search cache (force fresh lookups)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	req, err := buildCheckRequest(args[0], args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.Cache.Enabled = cfg.Cache.Enabled && !noCache
	logger := logging.Init(cfg.Log)

	if verbose {
		fmt.Fprintf(os.Stderr, "Checking: %s %s\n", req.EntityType, req.EntityValue)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", checkTimeout)
		fmt.Fprintf(os.Stderr, "Search: %v\n", cfg.Search.Enabled())
		fmt.Fprintln(os.Stderr)
	}

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	start := time.Now()
	check, err := a.Pipeline.RunCheck(ctx, req)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Completed in %v\n", time.Since(start).Round(time.Millisecond))
	}

	a.Renderer.Summary(os.Stdout, check)

	if outJSON != "" {
		if err := a.Renderer.WriteFile(outJSON, check, a.Renderer.JSON); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
		fmt.Fprintf(os.Stderr, "JSON report: %s\n", outJSON)
	}
	if outMD != "" {
		if err := a.Renderer.WriteFile(outMD, check, a.Renderer.Markdown); err != nil {
			return fmt.Errorf("write Markdown: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Markdown report: %s\n", outMD)
	}
	if outPDF != "" {
		if err := a.Renderer.WriteFile(outPDF, check, a.Renderer.PDF); err != nil {
			return fmt.Errorf("write PDF: %w", err)
		}
		fmt.Fprintf(os.Stderr, "PDF report: %s\n", outPDF)
	}
	return nil
}

// buildCheckRequest turns command-line input into a check request
func buildCheckRequest(entityType, value string) (model.CheckRequest, error) {
	req := model.CheckRequest{
		EntityType:       model.EntityType(strings.ToLower(entityType)),
		EntityValue:      value,
		AttachmentHashes: attachments,
		SellerPhone:      sellerPhone,
		SellerEmail:      sellerEmail,
		SellerWebsite:    sellerSite,
		PriceRange:       priceRange,
	}

	if len(facts) > 0 {
		req.Evidence = make(map[string]model.TriState, len(facts))
		for _, f := range facts {
			key, raw, ok := strings.Cut(f, "=")
			if !ok {
				return req, fmt.Errorf("invalid --fact %q: expected key=yes|no|unsure", f)
			}
			state, err := model.ParseTriState(raw)
			if err != nil {
				return req, fmt.Errorf("invalid --fact %q: %w", f, err)
			}
			req.Evidence[strings.TrimSpace(key)] = state
		}
	}

	for _, l := range linked {
		platform, v, ok := strings.Cut(l, ":")
		if !ok || !model.EntityType(strings.ToLower(platform)).Valid() {
			// Bare values are allowed; the platform is inferred
			req.LinkedAccounts = append(req.LinkedAccounts, model.LinkedAccount{Value: l})
			continue
		}
		req.LinkedAccounts = append(req.LinkedAccounts, model.LinkedAccount{
			Platform: model.EntityType(strings.ToLower(platform)),
			Value:    v,
		})
	}
	return req, nil
}

func entityTypeList() string {
	names := make([]string, len(model.EntityTypes))
	for i, t := range model.EntityTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
