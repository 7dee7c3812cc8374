package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"PulseOutreach/internal/verify"
)

var (
	inputFile   string
	outputFile  string
	concurrency int
	timeout     time.Duration
	skipSMTP    bool
)

var rootCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check recipient addresses before running a campaign",
	Long: "Reads the first column of a CSV, checks each address for valid syntax, " +
		"an MX record and whether the exchanger accepts RCPT TO, and writes a CSV report.",
	RunE: runFile,
}

var checkCmd = &cobra.Command{
	Use:   "check [email...]",
	Short: "Verify addresses given on the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 4, "checks in flight")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-address SMTP timeout")
	rootCmd.PersistentFlags().BoolVar(&skipSMTP, "skip-smtp", false, "stop after the MX lookup")

	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "hr_email.csv", "CSV file with addresses in the first column")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "email_verification_results.csv", "report destination")

	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVerifier() (*verify.Verifier, *zap.Logger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}

	var prober verify.Prober
	if !skipSMTP {
		prober = verify.NewSMTPProber(timeout)
	}
	return verify.New(prober, logger), logger, nil
}

func runFile(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, logger, err := newVerifier()
	if err != nil {
		return err
	}
	defer logger.Sync()

	in, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	emails, err := verify.ReadEmails(in)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", inputFile, err)
	}
	logger.Info("verifying addresses", zap.Int("count", len(emails)), zap.String("input", inputFile))

	results := v.CheckAll(ctx, emails, concurrency)
	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. Checked: %s => Format: %t, Domain: %t, SMTP: %t\n",
			i+1, r.Email, r.ValidFormat, r.DomainExists, r.SMTPDeliverable)
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := verify.WriteReport(out, results); err != nil {
		out.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nVerification complete. Results saved to: %s\n", outputFile)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, logger, err := newVerifier()
	if err != nil {
		return err
	}
	defer logger.Sync()

	return verify.WriteReport(cmd.OutOrStdout(), v.CheckAll(ctx, args, concurrency))
}
