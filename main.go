package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Invoicing service with shareable invoice links and Stripe Checkout payments",
	Long: `invoicer manages clients and invoices, serves each invoice on a public
link with a PDF copy, takes payment through Stripe Checkout and marks invoices
paid from Stripe webhooks.

Running without a subcommand starts the HTTP server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func printBanner() {
	fmt.Printf("%s%s", colorCyan, colorBold)
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║  🧾 Invoicer                                                 ║")
	fmt.Println("║                                                              ║")
	fmt.Println("║  Invoices, public links and Stripe payments                  ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("%s", colorReset)
}

func printStep(step, message string) {
	fmt.Printf("%s[%s]%s %s%s%s\n", colorBlue, step, colorReset, colorBold, message, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓%s %s\n", colorGreen, colorReset, message)
}

func printWarning(message string) {
	fmt.Printf("%s⚠%s %s\n", colorYellow, colorReset, message)
}

func printError(message string) {
	fmt.Printf("%s✗%s %s\n", colorRed, colorReset, message)
}

func printInfo(message string) {
	fmt.Printf("%sℹ%s %s\n", colorCyan, colorReset, message)
}

func printField(name, value string) {
	fmt.Printf("%s%s%s:%s %s%s%s\n", colorPurple, colorBold, name, colorReset, colorYellow, value, colorReset)
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
