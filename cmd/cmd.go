// Package cmd provides the CLI commands for the portfolio assistant.
//
// Commands:
//   - serve: HTTP API server (chat, reindex, health)
//   - reindex: rebuild the vector index from the CMS and exit
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the CLI.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "reindex":
		return runReindex()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func runHelp() {
	fmt.Println("portfolio - conversational assistant for a portfolio website")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  portfolio serve [addr]  Start the HTTP API server (default: :8080)")
	fmt.Println("  portfolio reindex       Rebuild the vector index from the CMS")
	fmt.Println("  portfolio --version     Show version information")
	fmt.Println("  portfolio --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY            Required: Gemini API key")
	fmt.Println("  PORTFOLIO_CMS_URL         Required: CMS API base URL")
	fmt.Println("  PORTFOLIO_CMS_API_KEY     Optional: CMS bearer token")
	fmt.Println("  PORTFOLIO_DATABASE_URL    Optional: PostgreSQL URL (in-process index if unset)")
	fmt.Println("  PORTFOLIO_ADMIN_SECRET    Optional: enables POST /api/reindex")
}
