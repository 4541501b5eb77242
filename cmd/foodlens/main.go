// Command foodlens is a terminal client for the food product assistant: ask
// questions, scan barcodes from photos or a frame directory, and stream the
// assistant's answers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/foodlens/internal/app"
	"github.com/yungbote/foodlens/internal/config"
	"github.com/yungbote/foodlens/internal/platform/logger"
	"github.com/yungbote/foodlens/internal/platform/shutdown"
)

var (
	flagLanguage string
	flagBackend  string
	flagNoChat   bool

	theApp *app.App
)

func main() {
	ctx, cancel := shutdown.NotifyContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	closeApp()
	cancel()
	if err != nil {
		if !errors.Is(err, errShown) {
			fmt.Fprintln(os.Stderr, "foodlens:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foodlens",
	Short: "Ask about packaged food from the terminal",
	Long: `foodlens resolves a product from a barcode, a photo or a question and
streams the assistant's assessment.

Examples:
  # Ask a question
  foodlens ask "is palm oil bad for me?"

  # Resolve a barcode you typed in
  foodlens code 8901719101014

  # Scan a photo of a label
  foodlens scan ./label.jpg

  # Describe a product photo without looking for a barcode
  foodlens analyze ./shelf.jpg

  # Replay camera frames from a directory until a barcode is seen
  foodlens watch ./frames`,
	Version:       app.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagLanguage != "" {
			cfg.Backend.Language = flagLanguage
		}
		if flagBackend != "" {
			cfg.Backend.BaseURL = flagBackend
		}
		log, err := logger.New(cfg.Env)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		a, err := app.New(cmd.Context(), log, cfg)
		if err != nil {
			log.Error("startup failed", "error", err)
			return err
		}
		theApp = a
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		closeApp()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLanguage, "lang", "", "reply language: en, hi or hinglish (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "assistant backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagNoChat, "no-chat", false, "print the resolution without asking the assistant")
}

func closeApp() {
	if theApp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	theApp.Close(ctx)
	theApp = nil
}
