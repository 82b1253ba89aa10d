package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/tui"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	configPath string
	dbPath     string
	logLevel   string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "cutboard",
	Short: "Browse clipboard history",
	Long: `cutboard browses clipboard history grouped by the application it was
copied from. Run without a subcommand to open the interactive browser.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive browser",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "cutboard %s\n", Version)
		fmt.Fprintln(out, "Clipboard history browser")
		fmt.Fprintln(out, "github.com/pders01/cutboard")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: off, error, warn, info, debug (overrides config)")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Skip startup banner")
	tuiCmd.Flags().BoolVar(&quiet, "quiet", false, "Skip startup banner")

	rootCmd.AddCommand(
		tuiCmd,
		versionCmd,
		listCmd,
		sourcesCmd,
		exportCmd,
		faviconCmd,
		importCmd,
		statsCmd,
		configCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(_ *cobra.Command, _ []string) error {
	if !quiet {
		tui.ShowBanner(Version)
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	icons, err := e.favicons()
	if err != nil {
		// chips fall back to placeholder badges
		debuglog.Warnf("favicon providers unavailable: %v", err)
		icons = nil
	}

	app := tui.NewApp(e.lib, icons, e.cfg)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running browser: %w", err)
	}
	return nil
}
