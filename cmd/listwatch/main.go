package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"listwatch/internal/app"
	"listwatch/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Ingest", "Prune").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pw), nil
}

var rootCmd = &cobra.Command{
	Use:   "listwatch",
	Short: "Listing snapshot ingestion and reconciliation",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Data Dir: %s\n", cfg.DataDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Data Dir:   %s\n", cfg.DataDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Report Dir: %s\n", cfg.Report.OutputDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Archive:    %s\n", cfg.Archive.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("InitKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase for new key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.InitKeys(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Key pair generated.")
		return nil
	},
}

// ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [RUNID]",
	Short: "Process run directories into the master table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("Ingest")
		if err != nil {
			return err
		}
		defer a.Close()

		runID := ""
		if len(args) > 0 {
			runID = args[0]
		}

		summaries, err := a.Ingest(runID, limit)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}

		if len(summaries) == 0 {
			fmt.Println("No unprocessed runs.")
			return nil
		}

		for _, s := range summaries {
			fmt.Printf("%s  new:%d  updated:%d  removed:%d  unchanged:%d\n",
				s.RunID, len(s.New), len(s.Updated), len(s.Removed), len(s.Unchanged))
		}
		return nil
	},
}

// report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the CSV export and browsable HTML table",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("WriteReports")
		if err != nil {
			return err
		}
		defer a.Close()

		csvPath, htmlPath, err := a.WriteReports()
		if err != nil {
			return fmt.Errorf("writing reports: %w", err)
		}

		fmt.Printf("Wrote %s\n", csvPath)
		fmt.Printf("Wrote %s\n", htmlPath)
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show master table statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Stats")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats()
		if err != nil {
			return err
		}

		stats.Render(os.Stdout)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View ingest operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No ingest operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %s  %s  %-8s  new:%d updated:%d removed:%d  %s\n",
				op.ID,
				op.RunID,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				op.NewCount,
				op.UpdatedCount,
				op.RemovedCount,
				duration,
			)
		}
		return nil
	},
}

// runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage run directories",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List run directories on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListRuns")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.ListRuns()
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No run directories found.")
			return nil
		}

		for _, run := range runs {
			fmt.Println(run)
		}
		return nil
	},
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Archive and delete runs past the retention policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Prune")
		if err != nil {
			return err
		}
		defer a.Close()

		pruned, err := a.Prune()
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}

		fmt.Printf("Pruned %d run(s)\n", len(pruned))
		return nil
	},
}

var runsRestoreCmd = &cobra.Command{
	Use:   "restore RUNID",
	Short: "Restore a pruned run from the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withKey, _ := cmd.Flags().GetBool("encrypted")

		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase := ""
		if withKey {
			passphrase, err = readPassphrase("Key passphrase: ")
			if err != nil {
				return err
			}
		}

		if err := a.Restore(args[0], passphrase); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored run %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// runs subcommands
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsPruneCmd)
	runsCmd.AddCommand(runsRestoreCmd)
	runsRestoreCmd.Flags().BoolP("encrypted", "e", false, "Prompt for the key passphrase before restoring")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().IntP("limit", "l", 0, "Maximum records per run (0 = unlimited)")
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(runsCmd)
}
