package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/natikgadzhi/notion-mirror/internal/config"
	"github.com/natikgadzhi/notion-mirror/internal/notion"
	"github.com/natikgadzhi/notion-mirror/internal/storage"
)

var (
	validateConfigPath string
	validateVerbose    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and connectivity",
	Long: `Validate checks that the configuration is complete and that the
service can reach everything it needs before serve would start.

This command performs the following checks:
1. Config loads, merges and passes validation
2. Each database's storage backend initializes
3. Each database's data sources are listable through the Notion API
4. Redis answers a ping (when queue.redis_url is set)`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigPath, "config", "c", "", "path to config file (default: probe config.toml, config.yaml, config.yml)")
	validateCmd.Flags().BoolVarP(&validateVerbose, "verbose", "v", false, "enable verbose logging")
}

// checkResult holds the result of a single validation check.
type checkResult struct {
	Check   string
	Passed  bool
	Message string
}

// runValidate performs all validation checks and reports results.
func runValidate(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd.ErrOrStderr(), validateVerbose)

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	var results []checkResult
	var hasErrors bool

	logger.Debug("loading configuration", "path", validateConfigPath)
	cfg, err := config.Load(validateConfigPath)
	if err != nil {
		results = append(results, checkResult{
			Check:   "Config valid",
			Passed:  false,
			Message: err.Error(),
		})
		printResults(cmd.OutOrStdout(), results)
		return fmt.Errorf("validation failed")
	}
	results = append(results, checkResult{
		Check:  "Config valid",
		Passed: true,
	})

	client := notion.NewClient(strings.TrimSpace(cfg.Notion.APIKey), logger)

	for key, db := range cfg.Databases {
		backend := db.Storage[0]

		logger.Debug("checking storage backend", "database", key, "type", backend.Type)
		if _, err := storage.Open(ctx, backend.Type, backend.SettingsAsStrings(), logger); err != nil {
			results = append(results, checkResult{
				Check:   fmt.Sprintf("Database %q storage", key),
				Passed:  false,
				Message: err.Error(),
			})
			hasErrors = true
		} else {
			results = append(results, checkResult{
				Check:   fmt.Sprintf("Database %q storage", key),
				Passed:  true,
				Message: backend.Type,
			})
		}

		logger.Debug("listing data sources", "database", key, "id", db.ID)
		dataSources, err := client.ListDataSources(ctx, notion.NormalizeDatabaseID(db.ID))
		switch {
		case err != nil:
			results = append(results, checkResult{
				Check:   fmt.Sprintf("Database %q accessible", key),
				Passed:  false,
				Message: err.Error(),
			})
			hasErrors = true
		case len(dataSources) == 0:
			results = append(results, checkResult{
				Check:   fmt.Sprintf("Database %q accessible", key),
				Passed:  false,
				Message: "no data sources",
			})
			hasErrors = true
		default:
			results = append(results, checkResult{
				Check:   fmt.Sprintf("Database %q accessible", key),
				Passed:  true,
				Message: fmt.Sprintf("%d data sources", len(dataSources)),
			})
		}
	}

	if cfg.Queue.RedisURL != "" {
		logger.Debug("pinging redis")
		passed, message := checkRedis(ctx, cfg.Queue.RedisURL)
		results = append(results, checkResult{
			Check:   "Redis reachable",
			Passed:  passed,
			Message: message,
		})
		if !passed {
			hasErrors = true
		}
	}

	printResults(cmd.OutOrStdout(), results)

	if hasErrors {
		return fmt.Errorf("validation failed")
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nAll checks passed!")
	return nil
}

// checkRedis parses the URL and round-trips a ping.
func checkRedis(ctx context.Context, url string) (bool, string) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return false, fmt.Sprintf("invalid redis url: %v", err)
	}

	client := redis.NewClient(opts)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return false, fmt.Sprintf("ping failed: %v", err)
	}
	return true, ""
}

// printResults outputs all validation results in a formatted way.
func printResults(w io.Writer, results []checkResult) {
	_, _ = fmt.Fprintln(w, "\nValidation Results:")
	_, _ = fmt.Fprintln(w, "-------------------")

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}

		if r.Message != "" {
			_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", status, r.Check, r.Message)
		} else {
			_, _ = fmt.Fprintf(w, "[%s] %s\n", status, r.Check)
		}
	}
}
