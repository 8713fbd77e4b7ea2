package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-checklist/internal/config"
	"github.com/ukydev/fleet-checklist/internal/db"
)

// cli carries the state shared by all subcommands.
type cli struct {
	configPath string
	driver     string
	sqlitePath string
	mongoURI   string
	jsonOutput bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "checklistctl",
		Short: "Manage fleet vehicles and maintenance checklists",
		Long: `checklistctl works directly on the checklist store, without going
through the HTTP API. It reads the same configuration as the server
(CHECKLIST_CONFIG, .env and the environment) and lets flags override
the store settings.

Examples:
  # Register a vehicle and its next oil changes
  checklistctl vehicle set ABC1234 --km 57000 --engine 60000 --transmission 58000 --differential 60000

  # Check alerts for a reading without saving it
  checklistctl alerts ABC1234 --km 59000

  # Save a checklist
  checklistctl checklist submit ABC1234 --km 59000 --item "Oil level=yes" --item "Tyres=no"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				path = os.Getenv("CHECKLIST_CONFIG")
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if c.driver != "" {
				cfg.Store.Driver = c.driver
			}
			if c.sqlitePath != "" {
				cfg.Store.SQLitePath = c.sqlitePath
			}
			if c.mongoURI != "" {
				cfg.Store.MongoURI = c.mongoURI
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cfg.ConfigureLogging()
			c.cfg = cfg
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "YAML config file (default $CHECKLIST_CONFIG)")
	flags.StringVar(&c.driver, "driver", "", "store driver: mongo or sqlite")
	flags.StringVar(&c.sqlitePath, "sqlite-path", "", "SQLite database file")
	flags.StringVar(&c.mongoURI, "mongo-uri", "", "MongoDB connection string")
	flags.BoolVar(&c.jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		c.newAlertsCmd(),
		c.newVehicleCmd(),
		c.newServiceCmd(),
		c.newChecklistCmd(),
		c.newUserCmd(),
	)
	return rootCmd
}

// withStores opens the configured store, runs fn and closes the store.
func (c *cli) withStores(ctx context.Context, fn func(*db.Stores) error) error {
	stores, err := db.Open(ctx, c.cfg.Store)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())
	return fn(stores)
}

// printJSON writes v as indented JSON when --json is set and reports whether it did.
func (c *cli) printJSON(w io.Writer, v interface{}) (bool, error) {
	if !c.jsonOutput {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return true, fmt.Errorf("encoding output: %w", err)
	}
	return true, nil
}
