package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/models"
)

func (c *cli) newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Record completed oil changes",
	}
	cmd.AddCommand(c.newServiceRecordCmd())
	return cmd
}

func (c *cli) newServiceRecordCmd() *cobra.Command {
	var (
		category string
		km       int
		interval int
	)

	cmd := &cobra.Command{
		Use:   "record PLATE",
		Short: "Mark an oil change as done and schedule the next one",
		Long: `Mark an oil change as done at --km. The next change of that category is
scheduled --interval km later (default: alerts.service_interval).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := models.ParseServiceCategory(category)
			if err != nil {
				return err
			}
			if km < 0 || km > models.MaxMileage {
				return fmt.Errorf("--km must be between 0 and %d", models.MaxMileage)
			}
			if interval < 0 || interval > models.MaxServiceInterval {
				return fmt.Errorf("--interval must be between 0 and %d", models.MaxServiceInterval)
			}
			if interval == 0 {
				interval = c.cfg.Alerts.ServiceInterval
			}
			return c.withStores(cmd.Context(), func(stores *db.Stores) error {
				vehicle, err := stores.Vehicles.RecordService(cmd.Context(), args[0], cat, km, interval)
				if err != nil {
					return err
				}
				if ok, err := c.printJSON(cmd.OutOrStdout(), vehicle); ok {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s change on %s at %d km, next at %d km\n",
					cat.Label(), vehicle.Plate, km, vehicle.NextService.Limit(cat))
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&category, "category", "", "engine, transmission or differential")
	flags.IntVar(&km, "km", 0, "odometer reading at the oil change")
	flags.IntVar(&interval, "interval", 0, "km until the next change of this category")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("km")
	return cmd
}
