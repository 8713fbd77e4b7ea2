package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-checklist/internal/checklist"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/models"
)

func (c *cli) newAlertsCmd() *cobra.Command {
	var km string

	cmd := &cobra.Command{
		Use:   "alerts PLATE",
		Short: "Show oil change alerts for a vehicle",
		Long: `Evaluate the vehicle's next oil changes against an odometer reading.
Without --km the stored mileage is used. Nothing is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStores(cmd.Context(), func(stores *db.Stores) error {
				session := checklist.NewSession(stores.Vehicles, args[0],
					checklist.WithApproachWindow(c.cfg.Alerts.ApproachWindow))
				if _, _, err := session.LoadVehicleContext(cmd.Context()); err != nil {
					return err
				}
				if km != "" {
					if _, err := checklist.ParseMileage(km); err != nil {
						return err
					}
					session.SetMileage(km)
				}

				alerts := session.Alerts()
				if ok, err := c.printJSON(cmd.OutOrStdout(), alerts); ok {
					return err
				}
				printAlerts(cmd.OutOrStdout(), args[0], session.Mileage(), alerts)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&km, "km", "", "odometer reading to check (default: stored mileage)")
	return cmd
}

func printAlerts(w io.Writer, plate, km string, alerts []models.Alert) {
	if len(alerts) == 0 {
		_, _ = fmt.Fprintf(w, "No maintenance alerts for %s at %s km\n", plate, km)
		return
	}
	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(string(a.Level)), a.Message())
	}
}
