package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/models"
)

func (c *cli) newVehicleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Register and inspect vehicles",
	}
	cmd.AddCommand(c.newVehicleSetCmd(), c.newVehicleShowCmd())
	return cmd
}

func (c *cli) newVehicleSetCmd() *cobra.Command {
	var vehicle models.Vehicle

	cmd := &cobra.Command{
		Use:   "set PLATE",
		Short: "Create or replace a vehicle's mileage and next oil changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if vehicle.CurrentMileage < 0 || vehicle.CurrentMileage > models.MaxMileage {
				return fmt.Errorf("--km must be between 0 and %d", models.MaxMileage)
			}
			if err := vehicle.NextService.Validate(); err != nil {
				return err
			}
			vehicle.Plate = args[0]
			vehicle.UpdatedAt = time.Now()
			return c.withStores(cmd.Context(), func(stores *db.Stores) error {
				if err := stores.Vehicles.UpsertVehicle(cmd.Context(), vehicle); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s at %d km\n", vehicle.Plate, vehicle.CurrentMileage)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&vehicle.CurrentMileage, "km", 0, "current odometer reading")
	flags.IntVar(&vehicle.NextService.Engine, "engine", 0, "km of the next engine oil change")
	flags.IntVar(&vehicle.NextService.Transmission, "transmission", 0, "km of the next transmission oil change")
	flags.IntVar(&vehicle.NextService.Differential, "differential", 0, "km of the next differential oil change")
	return cmd
}

func (c *cli) newVehicleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show PLATE",
		Short: "Show a vehicle's mileage and next oil changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStores(cmd.Context(), func(stores *db.Stores) error {
				vehicle, err := stores.Vehicles.GetNextServices(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ok, err := c.printJSON(cmd.OutOrStdout(), vehicle); ok {
					return err
				}
				printVehicle(cmd, vehicle)
				return nil
			})
		},
	}
}

func printVehicle(cmd *cobra.Command, v *models.Vehicle) {
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%s: %d km\n", v.Plate, v.CurrentMileage)
	for _, category := range models.ServiceCategories {
		_, _ = fmt.Fprintf(w, "  next %-17s %d km\n", category.Label()+":", v.NextService.Limit(category))
	}
}
