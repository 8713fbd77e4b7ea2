package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-checklist/internal/checklist"
	"github.com/ukydev/fleet-checklist/internal/db"
	"github.com/ukydev/fleet-checklist/internal/models"
	"github.com/ukydev/fleet-checklist/internal/notify"
)

func (c *cli) newChecklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Submit and list maintenance checklists",
	}
	cmd.AddCommand(c.newChecklistSubmitCmd(), c.newChecklistListCmd())
	return cmd
}

// parseItem splits "label=status" at the last '='. A bare label is left unanswered.
func parseItem(s string) (string, models.ItemStatus, error) {
	i := strings.LastIndex(s, "=")
	if i < 0 {
		return s, models.StatusUnset, nil
	}
	status, err := models.ParseItemStatus(s[i+1:])
	if err != nil {
		return "", models.StatusUnset, err
	}
	return s[:i], status, nil
}

func (c *cli) newChecklistSubmitCmd() *cobra.Command {
	var (
		km    string
		items []string
	)

	cmd := &cobra.Command{
		Use:   "submit PLATE",
		Short: "Save a checklist and update the vehicle's mileage",
		Long: `Save a checklist for a vehicle. Each --item is "label=status" where status
is yes or no (sim/não are accepted too); a bare label is saved unanswered.

When mqtt.broker is configured the resulting alerts are published as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []checklist.Option{checklist.WithApproachWindow(c.cfg.Alerts.ApproachWindow)}
			if c.cfg.MQTT.Broker != "" {
				publisher, err := notify.Connect(c.cfg.MQTT.Broker, c.cfg.MQTT.ClientID+"-cli", c.cfg.MQTT.TopicPrefix)
				if err != nil {
					return err
				}
				defer publisher.Close()
				opts = append(opts, checklist.WithPublisher(publisher))
			}

			return c.withStores(cmd.Context(), func(stores *db.Stores) error {
				session := checklist.NewSession(stores.Vehicles, args[0], opts...)
				if _, _, err := session.LoadVehicleContext(cmd.Context()); err != nil {
					return err
				}

				session.SetMileage(km)
				for i, raw := range items {
					label, status, err := parseItem(raw)
					if err != nil {
						return fmt.Errorf("item %q: %w", raw, err)
					}
					if !session.AddItem(label) {
						return fmt.Errorf("item %q has no label", raw)
					}
					if err := session.SetItemStatus(i, status); err != nil {
						return err
					}
				}

				record, err := session.Submit(cmd.Context())
				if err != nil {
					return err
				}
				alerts := session.Alerts()
				if ok, err := c.printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"checklist": record,
					"alerts":    alerts,
				}); ok {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved checklist for %s at %d km (%d items)\n",
					record.Plate, record.Mileage, len(record.Items))
				printAlerts(cmd.OutOrStdout(), record.Plate, session.Mileage(), alerts)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&km, "km", "", "odometer reading")
	flags.StringArrayVar(&items, "item", nil, `checklist item as "label=yes|no" (repeatable)`)
	_ = cmd.MarkFlagRequired("km")
	return cmd
}

func (c *cli) newChecklistListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list PLATE",
		Short: "List the most recent checklists of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStores(cmd.Context(), func(stores *db.Stores) error {
				checklists, err := stores.Vehicles.ListChecklists(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if ok, err := c.printJSON(cmd.OutOrStdout(), checklists); ok {
					return err
				}
				w := cmd.OutOrStdout()
				if len(checklists) == 0 {
					_, _ = fmt.Fprintf(w, "No checklists for %s\n", args[0])
					return nil
				}
				for _, cl := range checklists {
					_, _ = fmt.Fprintf(w, "%s  %d km\n", cl.Timestamp.Local().Format("2006-01-02 15:04"), cl.Mileage)
					for _, item := range cl.Items {
						status := string(item.Status)
						if status == "" {
							status = "-"
						}
						_, _ = fmt.Fprintf(w, "  %-3s %s\n", status, item.Label)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of checklists to show (0 for all)")
	return cmd
}
