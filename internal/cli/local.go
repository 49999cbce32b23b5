package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/remindsync/internal/localsvc"
)

type alertList []localsvc.Alert

func (l alertList) String() string {
	if len(l) == 0 {
		return "No alerts."
	}
	lines := make([]string, len(l))
	for i, a := range l {
		state := "pending"
		if a.Delivered() {
			state = "delivered " + a.DeliveredAt.UTC().Format(time.RFC3339)
		}
		lines[i] = fmt.Sprintf("%s  %s  %s: %s  [%s]",
			a.ID, a.FireAt.UTC().Format(time.RFC3339), a.Title, oneLine(a.Body), state)
	}
	return strings.Join(lines, "\n")
}

type eventList []localsvc.StoredEvent

func (l eventList) String() string {
	if len(l) == 0 {
		return "No calendar events."
	}
	lines := make([]string, len(l))
	for i, ev := range l {
		lines[i] = fmt.Sprintf("%s  %s - %s  %s  (alarm %s)",
			ev.ID,
			ev.Start.UTC().Format(time.RFC3339),
			ev.End.UTC().Format(time.RFC3339),
			ev.Title,
			ev.AlarmOffset)
	}
	return strings.Join(lines, "\n")
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " / ")
}

// NewAlertsCommand creates the alerts command.
func NewAlertsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "alerts",
		Short:         "List alerts held by the local alert center",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app) error {
				alerts, err := a.local.Alerts.List(cmd.Context())
				if err != nil {
					return report(a.out, nil, err)
				}
				return a.out.Success(alertList(alerts))
			})
		},
	}
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "events",
		Short:         "List events held by the local calendar",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app) error {
				events, err := a.local.Calendar.List(cmd.Context())
				if err != nil {
					return report(a.out, nil, err)
				}
				return a.out.Success(eventList(events))
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <event-id>",
		Short: "Delete a calendar event behind remindsync's back",
		Long: `Delete a calendar event directly, as another application would. The
reminder keeps its now-stale link until its next edit or delete.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app) error {
				if err := a.local.Calendar.Remove(cmd.Context(), args[0]); err != nil {
					return report(a.out, nil, err)
				}
				return a.out.Success(fmt.Sprintf("Removed calendar event %s.", args[0]))
			})
		},
	})

	return cmd
}

// NewDeliverCommand creates the deliver command.
func NewDeliverCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Deliver pending alerts that are due",
		Long: `Deliver every pending alert whose fire time is at or before --at (default
now). Delivered alerts stay visible until their reminder cancels them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --at", err)
				}
				now = t
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				delivered, err := a.local.Alerts.DeliverDue(cmd.Context(), now)
				if err != nil {
					return report(a.out, nil, err)
				}
				a.out.VerboseLog("delivered %d alert(s) due by %s", len(delivered), now.UTC().Format(time.RFC3339))
				return a.out.Success(alertList(delivered))
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "delivery time (RFC 3339, default now)")

	return cmd
}
