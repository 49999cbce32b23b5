package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/remindsync/internal/engine"
	"github.com/roach88/remindsync/internal/reminder"
	"github.com/roach88/remindsync/internal/store"
)

// fireFlags are the two ways to give a fire time.
type fireFlags struct {
	At string // RFC 3339
	In string // duration from now
}

func (f *fireFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.At, "at", "", "fire time (RFC 3339, e.g. 2026-03-01T10:00:00Z)")
	cmd.Flags().StringVar(&f.In, "in", "", "fire time relative to now (e.g. 90m)")
}

func (f *fireFlags) set() bool {
	return f.At != "" || f.In != ""
}

// resolve returns the fire time the flags describe.
func (f *fireFlags) resolve(now time.Time) (time.Time, error) {
	switch {
	case f.At != "" && f.In != "":
		return time.Time{}, NewExitError(ExitCommandError, "--at and --in are mutually exclusive")
	case f.At != "":
		t, err := time.Parse(time.RFC3339, f.At)
		if err != nil {
			return time.Time{}, WrapExitError(ExitCommandError, "invalid --at", err)
		}
		return t, nil
	case f.In != "":
		d, err := time.ParseDuration(f.In)
		if err != nil {
			return time.Time{}, WrapExitError(ExitCommandError, "invalid --in", err)
		}
		return now.Add(d), nil
	}
	return time.Time{}, NewExitError(ExitCommandError, "one of --at or --in is required")
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid reminder id %q", arg))
	}
	return id, nil
}

// outcomeView renders an engine outcome.
type outcomeView struct {
	*engine.Outcome
}

func (v outcomeView) String() string {
	var b strings.Builder
	writeReminder(&b, v.Reminder)
	fmt.Fprintf(&b, "  state:     %s\n", v.State)
	if len(v.Effects) > 0 {
		effects := make([]string, len(v.Effects))
		for i, e := range v.Effects {
			effects[i] = string(e)
		}
		fmt.Fprintf(&b, "  effects:   %s\n", strings.Join(effects, ", "))
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(&b, "  warning:   %s\n", w)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// reminderView renders one stored reminder.
type reminderView struct {
	*reminder.Reminder
}

func (v reminderView) String() string {
	var b strings.Builder
	writeReminder(&b, v.Reminder)
	return strings.TrimSuffix(b.String(), "\n")
}

func writeReminder(b *strings.Builder, r *reminder.Reminder) {
	if r.ID != 0 {
		fmt.Fprintf(b, "#%d %s\n", r.ID, r.Title)
	} else {
		fmt.Fprintf(b, "%s\n", r.Title)
	}
	fmt.Fprintf(b, "  fire_at:   %s\n", r.FireAt.UTC().Format(time.RFC3339))
	if r.Note != "" {
		fmt.Fprintf(b, "  note:      %s\n", r.Note)
	}
	fmt.Fprintf(b, "  completed: %t\n", r.Completed)
	if r.HasCalendarLink() {
		fmt.Fprintf(b, "  calendar:  %s\n", r.CalendarLinkID)
	}
}

// reminderList renders a list, one reminder per line.
type reminderList []*reminder.Reminder

func (l reminderList) String() string {
	if len(l) == 0 {
		return "No reminders."
	}
	lines := make([]string, len(l))
	for i, r := range l {
		mark := " "
		if r.Completed {
			mark = "x"
		}
		line := fmt.Sprintf("%4d [%s] %s  %s", r.ID, mark, r.FireAt.UTC().Format(time.RFC3339), r.Title)
		if r.HasCalendarLink() {
			line += "  (calendar)"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// reportOutcome prints out and/or err. A nil outcome means nothing changed.
func reportOutcome(a *app, out *engine.Outcome, err error) error {
	var data interface{}
	if out != nil {
		data = outcomeView{out}
	}
	return report(a.out, data, err)
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Title    string
	Note     string
	Fire     fireFlags
	Calendar bool
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a reminder and schedule its alert",
		Long: `Create a reminder, schedule its alert and, with --calendar, add a
calendar event for it.

If the calendar event cannot be created the reminder is still saved with its
alert and the command exits 1 with a partial failure.

Examples:
  remindsync add --title "Pay rent" --at 2026-03-01T10:00:00Z
  remindsync add --title "Stretch" --in 45m --note "Five minutes" --calendar`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fireAt, err := opts.Fire.resolve(time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd, opts.RootOptions, func(a *app) error {
				out, err := a.reminders.Create(cmd.Context(), reminder.Desired{
					Title:         opts.Title,
					Note:          opts.Note,
					FireAt:        fireAt,
					AddToCalendar: opts.Calendar,
				})
				return reportOutcome(a, out, err)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "reminder title")
	cmd.Flags().StringVar(&opts.Note, "note", "", "optional note shown in the alert body")
	cmd.Flags().BoolVar(&opts.Calendar, "calendar", false, "also add a calendar event")
	opts.Fire.register(cmd)

	return cmd
}

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Title    string
	Note     string
	Fire     fireFlags
	Calendar bool
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a reminder and reschedule its alert",
		Long: `Change a reminder. Flags that are not given keep their current value;
--calendar=false removes the linked calendar event.

Examples:
  remindsync edit 3 --in 2h
  remindsync edit 3 --title "Pay rent (March)" --calendar`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var fireAt time.Time
			if opts.Fire.set() {
				if fireAt, err = opts.Fire.resolve(time.Now()); err != nil {
					return err
				}
			}

			return withApp(cmd, opts.RootOptions, func(a *app) error {
				existing, err := a.reminders.Get(cmd.Context(), id)
				if err != nil {
					return report(a.out, nil, err)
				}

				d := engine.DesiredFrom(existing)
				flags := cmd.Flags()
				if flags.Changed("title") {
					d.Title = opts.Title
				}
				if flags.Changed("note") {
					d.Note = opts.Note
				}
				if flags.Changed("calendar") {
					d.AddToCalendar = opts.Calendar
				}
				if opts.Fire.set() {
					d.FireAt = fireAt
				}

				out, err := a.reminders.Edit(cmd.Context(), id, d)
				return reportOutcome(a, out, err)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Note, "note", "", "new note (empty removes it)")
	cmd.Flags().BoolVar(&opts.Calendar, "calendar", false, "keep a calendar event for the reminder")
	opts.Fire.register(cmd)

	return cmd
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark a reminder completed, or reopen it",
		Long: `Flip a reminder's completed flag. Completing cancels its alert; reopening
schedules it again. The calendar event is left as it is either way.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				out, err := a.reminders.Toggle(cmd.Context(), id)
				return reportOutcome(a, out, err)
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a reminder, its alert and its calendar event",
		Long: `Delete a reminder. Its alert is cancelled and its calendar event, if any,
is removed. A calendar failure is reported as a warning; the reminder is
deleted regardless.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				out, err := a.reminders.Delete(cmd.Context(), id)
				return reportOutcome(a, out, err)
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List reminders ordered by fire time",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch s := store.Status(status); s {
			case store.StatusAll, store.StatusPending, store.StatusCompleted:
			default:
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid status %q: must be all, pending or completed", status))
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				reminders, err := a.reminders.List(cmd.Context(), store.Status(status))
				if err != nil {
					return report(a.out, nil, err)
				}
				return a.out.Success(reminderList(reminders))
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", string(store.StatusAll), "all, pending or completed")

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one reminder",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				r, err := a.reminders.Get(cmd.Context(), id)
				if err != nil {
					return report(a.out, nil, err)
				}
				return a.out.Success(reminderView{r})
			})
		},
	}
}
