package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/remindsync/internal/permission"
)

// permissionView is one capability's authorization as the local services
// record it.
type permissionView struct {
	Capability permission.Capability `json:"capability"`
	Status     string                `json:"status"`
	Granted    bool                  `json:"granted"`
}

func (v permissionView) String() string {
	return fmt.Sprintf("%-9s %s", v.Capability, v.Status)
}

type permissionList []permissionView

func (l permissionList) String() string {
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

func (a *app) capabilityStatus(ctx context.Context, c permission.Capability) (permissionView, error) {
	status, err := a.local.Grants.Status(ctx, c)
	if err != nil {
		return permissionView{}, err
	}
	return permissionView{
		Capability: c,
		Status:     status.String(),
		Granted:    status == permission.StatusAuthorized,
	}, nil
}

func parseCapabilityArg(arg string) (permission.Capability, error) {
	c, err := permission.ParseCapability(arg)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid capability", err)
	}
	return c, nil
}

// NewPermissionsCommand creates the permissions command group.
func NewPermissionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Inspect and change alerting and calendar authorization",
		Long: `Inspect and change the authorization of the two capabilities remindsync
depends on: alerting and calendar.

"request" asks the local service, which answers a not-yet-determined request
with the configured policy. "grant" and "revoke" change the answer directly,
the way a user would in system settings.`,
	}

	cmd.AddCommand(newPermissionsStatusCommand(rootOpts))
	cmd.AddCommand(newPermissionsRequestCommand(rootOpts))
	cmd.AddCommand(newPermissionsSetCommand(rootOpts, "grant", permission.StatusAuthorized))
	cmd.AddCommand(newPermissionsSetCommand(rootOpts, "revoke", permission.StatusDenied))

	return cmd
}

func newPermissionsStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the authorization status of both capabilities",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app) error {
				var list permissionList
				for _, c := range []permission.Capability{permission.Alerting, permission.CalendarWrite} {
					v, err := a.capabilityStatus(cmd.Context(), c)
					if err != nil {
						return report(a.out, nil, err)
					}
					list = append(list, v)
				}
				return a.out.Success(list)
			})
		},
	}
}

func newPermissionsRequestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "request [capability]",
		Short: "Request authorization (alerting by default)",
		Long: `Request authorization for a capability. With no argument the alerting
capability is requested, as an application would at launch. A refusal exits 1.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := permission.Alerting
			if len(args) == 1 {
				var err error
				if c, err = parseCapabilityArg(args[0]); err != nil {
					return err
				}
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				granted := a.gate.Ensure(cmd.Context(), c)
				v, err := a.capabilityStatus(cmd.Context(), c)
				if err != nil {
					return report(a.out, nil, err)
				}
				if !granted {
					msg := fmt.Sprintf("%s permission not granted", c)
					if err := a.out.Result(v, &CLIError{Code: CodePermissionDenied, Message: msg}); err != nil {
						return err
					}
					return NewExitError(ExitFailure, msg)
				}
				return a.out.Success(v)
			})
		},
	}
}

func newPermissionsSetCommand(rootOpts *RootOptions, verb string, status permission.Status) *cobra.Command {
	return &cobra.Command{
		Use:           verb + " <capability>",
		Short:         fmt.Sprintf("Set a capability to %s", status),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCapabilityArg(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				if err := a.local.Grants.Set(cmd.Context(), c, status); err != nil {
					return report(a.out, nil, err)
				}
				a.logger.Info("authorization changed", "capability", c, "status", status)
				v, err := a.capabilityStatus(cmd.Context(), c)
				if err != nil {
					return report(a.out, nil, err)
				}
				return a.out.Success(v)
			})
		},
	}
}
