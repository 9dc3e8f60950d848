package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"consola.app/internal/guard"
)

type decisionView struct {
	Route    string `json:"route"`
	Title    string `json:"title"`
	Allowed  bool   `json:"allowed"`
	Location string `json:"location"`
}

// NewOpenCommand creates the open command, which runs the access guards for a screen.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <route>",
		Short: "Navigate to a console screen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "configuration error", Err: err}
			}
			defer a.Close()
			out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}

			a.svc.Restore(ctx)
			d, err := a.router.Navigate(args[0])
			if err != nil {
				if errors.Is(err, guard.ErrUnknownRoute) {
					return &ExitError{Code: ExitCommandError, Message: "ruta desconocida " + args[0]}
				}
				return err
			}
			v := decisionView{Route: d.Route.Path, Title: d.Route.Title, Allowed: d.Allowed, Location: a.router.Nav.Current().String()}
			if !d.Allowed {
				if rootOpts.Format == "json" {
					_ = out.ok(v, "")
				}
				return &ExitError{Code: ExitFailure, Message: "acceso denegado, redirigido a " + v.Location}
			}
			return out.ok(v, fmt.Sprintf("%s (%s)", v.Title, v.Route))
		},
	}
}

type routeView struct {
	Path       string   `json:"path"`
	Title      string   `json:"title"`
	Permission []string `json:"permission,omitempty"`
	Allowed    bool     `json:"allowed"`
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List console screens and whether the session may open them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "configuration error", Err: err}
			}
			defer a.Close()

			a.svc.Restore(ctx)
			st := a.state.Current()
			visible := make(map[string]bool)
			for _, rt := range a.router.Visible(st) {
				visible[rt.Path] = true
			}

			views := make([]routeView, 0, len(a.router.Routes))
			var b strings.Builder
			for _, rt := range a.router.Routes {
				allowed := visible[rt.Path] || (rt.Public && !st.IsAuthenticated())
				views = append(views, routeView{Path: rt.Path, Title: rt.Title, Permission: rt.Permission, Allowed: allowed})
				mark := " "
				if allowed {
					mark = "*"
				}
				fmt.Fprintf(&b, "%s %-20s %s", mark, rt.Path, rt.Title)
				if len(rt.Permission) > 0 {
					fmt.Fprintf(&b, " [%s]", strings.Join(rt.Permission, ", "))
				}
				b.WriteByte('\n')
			}
			return printer{format: rootOpts.Format, w: cmd.OutOrStdout()}.ok(views, strings.TrimRight(b.String(), "\n"))
		},
	}
}

// NewGetCommand creates the get command, an authenticated GET against the API.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Fetch an API resource with the session credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "configuration error", Err: err}
			}
			defer a.Close()
			out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}

			if err := a.requireSession(ctx); err != nil {
				return out.fail(err, err.Error())
			}
			var body json.RawMessage
			if err := a.client.GetJSON(ctx, args[0], &body); err != nil {
				n := apiFailure(err)
				a.feed.Notify(n)
				return out.fail(err, n.Detail)
			}
			pretty, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return err
			}
			return out.ok(body, string(pretty))
		},
	}
}
