package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"consola.app/internal/auth"
)

type identityView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"nombre"`
	Email       string   `json:"email"`
	Role        string   `json:"rol,omitempty"`
	Branch      string   `json:"sucursal,omitempty"`
	Permissions []string `json:"permissions"`
}

func viewOf(id auth.Identity, perms auth.PermissionSet) identityView {
	v := identityView{ID: id.ID, Name: id.Name, Email: id.Email, Permissions: perms.Names()}
	if id.Role != nil {
		v.Role = id.Role.Name
	}
	if id.Branch != nil {
		v.Branch = id.Branch.Name
	}
	return v
}

func (v identityView) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <%s>", v.Name, v.Email)
	if v.Role != "" {
		fmt.Fprintf(&b, "\nRol: %s", v.Role)
	}
	if v.Branch != "" {
		fmt.Fprintf(&b, "\nSucursal: %s", v.Branch)
	}
	if len(v.Permissions) > 0 {
		fmt.Fprintf(&b, "\nPermisos: %s", strings.Join(v.Permissions, ", "))
	}
	return b.String()
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session for the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return &ExitError{Code: ExitCommandError, Message: "could not read password from stdin", Err: err}
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return NewExitError(ExitCommandError, "--email and a password are required")
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "configuration error", Err: err}
			}
			defer a.Close()

			out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			id, err := a.svc.Login(ctx, auth.Credentials{Email: email, Password: password})
			if err != nil {
				return out.fail(err, auth.UserMessage(err))
			}
			v := viewOf(id, a.state.Current().Permissions)
			return out.ok(v, "Sesión iniciada: "+v.text())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session locally and on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "configuration error", Err: err}
			}
			defer a.Close()

			a.svc.Restore(ctx)
			a.svc.Logout(ctx)
			return printer{format: rootOpts.Format, w: cmd.OutOrStdout()}.ok(nil, "Sesión cerrada.")
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity and permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "configuration error", Err: err}
			}
			defer a.Close()
			out := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}

			if cached {
				id := a.svc.WarmIdentity(ctx)
				if id == nil {
					return out.fail(nil, "No hay una identidad guardada.")
				}
				v := viewOf(*id, auth.NewPermissionSet(id.Permissions))
				return out.ok(v, v.text()+"\n(sin verificar)")
			}
			if err := a.requireSession(ctx); err != nil {
				return out.fail(err, err.Error())
			}
			st := a.state.Current()
			v := viewOf(*st.Identity, st.Permissions)
			return out.ok(v, v.text())
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "print the stored identity snapshot without contacting the backend")
	return cmd
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the session token and reload permissions",
		Args:  cobra.NoArgs,
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
			id, err := a.svc.Refresh(ctx)
			if err != nil {
				if errors.Is(err, auth.ErrNoCredential) {
					return out.fail(err, "No hay una sesión activa.")
				}
				return out.fail(err, auth.UserMessage(err))
			}
			v := viewOf(id, a.state.Current().Permissions)
			return out.ok(v, "Sesión renovada: "+v.text())
		},
	}
}
