package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/spec-kit/dinewithus/internal/access"
	"github.com/spec-kit/dinewithus/internal/client"
	"github.com/spec-kit/dinewithus/internal/domain"
	"github.com/spec-kit/dinewithus/internal/guard"
	"github.com/spec-kit/dinewithus/internal/session"
)

func newSignInCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Send a one-time sign-in code",
		Long: `Send a one-time sign-in code to an email address.

Examples:
  dinectl signin --email ana@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			a, err := opts.build()
			if err != nil {
				return err
			}
			if err := a.ids.SendCode(cmd.Context(), email); err != nil {
				return fmt.Errorf("send code: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Code sent to %s. Run 'dinectl verify --email %s --code <code>'.\n", email, email)
			return nil
		},
	}
	cmd.Flags().String("email", "", "email address")
	return cmd
}

func newVerifyCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Complete sign-in with the one-time code",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			code, _ := cmd.Flags().GetString("code")
			if email == "" || code == "" {
				return fmt.Errorf("--email and --code are required")
			}
			a, err := opts.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := a.ids.Verify(ctx, email, code)
			if err != nil {
				return fmt.Errorf("verify code: %w", err)
			}
			if err := a.sessions.OnCredentialChange(ctx, domain.AuthEventSignedIn, s); err != nil {
				return err
			}

			state := a.sessions.State()
			out := cmd.OutOrStdout()
			printState(out, state)
			if d := session.Directive(state, access.SignInPath); !d.None() {
				fmt.Fprintf(out, "Next: choose a role with 'dinectl role set <guest|host>' (%s)\n", d.Navigate)
				return nil
			}
			fmt.Fprintf(out, "Next: %s\n", access.PostSignInTarget(state.Role(), state.Authenticated()))
			return nil
		},
	}
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("code", "", "one-time code")
	return cmd
}

func newWhoAmICmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			if _, err := a.sessions.LoadSession(cmd.Context()); err != nil && !errors.Is(err, domain.ErrInvalidCredential) {
				return err
			}
			printState(cmd.OutOrStdout(), a.sessions.State())
			return nil
		},
	}
}

func newRoleCmd(opts *options) *cobra.Command {
	role := &cobra.Command{
		Use:   "role",
		Short: "Manage your role",
	}
	role.AddCommand(&cobra.Command{
		Use:       "set <guest|host>",
		Short:     "Choose whether you book dinners or host them",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.RoleGuest), string(domain.RoleHost)},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := a.sessions.LoadSession(ctx); err != nil {
				return err
			}
			target, err := client.NewRoleSelector(a.api, a.files, a.sessions).Select(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Role set to %s. Continue to %s\n", args[0], target)
			return nil
		},
	})
	return role
}

func newAccessCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "access <book|host-area>",
		Short:     "Show what a guarded view would do for you",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"book", "host-area"},
		RunE: func(cmd *cobra.Command, args []string) error {
			evaluate, capability, err := guardFor(args[0])
			if err != nil {
				return err
			}
			view, _ := cmd.Flags().GetString("view")

			a, err := opts.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, err := a.sessions.LoadSession(ctx); err != nil && !errors.Is(err, domain.ErrInvalidCredential) {
				return err
			}
			state := a.sessions.State()
			out := cmd.OutOrStdout()
			printDecision(out, evaluate(guard.FromState(state, view)))

			if state.Authenticated() {
				remote, err := a.api.Access(ctx, state.Session.AccessToken, capability)
				if err != nil {
					return fmt.Errorf("server access check: %w", err)
				}
				fmt.Fprintf(out, "Server: allowed=%t", remote.Allowed)
				if !remote.Allowed {
					fmt.Fprintf(out, " redirect=%s", remote.Redirect)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().String("view", "/", "view the guard is evaluated from")
	return cmd
}

func newSignOutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			_, _ = a.sessions.LoadSession(ctx)
			directive, err := a.sessions.SignOut(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out. Continue to %s\n", directive.Navigate)
			return err
		},
	}
}

func guardFor(name string) (func(guard.Input) guard.Decision, access.Capability, error) {
	switch name {
	case "book":
		return guard.Booking, access.CapabilityBook, nil
	case "host-area", "host_area":
		return guard.HostArea, access.CapabilityHostArea, nil
	default:
		return nil, "", fmt.Errorf("unknown capability %q: use book or host-area", name)
	}
}

func printState(out io.Writer, state session.State) {
	if !state.Authenticated() {
		fmt.Fprintln(out, "Not signed in.")
		return
	}
	p := state.Principal
	role := string(p.Role)
	if role == "" {
		role = "(none)"
	}
	fmt.Fprintf(out, "Email:  %s\n", p.Email)
	fmt.Fprintf(out, "Name:   %s\n", p.Name)
	fmt.Fprintf(out, "Role:   %s\n", role)
	fmt.Fprintf(out, "Status: %s\n", state.Status)
	if state.Degraded {
		fmt.Fprintln(out, "Profile service unreachable; showing token claims.")
	}
}

func printDecision(out io.Writer, d guard.Decision) {
	switch d.Kind {
	case guard.KindRender:
		fmt.Fprintln(out, "Allowed.")
	case guard.KindRedirect:
		fmt.Fprintf(out, "Redirect to %s\n", d.Target)
	case guard.KindDeny, guard.KindInsufficient:
		fmt.Fprintf(out, "Denied: %s\n", d.Message)
		fmt.Fprintf(out, "Go to %s\n", d.Action)
	case guard.KindLoading:
		fmt.Fprintln(out, "Loading...")
	}
}
