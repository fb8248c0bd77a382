package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/fieldsync/internal/client/app"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/spf13/cobra"
)

func (c *CLI) loginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, offline when the server cannot be reached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			company, _ := cmd.Flags().GetInt64("company")
			user, _ := cmd.Flags().GetString("user")

			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if company == 0 {
				if company, err = c.pickCompany(ctx, a); err != nil {
					return err
				}
			}
			if user == "" {
				if user, err = GetSimpleText(c.in, "User name", c.out); err != nil {
					return err
				}
			}
			pw, err := GetPassword(c.out)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			res, err := a.Login(ctx, models.Credentials{CompanyID: company, UserName: user, Password: string(pw)})
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("login failed: %s", res.Message)
			}

			mode := "online"
			if res.Offline {
				mode = "offline"
			}
			fmt.Fprintf(c.out, "Logged in as %s (%s)\n", res.Session.UserName, mode)
			return nil
		},
	}
	cmd.Flags().Int64("company", 0, "company id")
	cmd.Flags().StringP("user", "u", "", "user name")
	return cmd
}

// pickCompany lists the companies and asks for one unless there is only one.
func (c *CLI) pickCompany(ctx context.Context, a *app.App) (int64, error) {
	list, _, err := a.Companies(ctx)
	if err != nil {
		return 0, err
	}
	switch len(list) {
	case 0:
		return 0, errors.New("no companies known yet, pass --company")
	case 1:
		return list[0].ID, nil
	}

	for _, co := range list {
		fmt.Fprintf(c.out, "%6d  %s\n", co.ID, co.Name)
	}
	s, err := GetSimpleText(c.in, "Company id", c.out)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("company id %q: %w", s, err)
	}
	return id, nil
}

func (c *CLI) logoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			forget, _ := cmd.Flags().GetBool("forget")

			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Logout(cmd.Context()); err != nil {
				return err
			}
			if forget {
				if err := a.ClearOfflineData(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}
	cmd.Flags().Bool("forget", false, "also forget the credentials kept for offline login")
	return cmd
}

func (c *CLI) companiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List the companies available at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list, remote, err := a.Companies(cmd.Context())
			if err != nil {
				return err
			}
			for _, co := range list {
				fmt.Fprintf(c.out, "%6d  %s\n", co.ID, co.Name)
			}
			if !remote {
				fmt.Fprintln(c.out, "(from the local catalog)")
			}
			return nil
		},
	}
}

func (c *CLI) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, session and pending vouchers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Start(ctx); err != nil {
				return err
			}
			snap, err := a.ConnectivityState(ctx)
			if err != nil {
				return err
			}
			base, err := a.BaseURL(ctx)
			if err != nil {
				return err
			}
			pending, err := a.PendingCount(ctx)
			if err != nil {
				return err
			}

			if base == "" {
				base = "(not set)"
			}
			fmt.Fprintf(c.out, "Server:    %s\n", base)
			fmt.Fprintf(c.out, "Session:   %s\n", describeSession(a.Session()))
			fmt.Fprintf(c.out, "State:     %s\n", snap.State)
			fmt.Fprintf(c.out, "Network:   %s\n", yesNo(snap.NetworkAvailable))
			fmt.Fprintf(c.out, "Server up: %s\n", yesNo(snap.RemoteReachable))
			fmt.Fprintf(c.out, "Internet:  %s\n", yesNo(snap.InternetReachable))
			fmt.Fprintf(c.out, "Token:     %s\n", validity(snap.TokenValid))
			fmt.Fprintf(c.out, "Pending:   %s\n", describePending(pending))
			return nil
		},
	}
}

func (c *CLI) serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Show or change the server address",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the server address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			base, err := a.BaseURL(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, base)
			return nil
		},
	}, &cobra.Command{
		Use:   "set-url URL",
		Short: "Store a new server address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateServerURL(args[0]); err != nil {
				return err
			}
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.SetBaseURL(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Server address set to %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func (c *CLI) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Monitor connectivity until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Start(ctx); err != nil {
				return err
			}
			snap, err := a.ConnectivityState(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Watching connectivity, currently %s\n", snap.State)

			<-ctx.Done()
			return nil
		},
	}
}

func describeSession(s *models.SessionCredential) string {
	if s == nil {
		return "none"
	}
	mode := "online allowed"
	if !s.OnlineAllowed {
		mode = "offline only"
	}
	return fmt.Sprintf("%s (company %d, %s)", s.UserName, s.CompanyID, mode)
}

func describePending(counts map[models.VoucherKind]int) string {
	out := ""
	for i, k := range models.VoucherKinds {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %d", k, counts[k])
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func validity(b bool) string {
	if b {
		return "valid"
	}
	return "missing or expired"
}
