package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahinestrog/mybookstore-storefront/internal/api"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
)

func newLoginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			res, err := a.client().Login(ctx, args[0], password)
			if err != nil {
				return err
			}
			repo, err := a.sessions()
			if err != nil {
				return err
			}
			sess := session.Session{Token: res.Token, Username: args[0]}
			if err := repo.Save(ctx, a.profile, sess); err != nil {
				return err
			}
			role := "customer"
			if sess.IsAdmin() {
				role = "admin"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", args[0], role)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when empty)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session, locally even if the API cannot be reached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cur, err := a.current(ctx)
			if err != nil {
				return err
			}
			if !cur.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			remoteErr := a.client().Logout(ctx, cur.Token)
			if err := a.repo.Delete(ctx, a.profile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			if remoteErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "!! remote logout failed: %v\n", remoteErr)
			}
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cur, err := a.current(ctx)
			if err != nil {
				return err
			}
			if !cur.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			u, err := a.client().UserByUsername(ctx, cur.Token, cur.Username)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintf(w, "Username\t%s\n", u.Username)
			fmt.Fprintf(w, "Name\t%s\n", u.FullName)
			fmt.Fprintf(w, "Email\t%s\n", u.Email)
			fmt.Fprintf(w, "Mobile\t%s\n", u.MobileNumber)
			fmt.Fprintf(w, "Role\t%s\n", roleOf(cur))
			return w.Flush()
		},
	}
}

func roleOf(s session.Session) string {
	if r := s.Role(); r != "" {
		return r
	}
	return "customer"
}

var errPasswordMismatch = errors.New("Passwords do not match")

func newRegisterCmd(a *app) *cobra.Command {
	var reg api.Registration
	var confirm string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a customer account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reg.Password != confirm {
				return errPasswordMismatch
			}
			if err := a.client().Register(cmd.Context(), reg); err != nil {
				return fmt.Errorf("Error registering user: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "User registered successfully")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.FullName, "name", "", "full name")
	f.StringVar(&reg.Username, "username", "", "username")
	f.StringVar(&reg.Email, "email", "", "email")
	f.StringVar(&reg.MobileNumber, "mobile", "", "mobile number")
	f.StringVar(&reg.Password, "password", "", "password")
	f.StringVar(&confirm, "confirm", "", "password again")
	for _, name := range []string{"name", "username", "email", "password", "confirm"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newContactCmd(a *app) *cobra.Command {
	var msg models.Contact
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Send a message to the bookstore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client().SendContact(cmd.Context(), msg); err != nil {
				return fmt.Errorf("There was an error submitting your contact form. Please try again: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Contact details sent successfully!")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&msg.Name, "name", "", "your name")
	f.StringVar(&msg.Email, "email", "", "your email")
	f.StringVar(&msg.Message, "message", "", "message")
	for _, name := range []string{"name", "email", "message"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}
