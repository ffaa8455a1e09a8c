package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ahinestrog/mybookstore-storefront/internal/catalog"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
)

var errNotAdmin = errors.New("admin access required")

// requireAdmin returns the stored session when its token carries the admin role.
func (a *app) requireAdmin(cmd *cobra.Command) (session.Session, error) {
	cur, err := a.current(cmd.Context())
	if err != nil {
		return session.Session{}, err
	}
	if !cur.Authenticated() {
		return session.Session{}, errors.New("Please login to proceed")
	}
	if !cur.IsAdmin() {
		return session.Session{}, errNotAdmin
	}
	if cur.Expired(time.Now()) {
		return session.Session{}, errors.New("session expired, please log in again")
	}
	return cur, nil
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin dashboards",
	}
	cmd.AddCommand(
		newAdminBooksCmd(a),
		newAdminUsersCmd(a),
		newAdminOrdersCmd(a),
		newAdminContactsCmd(a),
		newAdminStatsCmd(a),
	)
	return cmd
}

func newAdminBooksCmd(a *app) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List books by author, five per page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireAdmin(cmd); err != nil {
				return err
			}
			books, err := a.client().ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			items, cur, pages := catalog.Paginate(catalog.SortByAuthor(books), page, catalog.DashboardPerPage)
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tGENRE\tPRICE\tCOPIES")
			for _, b := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Author, b.Genre, money(b.Price), stock(b))
			}
			fmt.Fprintf(w, "page %d of %d\n", cur, pages)
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")

	var (
		form   models.Book
		price  string
		copies int
	)
	bookFlags := func(c *cobra.Command) {
		f := c.Flags()
		f.StringVar(&form.Name, "name", "", "title")
		f.StringVar(&form.Author, "author", "", "author")
		f.StringVar(&form.Publisher, "publisher", "", "publisher")
		f.StringVar(&form.Genre, "genre", "", "genre")
		f.StringVar(&price, "price", "0", "price")
		f.StringVar(&form.Description, "description", "", "description")
		f.StringVar(&form.ImageURL, "image", "", "cover image URL")
		f.IntVar(&copies, "copies", 0, "copies available")
		f.StringVar(&form.PublishingDate, "published", "", "publishing date")
	}
	service := func() *catalog.Service { return catalog.NewService(a.client(), 0, a.events()) }

	create := &cobra.Command{
		Use:   "create",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			book, err := applyBookFlags(cmd, models.Book{}, form, price, copies)
			if err != nil {
				return err
			}
			out, err := service().Create(cmd.Context(), cur.Token, book)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Book created: %s\n", out.ID)
			return nil
		},
	}
	bookFlags(create)
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("author")

	update := &cobra.Command{
		Use:   "update <book-id>",
		Short: "Change the given fields of a book, keeping the rest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			current, err := a.findBook(cmd, args[0])
			if err != nil {
				return err
			}
			book, err := applyBookFlags(cmd, current, form, price, copies)
			if err != nil {
				return err
			}
			if _, err := service().Update(cmd.Context(), cur.Token, args[0], book); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Book updated")
			return nil
		},
	}
	bookFlags(update)

	del := &cobra.Command{
		Use:   "delete <book-id>",
		Short: "Remove a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			if err := service().Delete(cmd.Context(), cur.Token, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Book deleted")
			return nil
		},
	}

	cmd.AddCommand(create, update, del)
	return cmd
}

// applyBookFlags copies onto base only the book flags set on the command line.
func applyBookFlags(cmd *cobra.Command, base, form models.Book, price string, copies int) (models.Book, error) {
	f := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}
	set("name", &base.Name, form.Name)
	set("author", &base.Author, form.Author)
	set("publisher", &base.Publisher, form.Publisher)
	set("genre", &base.Genre, form.Genre)
	set("description", &base.Description, form.Description)
	set("image", &base.ImageURL, form.ImageURL)
	set("published", &base.PublishingDate, form.PublishingDate)
	if f.Changed("price") {
		p, err := decimal.NewFromString(price)
		if err != nil {
			return models.Book{}, fmt.Errorf("invalid price %q: %w", price, err)
		}
		base.Price = p
	}
	if f.Changed("copies") {
		base.CopiesAvailable = models.Copies(copies)
	}
	return base, nil
}

func newAdminUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			users, err := a.client().ListUsers(cmd.Context(), cur.Token)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tADMIN")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Username, u.FullName, u.Email, u.IsAdmin)
			}
			return w.Flush()
		},
	}

	var u models.User
	update := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Change a user's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			u.ID = args[0]
			if _, err := a.client().UpdateUser(cmd.Context(), cur.Token, args[0], u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "User updated")
			return nil
		},
	}
	f := update.Flags()
	f.StringVar(&u.Username, "username", "", "username")
	f.StringVar(&u.FullName, "name", "", "full name")
	f.StringVar(&u.Email, "email", "", "email")
	f.StringVar(&u.MobileNumber, "mobile", "", "mobile number")
	f.BoolVar(&u.IsAdmin, "admin", false, "grant the admin role")

	del := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			if err := a.client().DeleteUser(cmd.Context(), cur.Token, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "User deleted")
			return nil
		},
	}
	cmd.AddCommand(update, del)
	return cmd
}

func newAdminOrdersCmd(a *app) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders, five per page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			orders, err := a.client().ListOrders(cmd.Context(), cur.Token)
			if err != nil {
				return err
			}
			items, pg, pages := catalog.Paginate(orders, page, catalog.DashboardPerPage)
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "DATE\tCUSTOMER\tBOOK\tCOPIES\tPRICE\tADDRESS")
			for _, o := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", o.OrderDate, customerOf(o), bookOf(o), o.CopiesPurchased, money(o.Price), o.Address)
			}
			fmt.Fprintf(w, "page %d of %d\n", pg, pages)
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func customerOf(o models.Order) string {
	switch {
	case o.CustomerName != "":
		return o.CustomerName
	case o.Customer != nil:
		return o.Customer.Username
	}
	return "-"
}

func bookOf(o models.Order) string {
	if o.Book != nil && o.Book.Name != "" {
		return o.Book.Name
	}
	return "-"
}

func newAdminContactsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List contact form messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			msgs, err := a.client().ListContacts(cmd.Context(), cur.Token)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "NAME\tEMAIL\tMESSAGE")
			for _, m := range msgs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, m.Email, m.Message)
			}
			return w.Flush()
		},
	}
}

func newAdminStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Sales per book, books per genre and revenue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur, err := a.requireAdmin(cmd)
			if err != nil {
				return err
			}
			var (
				books  []models.Book
				orders []models.Order
			)
			client := a.client()
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				books, err = client.ListBooks(ctx)
				return err
			})
			g.Go(func() (err error) {
				orders, err = client.ListOrders(ctx, cur.Token)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "BOOK\tSOLD\tIN STOCK")
			for _, s := range catalog.SalesByBook(books, orders) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, humanize.Comma(int64(s.CopiesSold)), humanize.Comma(int64(s.CopiesAvailable)))
			}
			fmt.Fprintln(w, "\t\t")
			fmt.Fprintln(w, "GENRE\tBOOKS\t")
			for _, gc := range catalog.GenreCounts(books) {
				fmt.Fprintf(w, "%s\t%d\t\n", gc.Genre, gc.Books)
			}
			fmt.Fprintln(w, "\t\t")
			fmt.Fprintf(w, "Orders\t%s\t\n", humanize.Comma(int64(len(orders))))
			fmt.Fprintf(w, "Revenue\t%s\t\n", money(catalog.Revenue(orders)))
			return w.Flush()
		},
	}
}
