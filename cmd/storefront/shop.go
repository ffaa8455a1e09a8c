package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ahinestrog/mybookstore-storefront/internal/catalog"
	"github.com/ahinestrog/mybookstore-storefront/internal/checkout"
	"github.com/ahinestrog/mybookstore-storefront/internal/models"
	"github.com/ahinestrog/mybookstore-storefront/internal/store"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func money(d decimal.Decimal) string { return models.FormatMoney(d) }

// stock prints the copies available, or "-" when the API did not say.
func stock(b models.Book) string {
	if n, ok := b.Stock(); ok {
		return humanize.Comma(int64(n))
	}
	return "-"
}

func newBooksCmd(a *app) *cobra.Command {
	var q catalog.Query
	var groupBy string
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.GroupBy = catalog.ParseGroupBy(groupBy)
			svc := catalog.NewService(a.client(), 0, nil)
			page, err := svc.Browse(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if page.Total == 0 {
				fmt.Fprintln(out, "No books found")
				return nil
			}
			w := newTable(out)
			for _, g := range page.Groups {
				fmt.Fprintf(w, "== %s ==\n", g.Key)
				for _, b := range g.Books {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s left\n", b.ID, b.Name, b.Author, money(b.Price), stock(b))
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "page %d of %d, %s\n", page.Page, page.TotalPages, humanize.Comma(int64(page.Total))+" books")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.Term, "q", "q", "", "search by name, author or genre")
	f.StringVar(&groupBy, "category", string(catalog.ByGenre), "group by genre, authorName, publisherName or all")
	f.IntVar(&q.Page, "page", 1, "page number")
	return cmd
}

// findBook resolves a book id against the catalog so the local line shows the book
// before the API answers.
func (a *app) findBook(cmd *cobra.Command, id string) (models.Book, error) {
	books, err := a.client().ListBooks(cmd.Context())
	if err != nil {
		return models.Book{}, err
	}
	for _, b := range books {
		if b.ID == id {
			return b, nil
		}
	}
	return models.Book{}, fmt.Errorf("no book with id %q", id)
}

func newCartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			if !st.Authenticated() {
				return store.ErrNotAuthenticated
			}
			return printCart(cmd.OutOrStdout(), st)
		},
	}

	itemCmd := func(use, short string, run func(*store.Store, *cobra.Command, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <item-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, _, err := a.openStore(cmd)
				if err != nil {
					return err
				}
				if err := run(st, cmd, args[0]); err != nil {
					return err
				}
				return printCart(cmd.OutOrStdout(), st)
			},
		}
	}

	add := itemCmd("add", "Add one copy of a book", func(st *store.Store, cmd *cobra.Command, id string) error {
		b, err := a.findBook(cmd, id)
		if err != nil {
			return err
		}
		return st.AddToCart(cmd.Context(), b)
	})
	add.Use = "add <book-id>"

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			return st.ClearCart(cmd.Context())
		},
	}

	cmd.AddCommand(
		add,
		itemCmd("inc", "Add one to a line", func(st *store.Store, cmd *cobra.Command, id string) error {
			return st.IncrementQuantity(cmd.Context(), id)
		}),
		itemCmd("dec", "Take one from a line, dropping it at zero", func(st *store.Store, cmd *cobra.Command, id string) error {
			return st.DecrementQuantity(cmd.Context(), id)
		}),
		itemCmd("rm", "Remove a line", func(st *store.Store, cmd *cobra.Command, id string) error {
			return st.RemoveFromCart(cmd.Context(), id)
		}),
		clearCmd,
	)
	return cmd
}

func printCart(out io.Writer, st *store.Store) error {
	lines := st.Cart()
	if len(lines) == 0 {
		fmt.Fprintln(out, "Your cart is empty")
		return nil
	}
	w := newTable(out)
	fmt.Fprintln(w, "ITEM\tBOOK\tQTY\tPRICE\tTOTAL")
	for _, it := range lines {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", it.ID, it.Book.Name, it.Quantity, money(it.Book.Price), money(it.LineTotal()))
	}
	fmt.Fprintf(w, "\t\t%d\t\t%s\n", st.CartCount(), money(st.CartTotal()))
	return w.Flush()
}

func newWishlistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Show and change the wishlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			if !st.Authenticated() {
				return store.ErrNotAuthenticated
			}
			items := st.Wishlist()
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Your wishlist is empty")
				return nil
			}
			w := newTable(out)
			fmt.Fprintln(w, "ITEM\tBOOK\tAUTHOR\tPRICE")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.ID, it.Book.Name, it.Book.Author, money(it.Book.Price))
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <book-id>",
			Short: "Save a book for later",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, _, err := a.openStore(cmd)
				if err != nil {
					return err
				}
				if st.InWishlist(args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), "Already in your wishlist")
					return nil
				}
				b, err := a.findBook(cmd, args[0])
				if err != nil {
					return err
				}
				return st.AddToWishlist(cmd.Context(), b)
			},
		},
		&cobra.Command{
			Use:   "rm <item-id|book-id>",
			Short: "Remove a wishlist entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, _, err := a.openStore(cmd)
				if err != nil {
					return err
				}
				id := args[0]
				if it, ok := st.WishlistItemFor(id); ok {
					id = it.ID
				}
				return st.RemoveFromWishlist(cmd.Context(), id)
			},
		},
	)
	return cmd
}

func newCheckoutCmd(a *app) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Buy everything in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, src, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			svc := checkout.NewService(a.client(), src, printNotices(cmd.ErrOrStderr()), a.events())
			res, err := svc.Checkout(cmd.Context(), st, address)
			var oos *checkout.OutOfStockError
			if errors.As(err, &oos) {
				return fmt.Errorf("only %d copies of %s left", oos.Available, oos.Title)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d line(s), %s\n", len(res.Lines), money(res.Total))
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "delivery address")
	return cmd
}
