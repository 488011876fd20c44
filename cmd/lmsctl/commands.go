package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lms/internal/app"
	"lms/internal/id"
	"lms/internal/library"
	"lms/internal/models"
	"lms/internal/seed"
)

const dateLayout = "2006-01-02"

func newBooksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage the catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := c.lib.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			return c.printBooks(books)
		},
	}

	var in library.NewBook
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book with all copies available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			book, err := c.lib.CreateBook(cmd.Context(), in)
			if err != nil {
				return err
			}
			return c.printBooks([]models.Book{book})
		},
	}
	add.Flags().StringVar(&in.Title, "title", "", "book title (required)")
	add.Flags().StringVar(&in.Author, "author", "", "book author (required)")
	add.Flags().StringVar(&in.ISBN, "isbn", "", "ISBN")
	add.Flags().IntVar(&in.TotalCopies, "copies", 1, "number of copies")
	add.Flags().StringVar(&in.Category, "category", "", "category")
	add.Flags().StringVar(&in.CoverURL, "cover", "", "cover image URL")

	del := &cobra.Command{
		Use:   "delete <book-id>",
		Short: "Delete a book; active loans keep referencing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.lib.DeleteBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deleted %s\n", args[0])
			return nil
		},
	}

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Find books by title or author",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := c.lib.SearchBooks(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return c.printBooks(books)
		},
	}

	cmd.AddCommand(list, add, del, search)
	return cmd
}

func newMembersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Inspect members",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			members, err := c.lib.ListMembers(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.printJSON(members)
			}

			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTUDENT ID\tNAME\tEMAIL\tROLE")
			for _, m := range members {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.StudentID, m.Name, m.Email, m.Role)
			}
			return w.Flush()
		},
	})
	return cmd
}

func newLoansCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Borrow, return and list loans",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				loans []models.LoanRecord
				err   error
			)
			switch status {
			case "all":
				loans, err = c.lib.ListLoans(cmd.Context())
			case "active":
				loans, err = c.lib.ListActiveLoans(cmd.Context())
			case "overdue":
				loans, err = c.lib.ListOverdueLoans(cmd.Context())
			default:
				return fmt.Errorf("invalid --status %q (want active, overdue or all)", status)
			}
			if err != nil {
				return err
			}
			return c.printLoans(loans)
		},
	}
	list.Flags().StringVar(&status, "status", "active", "active, overdue or all")

	borrow := &cobra.Command{
		Use:   "borrow <book-id> <member-id>",
		Short: "Lend one copy of a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loan, err := c.lib.Borrow(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.printLoans([]models.LoanRecord{loan})
		},
	}

	ret := &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a borrowed copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.lib.ReturnLoan(cmd.Context(), args[0]); err != nil {
				return err
			}
			loan, err := c.lib.GetLoan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printLoans([]models.LoanRecord{loan})
		},
	}

	cmd.AddCommand(list, borrow, ret)
	return cmd
}

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo members and books if there are no members yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				seeded bool
				err    error
			)
			if c.cfg != nil {
				seeded, err = app.Seed(cmd.Context(), c.cfg, c.lib)
			} else {
				seeded, err = seed.New(id.UUID{}).Run(cmd.Context(), c.lib)
			}
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(c.out, "seeded demo data")
			} else {
				fmt.Fprintln(c.out, "members already present, nothing to do")
			}
			return nil
		},
	}
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := c.lib.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.printJSON(stats)
			}

			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Titles\t%d\n", stats.Titles)
			fmt.Fprintf(w, "Total copies\t%d\n", stats.TotalCopies)
			fmt.Fprintf(w, "Available\t%d\n", stats.AvailableCopies)
			fmt.Fprintf(w, "Lent\t%d\n", stats.LentCopies)
			fmt.Fprintf(w, "Members\t%d\n", stats.Members)
			fmt.Fprintf(w, "Active loans\t%d\n", stats.ActiveLoans)
			fmt.Fprintf(w, "Overdue loans\t%d\n", stats.OverdueLoans)
			return w.Flush()
		},
	}
}

func (c *cli) printBooks(books []models.Book) error {
	if c.asJSON {
		return c.printJSON(books)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tISBN\tAVAILABLE")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\n", b.ID, b.Title, b.Author, b.ISBN, b.AvailableCopies, b.TotalCopies)
	}
	return w.Flush()
}

func (c *cli) printLoans(loans []models.LoanRecord) error {
	if c.asJSON {
		return c.printJSON(loans)
	}

	now := c.lib.Now()
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBOOK\tMEMBER\tBORROWED\tDUE\tSTATUS")
	for _, l := range loans {
		status := "active"
		switch {
		case !l.IsActive():
			status = "returned " + l.ReturnedAt.Format(dateLayout)
		case l.IsOverdue(now):
			status = "overdue"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.BookID, l.MemberID, l.BorrowedAt.Format(dateLayout), l.DueAt.Format(dateLayout), status)
	}
	return w.Flush()
}
