package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/psds-microservice/ticket-desk/internal/application"
	"github.com/psds-microservice/ticket-desk/internal/auth"
	"github.com/psds-microservice/ticket-desk/internal/model"
	"github.com/psds-microservice/ticket-desk/internal/service"
	"github.com/spf13/cobra"
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Work with the ticket store from the command line",
}

var (
	listQuery string
	listSort  string
	listAsc   bool

	createCustomer    string
	createCategory    string
	createPriority    string
	createDescription string

	resolveSolution string
	resolveCost     float64

	deleteSecret string
)

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print tickets (newest first)",
	RunE:  runTicketsList,
}

var ticketsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new open ticket",
	RunE:  runTicketsCreate,
}

var ticketsResolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Resolve an open ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketsResolve,
}

var ticketsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a ticket (admin secret required)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketsDelete,
}

func init() {
	ticketsListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "search text (customer, description, solution)")
	ticketsListCmd.Flags().StringVar(&listSort, "sort", service.SortID, "sort key")
	ticketsListCmd.Flags().BoolVar(&listAsc, "asc", false, "ascending order")

	ticketsCreateCmd.Flags().StringVar(&createCustomer, "customer", "", "customer name")
	ticketsCreateCmd.Flags().StringVar(&createCategory, "category", string(model.CategoryMaintenance), "category")
	ticketsCreateCmd.Flags().StringVar(&createPriority, "priority", string(model.PriorityMedium), "Low, Medium, High or Urgent")
	ticketsCreateCmd.Flags().StringVar(&createDescription, "description", "", "problem description")
	_ = ticketsCreateCmd.MarkFlagRequired("customer")
	_ = ticketsCreateCmd.MarkFlagRequired("description")

	ticketsResolveCmd.Flags().StringVar(&resolveSolution, "solution", "", "solution text")
	ticketsResolveCmd.Flags().Float64Var(&resolveCost, "cost", 0, "cost in USD")
	_ = ticketsResolveCmd.MarkFlagRequired("solution")

	ticketsDeleteCmd.Flags().StringVar(&deleteSecret, "secret", "", "admin secret (defaults to $ADMIN_SECRET)")

	ticketsCmd.AddCommand(ticketsListCmd, ticketsCreateCmd, ticketsResolveCmd, ticketsDeleteCmd)
}

func runTicketsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := application.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	seq, err := store.Service.Search(cmd.Context(), listQuery)
	if err != nil {
		return err
	}
	tickets := slices.Collect(seq)
	service.SortTickets(tickets, listSort, !listAsc)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tCUSTOMER\tCATEGORY\tPRIORITY\tSTATUS\tCOST\tDESCRIPTION")
	for _, t := range tickets {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			t.ID, t.CreatedAt, t.Customer, t.Category, t.Priority, t.Status, t.Cost, t.Description)
	}
	return w.Flush()
}

func runTicketsCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := application.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := store.Service.Create(cmd.Context(), service.CreateInput{
		Customer:    createCustomer,
		Category:    model.Category(createCategory),
		Priority:    model.Priority(createPriority),
		Description: createDescription,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", t.Label())
	return nil
}

func runTicketsResolve(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := application.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := store.Service.Resolve(cmd.Context(), id, resolveSolution, resolveCost)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", t.Label())
	return nil
}

func runTicketsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := application.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	secret := deleteSecret
	if secret == "" {
		secret = os.Getenv("ADMIN_SECRET")
	}
	ctx := auth.WithClientKey(cmd.Context(), "cli")
	if err := store.Service.Delete(ctx, id, secret); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted ticket %d\n", id)
	return nil
}
