package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	obligationapp "github.com/erp/obligations/internal/application/obligation"
)

func parseID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return id, nil
}

func (c *cli) generateCmd() *cobra.Command {
	var (
		req            obligationapp.GenerateScheduleRequest
		counterpartyID string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Expand a negotiated term into provisioned obligations",
		Example: `  obligations generate --direction PAYABLE --counterparty 6f1c... \
    --total 1000.00 --start-date 2024-01-15 --term INSTALLMENT_PLAN --count 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseID("counterparty", counterpartyID)
			if err != nil {
				return err
			}
			req.CounterpartyID = id

			return c.withApp(cmd.Context(), func(app *application) error {
				resp, err := app.service.GenerateSchedule(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Direction, "direction", "", "PAYABLE or RECEIVABLE")
	f.StringVar(&counterpartyID, "counterparty", "", "Counterparty ID")
	f.StringVar(&req.Total, "total", "", "Total amount, or the amount per period for recurring terms")
	f.StringVar(&req.StartDate, "start-date", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&req.Term.Type, "term", "", "SINGLE, INSTALLMENT_PLAN or RECURRING")
	f.StringVar(&req.Term.DueDate, "due-date", "", "Due date of a SINGLE term")
	f.IntVar(&req.Term.Count, "count", 0, "Number of installments")
	f.StringVar(&req.Term.PeriodUnit, "period-unit", "", "MONTHLY, QUARTERLY, SEMIANNUAL or ANNUAL")
	f.IntVar(&req.Term.PeriodCount, "period-count", 0, "Number of recurring periods")
	f.StringVar(&req.Term.FirstDueDate, "first-due-date", "", "First due date, defaults to the start date")
	f.StringVar(&req.CategoryRef, "category", "", "Category reference")
	f.StringVar(&req.Description, "description", "", "Description copied onto every obligation")
	for _, name := range []string{"direction", "counterparty", "total", "start-date", "term"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	var (
		req      obligationapp.ReconcileRequest
		decision obligationapp.ResidualDecisionRequest
		targetID string
		preview  bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile <obligation-id>",
		Short: "Settle an obligation and absorb any difference",
		Long: `Settle an obligation with the given amount. A shortfall or surplus needs
--strategy: DISCARD, SPAWN_OBLIGATION (with --spawn-due-date), DISTRIBUTE or
ABATE_SPECIFIC (with --target). Use --preview to see the result without
storing it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("obligation id", args[0])
			if err != nil {
				return err
			}
			req.ObligationID = id

			if decision.Strategy != "" {
				if targetID != "" {
					target, err := parseID("target", targetID)
					if err != nil {
						return err
					}
					decision.TargetID = &target
				}
				req.Decision = &decision
			}

			return c.withApp(cmd.Context(), func(app *application) error {
				run := app.service.Reconcile
				if preview {
					run = app.service.PreviewReconcile
				}
				resp, err := run(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Amount, "amount", "", "Settled amount")
	f.StringVar(&req.Date, "date", "", "Settlement date (YYYY-MM-DD)")
	f.StringVar(&req.AccountRef, "account", "", "Settlement account reference")
	f.StringVar(&decision.Strategy, "strategy", "", "Residual strategy")
	f.StringVar(&decision.DueDate, "spawn-due-date", "", "Due date of the spawned obligation")
	f.StringVar(&decision.Description, "spawn-description", "", "Description of the spawned obligation")
	f.StringVar(&targetID, "target", "", "Obligation absorbing the surplus")
	f.BoolVar(&preview, "preview", false, "Compute the result without storing it")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (c *cli) markAwaitingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-awaiting <obligation-id>",
		Short: "Record that a provisioned obligation was billed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("obligation id", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(app *application) error {
				resp, err := app.service.MarkAwaitingSettlement(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
}

func (c *cli) cancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <obligation-id>",
		Short: "Cancel one obligation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("obligation id", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(app *application) error {
				resp, err := app.service.Cancel(cmd.Context(), obligationapp.CancelRequest{ID: id, Reason: reason})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Cancellation reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (c *cli) cancelGroupCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel-group <group-id>",
		Short: "Cancel every open obligation of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("group id", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(app *application) error {
				resp, err := app.service.CancelGroup(cmd.Context(), obligationapp.CancelRequest{ID: id, Reason: reason})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Cancellation reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var (
		req            obligationapp.ListRequest
		counterpartyID string
		groupID        string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List obligations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if counterpartyID != "" {
				id, err := parseID("counterparty", counterpartyID)
				if err != nil {
					return err
				}
				req.CounterpartyID = &id
			}
			if groupID != "" {
				id, err := parseID("group", groupID)
				if err != nil {
					return err
				}
				req.GroupID = &id
			}
			return c.withApp(cmd.Context(), func(app *application) error {
				resp, err := app.service.ListObligations(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Direction, "direction", "", "PAYABLE or RECEIVABLE")
	f.StringVar(&counterpartyID, "counterparty", "", "Counterparty ID")
	f.StringVar(&groupID, "group", "", "Group ID")
	f.StringSliceVar(&req.Statuses, "status", nil, "Statuses to include (repeatable)")
	f.StringVar(&req.DueFrom, "due-from", "", "Earliest due date (YYYY-MM-DD)")
	f.StringVar(&req.DueTo, "due-to", "", "Latest due date (YYYY-MM-DD)")
	f.IntVar(&req.Page, "page", 1, "Page number")
	f.IntVar(&req.PageSize, "page-size", 20, "Page size")
	f.StringVar(&req.OrderBy, "order-by", "due_date", "Sort column")
	f.StringVar(&req.OrderDir, "order-dir", "asc", "asc or desc")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <obligation-id>",
		Short: "Show one obligation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("obligation id", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(app *application) error {
				resp, err := app.service.GetObligation(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
}
