package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/app"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *CLI) voucherCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voucher",
		Short: "Record a voucher for later upload",
	}
	cmd.AddCommand(c.supplyCommand(), c.rainfallCommand(), c.ratTrapCommand())
	return cmd
}

func (c *CLI) supplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supply",
		Short: "Record articles withdrawn from a warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			warehouse, _ := f.GetInt64("warehouse")
			field, _ := f.GetInt64("field")
			activity, _ := f.GetInt64("activity")
			machine, _ := f.GetInt64("machine")
			notes, _ := f.GetString("notes")
			raw, _ := f.GetStringArray("line")

			if len(raw) == 0 {
				var err error
				if raw, err = GetLines(c.in, "Lines as ARTICLE_ID=QUANTITY", c.out); err != nil {
					return err
				}
			}
			lines, err := parseSupplyLines(raw)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			v := &models.SupplyVoucher{
				WarehouseID: warehouse,
				FieldID:     field,
				ActivityID:  activity,
				Notes:       notes,
				IssuedAt:    now,
				CreatedAt:   now,
				Lines:       lines,
			}
			if machine != 0 {
				v.MachineID = &machine
			}

			return c.record(cmd, models.KindSupply, func(ctx context.Context, a *app.App) (int64, error) {
				return a.Vouchers().CreateSupply(ctx, v)
			})
		},
	}
	f := cmd.Flags()
	f.Int64("warehouse", 0, "warehouse id")
	f.Int64("field", 0, "field id")
	f.Int64("activity", 0, "activity id")
	f.Int64("machine", 0, "machine id (optional)")
	f.String("notes", "", "free text")
	f.StringArray("line", nil, "ARTICLE_ID=QUANTITY, repeatable")
	addPushFlag(cmd)
	for _, name := range []string{"warehouse", "field", "activity"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func parseSupplyLines(raw []string) ([]models.SupplyVoucherLine, error) {
	if len(raw) == 0 {
		return nil, errors.New("a supply voucher needs at least one line")
	}
	lines := make([]models.SupplyVoucherLine, 0, len(raw))
	for _, s := range raw {
		article, qty, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("line %q: want ARTICLE_ID=QUANTITY", s)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(article), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %q: article id: %w", s, err)
		}
		q, err := decimal.NewFromString(strings.TrimSpace(qty))
		if err != nil {
			return nil, fmt.Errorf("line %q: quantity: %w", s, err)
		}
		lines = append(lines, models.SupplyVoucherLine{ArticleID: id, Quantity: q})
	}
	return lines, nil
}

func (c *CLI) rainfallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rainfall",
		Short: "Record a rain gauge reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			field, _ := cmd.Flags().GetInt64("field")
			mm, _ := cmd.Flags().GetString("mm")

			amount, err := decimal.NewFromString(mm)
			if err != nil {
				return fmt.Errorf("millimeters %q: %w", mm, err)
			}
			at, err := readTime(cmd)
			if err != nil {
				return err
			}

			r := &models.RainfallReading{FieldID: field, Millimeters: amount, ReadAt: at, CreatedAt: time.Now().UTC()}
			return c.record(cmd, models.KindRainfall, func(ctx context.Context, a *app.App) (int64, error) {
				return a.Vouchers().CreateRainfall(ctx, r)
			})
		},
	}
	cmd.Flags().Int64("field", 0, "field id")
	cmd.Flags().String("mm", "", "millimeters of rain")
	cmd.Flags().String("at", "", "reading time, RFC 3339 (default now)")
	addPushFlag(cmd)
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("mm")
	return cmd
}

func (c *CLI) ratTrapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rattrap",
		Short: "Record a rat trap count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			trap, _ := cmd.Flags().GetInt64("trap")
			captured, _ := cmd.Flags().GetInt("captured")
			at, err := readTime(cmd)
			if err != nil {
				return err
			}

			r := &models.RatTrapCount{TrapID: trap, Captured: captured, CountedAt: at, CreatedAt: time.Now().UTC()}
			return c.record(cmd, models.KindRatTrap, func(ctx context.Context, a *app.App) (int64, error) {
				return a.Vouchers().CreateRatTrap(ctx, r)
			})
		},
	}
	cmd.Flags().Int64("trap", 0, "trap id")
	cmd.Flags().Int("captured", 0, "number of rats captured")
	cmd.Flags().String("at", "", "count time, RFC 3339 (default now)")
	addPushFlag(cmd)
	_ = cmd.MarkFlagRequired("trap")
	return cmd
}

func addPushFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("push", false, "submit right away")
}

func readTime(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("at")
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at %q: %w", s, err)
	}
	return t.UTC(), nil
}

// record stores a voucher with create and, when --push is set, submits it.
func (c *CLI) record(cmd *cobra.Command, kind models.VoucherKind, create func(context.Context, *app.App) (int64, error)) error {
	ctx := cmd.Context()
	a, err := c.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := create(ctx, a)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Stored %s voucher #%d\n", kind, id)

	if push, _ := cmd.Flags().GetBool("push"); !push {
		return nil
	}
	res, err := a.SubmitVoucher(ctx, kind, id)
	printSubmission(c.out, res)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("voucher #%d kept for a later push", id)
	}
	return nil
}

func (c *CLI) authorizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Approve or reject a pending request on the server",
	}
	decide := func(approve bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("request id %q: %w", args[0], err)
			}
			note, _ := cmd.Flags().GetString("note")

			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Authorizations().Decide(cmd.Context(), id, approve, note)
			if !res.Success {
				return fmt.Errorf("%s request %d failed (%s): %s", res.Action, id, res.Failure, res.Message)
			}
			fmt.Fprintf(c.out, "Request %d: %s\n", id, res.Action)
			return nil
		}
	}

	approve := &cobra.Command{Use: "approve ID", Short: "Approve a request", Args: cobra.ExactArgs(1), RunE: decide(true)}
	reject := &cobra.Command{Use: "reject ID", Short: "Reject a request", Args: cobra.ExactArgs(1), RunE: decide(false)}
	approve.Flags().String("note", "", "comment sent with the decision")
	reject.Flags().String("note", "", "comment sent with the decision")
	cmd.AddCommand(approve, reject)
	return cmd
}
