package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/directory"
	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/vip"
)

var vipCmd = &cobra.Command{
	Use:   "vip",
	Short: "Inspect and manage VIP subscriptions",
}

// -- vip check --

var vipCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate VIP lifecycles once and record alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		before := env.Center.Len()
		checker := vip.NewChecker(env.Directory, env.NewTracker(), env.Center, 0)
		added, err := checker.Check(ctx)
		if err != nil {
			return eris.Wrap(err, "vip check")
		}

		if added == 0 {
			fmt.Fprintln(os.Stderr, "No new VIP alerts.")
			return nil
		}
		formatNotifications(os.Stdout, env.Center.List()[before:], time.Now())
		return nil
	},
}

// -- vip status --

var vipStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the lifecycle state of every provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		providers, err := env.Directory.List(ctx)
		if err != nil {
			return eris.Wrap(err, "vip status")
		}
		formatVIPStatus(os.Stdout, providers, env.Policy, time.Now())
		return nil
	},
}

// -- vip plans --

var vipPlansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List VIP plans",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		plans := sortedPlans()
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(plans)
		}
		formatPlans(os.Stdout, plans)
		return nil
	},
}

// -- vip activate --

var vipActivateCmd = &cobra.Command{
	Use:   "activate <provider-id>",
	Short: "Activate or renew a provider's VIP plan",
	Long:  "Sets the VIP flag and expiry on a provider in the sqlite or postgres directory and records a vip_activated notification. A still-running plan is extended from its current expiry.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		planID, _ := cmd.Flags().GetString("plan")
		plan := model.VIPPlan(planID)
		if _, ok := vip.Plans[plan]; !ok {
			return eris.Errorf("vip activate: unknown plan %q", planID)
		}

		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Providers == nil {
			return eris.Errorf("vip activate: directory driver %s is read-only", cfg.Directory.Driver)
		}

		p, err := env.Providers.GetProvider(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "vip activate %s", args[0])
		}

		now := time.Now().UTC()
		updated, n := activate(*p, plan, now)
		if _, err := env.Providers.UpsertProviders(ctx, []model.Provider{updated}); err != nil {
			return eris.Wrap(err, "vip activate: save provider")
		}
		if c, ok := env.Directory.(*directory.Cached); ok {
			if err := c.Invalidate(ctx); err != nil {
				zap.L().Warn("directory cache invalidate failed", zap.Error(err))
			}
		}
		env.Center.Add(n)

		fmt.Fprintf(os.Stdout, "%s is VIP (%s) until %s\n",
			updated.Name, plan, updated.VIPExpiresAt.Format("2006-01-02"))
		return nil
	},
}

func init() {
	vipPlansCmd.Flags().Bool("json", false, "print JSON instead of a table")
	vipActivateCmd.Flags().String("plan", string(model.VIPPlanBasic), "plan id (basic, premium)")

	vipCmd.AddCommand(vipCheckCmd)
	vipCmd.AddCommand(vipStatusCmd)
	vipCmd.AddCommand(vipPlansCmd)
	vipCmd.AddCommand(vipActivateCmd)
	rootCmd.AddCommand(vipCmd)
}

// activate returns p with plan applied at now and the matching notification.
// An unexpired plan is extended from its current expiry.
func activate(p model.Provider, plan model.VIPPlan, now time.Time) (model.Provider, model.Notification) {
	from := now
	if p.VIP && p.VIPExpiresAt != nil && p.VIPExpiresAt.After(now) {
		from = *p.VIPExpiresAt
	}
	expires := vip.ExpiresAt(plan, from)

	p.VIP = true
	p.VIPPlan = plan
	p.VIPExpiresAt = &expires

	n := vip.Activated(p, plan, now)
	n.Metadata["expires_at"] = expires.UTC().Format(time.RFC3339)
	return p, n
}

func sortedPlans() []vip.Plan {
	plans := make([]vip.Plan, 0, len(vip.Plans))
	for _, p := range vip.Plans {
		plans = append(plans, p)
	}
	slices.SortFunc(plans, func(a, b vip.Plan) int {
		switch {
		case a.PriceBRL < b.PriceBRL:
			return -1
		case a.PriceBRL > b.PriceBRL:
			return 1
		default:
			return 0
		}
	})
	return plans
}

func formatPlans(out io.Writer, plans []vip.Plan) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tPRICE\tDAYS\tFEATURES")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t----\t--------")
	for _, p := range plans {
		_, _ = fmt.Fprintf(w, "%s\t%s\tR$ %.2f\t%d\t%d features\n",
			p.ID, p.Name, p.PriceBRL, p.DurationDays, len(p.Features))
	}
	_ = w.Flush()
}

// formatVIPStatus writes one row per provider with its lifecycle state.
func formatVIPStatus(out io.Writer, providers []model.Provider, policy vip.Policy, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATE\tPLAN\tEXPIRES\tDAYS_LEFT")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t----\t-------\t---------")
	for _, p := range providers {
		st := policy.Evaluate(p, now)
		expires, days := "-", "-"
		if p.VIPExpiresAt != nil {
			expires = p.VIPExpiresAt.Format("2006-01-02")
			days = fmt.Sprintf("%d", st.DaysLeft)
		}
		plan := string(p.VIPPlan)
		if plan == "" {
			plan = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, st.State, plan, expires, days)
	}
	_ = w.Flush()
}
