package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/barberfinder/internal/model"
	"github.com/sells-group/barberfinder/internal/notify"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notes"},
	Short:   "Inspect and acknowledge notifications",
	Long:    "Commands for listing notifications and marking them read. Requires a sqlite or postgres notify driver to see anything across runs.",
}

// -- notifications list --

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, oldest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initApp(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		unread, _ := cmd.Flags().GetBool("unread")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		ns := env.Center.List()
		if unread {
			ns = env.Center.Unread()
		}
		if limit > 0 && len(ns) > limit {
			ns = ns[len(ns)-limit:]
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ns)
		}
		if len(ns) == 0 {
			fmt.Fprintln(os.Stderr, "No notifications.")
			return nil
		}
		if label := notify.UnreadLabel(env.Center.UnreadCount()); label != "" {
			fmt.Fprintln(os.Stdout, label)
		}
		formatNotifications(os.Stdout, ns, time.Now())
		return nil
	},
}

// -- notifications read --

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark one notification read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		id, err := resolveNotificationID(env.Center.List(), args[0])
		if err != nil {
			return err
		}
		changed, err := env.Center.MarkRead(id)
		if err != nil {
			return eris.Wrap(err, "notifications read")
		}
		if !changed {
			fmt.Fprintf(os.Stderr, "%s was already read.\n", id)
		}
		fmt.Fprintf(os.Stdout, "%d unread\n", env.Center.UnreadCount())
		return nil
	},
}

// -- notifications read-all --

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initApp(cmd.Context(), "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		n := env.Center.MarkAllRead()
		fmt.Fprintf(os.Stdout, "Marked %d notifications read.\n", n)
		return nil
	},
}

func init() {
	notificationsListCmd.Flags().Bool("unread", false, "only unread notifications")
	notificationsListCmd.Flags().Int("limit", 0, "show only the most recent N (0 for all)")
	notificationsListCmd.Flags().Bool("json", false, "print JSON instead of a table")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	rootCmd.AddCommand(notificationsCmd)
}

// formatNotifications writes a tabular list of notifications to out.
func formatNotifications(out io.Writer, ns []model.Notification, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\t\tPRIORITY\tKIND\tSUBJECT\tTITLE\tWHEN")
	_, _ = fmt.Fprintln(w, "--\t\t--------\t----\t-------\t-----\t----")

	for _, n := range ns {
		mark := "*"
		if n.IsRead {
			mark = ""
		}
		title := n.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(n.ID),
			mark,
			n.Priority,
			n.Kind,
			n.SubjectID,
			title,
			notify.Ago(n.CreatedAt, now),
		)
	}
	_ = w.Flush()
}

// resolveNotificationID accepts a full id or the unique prefix shown by
// list.
func resolveNotificationID(ns []model.Notification, arg string) (string, error) {
	var matches []string
	for _, n := range ns {
		if n.ID == arg {
			return arg, nil
		}
		if arg != "" && strings.HasPrefix(n.ID, arg) {
			matches = append(matches, n.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", eris.Wrapf(notify.ErrUnknownNotification, "id %s", arg)
	case 1:
		return matches[0], nil
	default:
		return "", eris.Errorf("notifications: id prefix %q is ambiguous", arg)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
