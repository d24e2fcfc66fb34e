package cli

import (
	"fmt"

	"github.com/raphaelgruber/wikidesk/internal/view"
	"github.com/raphaelgruber/wikidesk/internal/wiki"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Audit logs (admin)",
}

var (
	logsPage int
	logsSize int
)

var logsActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show audited actions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, limit := view.Offset(logsPage-1, logsSize)
		entries, err := wikiAPI.ListActivityLogs(cmd.Context(), wiki.Paging{Skip: skip, Limit: limit})
		if err != nil {
			return fail(err, "Could not load activity logs.")
		}
		err = printList(entries, "No activity recorded.",
			[]string{"TIME", "USER", "ACTION", "ENTITY", "DETAILS"},
			func(l wiki.ActivityLog) []string {
				entity := l.EntityType
				if l.EntityID != nil {
					entity = fmt.Sprintf("%s #%d", l.EntityType, *l.EntityID)
				}
				return []string{
					formatTime(l.Timestamp),
					wiki.DisplayName(l.User, "(deleted user)"),
					l.Action,
					entity,
					truncate(l.Details, 50),
				}
			})
		if err != nil {
			return err
		}
		pageHint(len(entries), limit)
		return nil
	},
}

var logsLoginsCmd = &cobra.Command{
	Use:   "logins",
	Short: "Show login attempts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, limit := view.Offset(logsPage-1, logsSize)
		records, err := wikiAPI.ListLoginHistory(cmd.Context(), wiki.Paging{Skip: skip, Limit: limit})
		if err != nil {
			return fail(err, "Could not load login history.")
		}
		err = printList(records, "No logins recorded.",
			[]string{"TIME", "EMAIL", "RESULT", "IP"},
			func(r wiki.LoginRecord) []string {
				result := defaultTheme.successStyle().Render("ok")
				if !r.Success {
					result = defaultTheme.errorStyle().Render("failed")
				}
				return []string{formatTime(r.Timestamp), r.Email, result, r.IPAddress}
			})
		if err != nil {
			return err
		}
		pageHint(len(records), limit)
		return nil
	},
}

// pageHint points at the next page when the server returned a full one.
func pageHint(n, limit int) {
	if jsonOut || limit <= 0 || n < limit {
		return
	}
	fmt.Println(defaultTheme.hintStyle().Render(
		fmt.Sprintf("Page %d. Use --page %d for more.", logsPage, logsPage+1)))
}

func init() {
	logsCmd.PersistentFlags().IntVar(&logsPage, "page", 1, "page number (1-based)")
	logsCmd.PersistentFlags().IntVarP(&logsSize, "size", "n", 50, "entries per request")

	logsCmd.AddCommand(logsActivityCmd, logsLoginsCmd)
}
