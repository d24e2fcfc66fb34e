package cli

import (
	"fmt"
	"strconv"

	"github.com/raphaelgruber/wikidesk/internal/ai"
	"github.com/raphaelgruber/wikidesk/internal/view"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage all users' chat sessions (admin)",
}

var (
	sessionsSort  string
	sessionsOrder string
	sessionsPage  int
	sessionsSize  int
	sessionsForce bool
)

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions",
	Example: `  wikidesk sessions list --sort message_count --order desc
  wikidesk sessions list --page 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionsOrder != ai.SortAsc && sessionsOrder != ai.SortDesc {
			return fmt.Errorf("invalid --order %q (use asc or desc)", sessionsOrder)
		}
		skip, limit := view.Offset(sessionsPage-1, sessionsSize)
		sessions, err := aiAPI.ListSessions(cmd.Context(), ai.ListSessionsOptions{
			SortBy: sessionsSort,
			Order:  sessionsOrder,
			Skip:   skip,
			Limit:  limit,
		})
		if err != nil {
			return fail(err, "Could not load chat sessions.")
		}
		return printList(sessions, "No chat sessions.",
			[]string{"ID", "USER", "MESSAGES", "CREATED", "UPDATED"},
			func(s ai.Session) []string {
				return []string{
					s.ID,
					s.UserEmail,
					strconv.Itoa(s.MessageCount),
					formatTime(s.CreatedAt),
					formatTime(s.UpdatedAt),
				}
			})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a chat session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !sessionsForce {
			ok, err := confirm(fmt.Sprintf("Delete chat session %s?", id))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Cancelled.")
				return nil
			}
		}
		if err := aiAPI.DeleteSession(cmd.Context(), id); err != nil {
			return fail(err, "Could not delete chat session.")
		}
		fmt.Println(defaultTheme.successStyle().Render("✓ Deleted chat session " + id))
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsSort, "sort", "updated_at", "sort column (created_at, updated_at, message_count, user_email)")
	sessionsListCmd.Flags().StringVar(&sessionsOrder, "order", ai.SortDesc, "sort direction (asc or desc)")
	sessionsListCmd.Flags().IntVar(&sessionsPage, "page", 1, "page number (1-based)")
	sessionsListCmd.Flags().IntVarP(&sessionsSize, "size", "n", 25, "sessions per request")

	sessionsDeleteCmd.Flags().BoolVarP(&sessionsForce, "force", "f", false, "skip confirmation")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd)
}
