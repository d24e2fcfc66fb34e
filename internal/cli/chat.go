package cli

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/wikidesk/internal/ai"
	"github.com/raphaelgruber/wikidesk/internal/chat"
	"github.com/spf13/cobra"
)

var chatRAG bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the AI assistant",
	Long: `Open an interactive chat with the AI assistant. The last session is
restored; use Ctrl+N (or 'wikidesk chat new') to start over.

With --rag the assistant grounds its answers in indexed wiki documents.`,
	Example: `  wikidesk chat
  wikidesk chat --rag
  wikidesk chat send "Who is free to start next month?"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !creds.LoggedIn() {
			return fmt.Errorf("not logged in; run 'wikidesk login'")
		}
		return RunChat(cmd.Context(), aiAPI, chatRAG)
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr := newChatManager(aiAPI)
		if err := mgr.Init(ctx); err != nil {
			return fail(err, "Could not start a chat session.")
		}
		defer mgr.Close()

		ex, err := mgr.Submit(ctx, strings.Join(args, " "), chatRAG)
		if err != nil {
			return fail(err, "The assistant did not answer. Your message was not sent.")
		}

		if jsonOut {
			return printJSON(map[string]string{
				"session_id": mgr.SessionID(),
				"reply":      ex.Reply.Content,
			})
		}
		fmt.Println(renderMarkdown(ex.Reply.Content, 100))
		return nil
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the current session's messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newChatManager(aiAPI)
		if err := mgr.Init(cmd.Context()); err != nil {
			return fail(err, "Could not load the chat session.")
		}
		defer mgr.Close()

		msgs := mgr.Messages()
		if jsonOut {
			return printJSON(msgs)
		}
		fmt.Println(defaultTheme.hintStyle().Render("Session " + mgr.SessionID()))
		if len(msgs) == 0 {
			fmt.Println("No messages yet.")
			return nil
		}
		for _, m := range msgs {
			fmt.Println()
			if m.Role == ai.RoleAssistant {
				fmt.Println(defaultTheme.successStyle().Render("Assistant") + "  " + defaultTheme.hintStyle().Render(formatTime(m.Timestamp)))
				fmt.Println(renderMarkdown(m.Content, 100))
				continue
			}
			fmt.Println(defaultTheme.accentStyle().Render("You") + "  " + defaultTheme.hintStyle().Render(formatTime(m.Timestamp)))
			fmt.Println(m.Content)
		}
		return nil
	},
}

var chatNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Discard the current session and start a new one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newChatManager(aiAPI)
		if err := mgr.NewSession(cmd.Context()); err != nil {
			return fail(err, "Could not start a chat session.")
		}
		defer mgr.Close()

		fmt.Println(defaultTheme.successStyle().Render("✓ New chat session " + mgr.SessionID()))
		return nil
	},
}

// newChatManager returns a manager for one-shot commands. Failures are
// returned to the caller, which prints them once.
func newChatManager(backend chat.Backend) *chat.Manager {
	return chat.NewManager(backend, chat.Options{
		Store:  store,
		Logger: logger,
		Notify: func(err error) {
			logger.Debug("chat failure", "error", err)
		},
	})
}

func init() {
	chatCmd.PersistentFlags().BoolVar(&chatRAG, "rag", false, "ground answers in indexed wiki documents")

	chatCmd.AddCommand(chatSendCmd, chatHistoryCmd, chatNewCmd)
}
