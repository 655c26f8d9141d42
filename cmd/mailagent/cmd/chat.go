package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/comigor/mailagent/internal/history"
	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
	"github.com/comigor/mailagent/internal/tui"
)

var chatEmailID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the email agent",
	Long: `Opens an interactive chat with the agent. Asking for a draft reply
("draft", "reply", "write back", ...) while bound to an email with --email
asks for confirmation, then opens the generated draft in the editor.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		closeLog := logger.Setup(cfg.Log.File, true)
		defer closeLog()

		var archive history.Archive
		if cfg.History.DBPath != "" {
			a := history.NewSQLiteArchive(cfg.History.DBPath)
			defer a.Close()
			archive = a
		}

		app := tui.NewChatApp(newClient(), cfg.Chat, mail.EmailID(chatEmailID), archive)
		return tui.Run(cmd.Context(), app)
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft ID",
	Short: "Open a stored draft in the editor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid draft id %q", args[0])
		}

		closeLog := logger.Setup(cfg.Log.File, true)
		defer closeLog()

		app := tui.NewEditorApp(newClient(), cfg.Chat, mail.DraftID(id))
		return tui.Run(cmd.Context(), app)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatEmailID, "email", "", "bind the session to this email id")
	rootCmd.AddCommand(chatCmd, draftCmd)
}
