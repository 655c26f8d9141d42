package cmd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/comigor/mailagent/internal/mail"
)

var (
	inboxLoad    bool
	inboxProcess string
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List emails with their analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := newClient()
		out := cmd.OutOrStdout()

		if inboxLoad {
			res, err := client.LoadMockEmails(ctx)
			if err != nil {
				return fmt.Errorf("loading mock inbox: %w", err)
			}
			fmt.Fprintf(out, "Loaded %d emails (%s), processing in background\n", res.Count, res.Status)
		}
		if inboxProcess != "" {
			if err := client.ProcessEmail(ctx, mail.EmailID(inboxProcess)); err != nil {
				return fmt.Errorf("processing %s: %w", inboxProcess, err)
			}
			fmt.Fprintf(out, "Processing started for %s\n", inboxProcess)
		}

		emails, err := client.ListEmails(ctx)
		if err != nil {
			return fmt.Errorf("listing emails: %w", err)
		}
		if len(emails) == 0 {
			fmt.Fprintln(out, "Inbox is empty. Try: mailagent inbox --load")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "RECEIVED", "FROM", "SUBJECT", "CATEGORY", "TODO")
		for _, e := range emails {
			category := e.Category
			switch {
			case e.ProcessingError != "":
				category = "error"
			case !e.Processed:
				category = "pending"
			}
			t.Row(string(e.ID), formatTime(e.Timestamp.Time), e.Sender, truncate(e.Subject, 48), category, fmt.Sprint(len(e.ActionItems)))
		}
		fmt.Fprintln(out, t.String())
		return nil
	},
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List stored draft replies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := newClient()
		out := cmd.OutOrStdout()

		drafts, err := client.ListDrafts(ctx)
		if err != nil {
			return fmt.Errorf("listing drafts: %w", err)
		}
		if len(drafts) == 0 {
			fmt.Fprintln(out, "No drafts yet.")
			return nil
		}

		// resolve each referenced email once
		var mu sync.Mutex
		subjects := map[mail.EmailID]string{}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, d := range drafts {
			if d.EmailID == "" {
				continue
			}
			mu.Lock()
			_, seen := subjects[d.EmailID]
			subjects[d.EmailID] = ""
			mu.Unlock()
			if seen {
				continue
			}
			id := d.EmailID
			g.Go(func() error {
				subject := "(email unavailable)"
				if e, err := client.GetEmail(gctx, id); err == nil {
					subject = e.Subject
				}
				mu.Lock()
				subjects[id] = subject
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "CREATED", "SUBJECT", "IN REPLY TO")
		for _, d := range drafts {
			t.Row(fmt.Sprint(d.ID), formatTime(d.CreatedAt.Time), truncate(d.Subject, 40), truncate(subjects[d.EmailID], 40))
		}
		fmt.Fprintln(out, t.String())
		return nil
	},
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Show or change the analysis prompt templates",
}

var promptsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the prompt templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newClient().GetPrompts(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching prompts: %w", err)
		}
		printPrompts(cmd, p)
		return nil
	},
}

var promptNames = []string{mail.PromptCategorization, mail.PromptActionItem, mail.PromptAutoReply}

var promptsSetCmd = &cobra.Command{
	Use:   "set NAME TEXT",
	Short: "Replace one prompt template",
	Long:  "NAME is one of: " + strings.Join(promptNames, ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, text := args[0], args[1]
		known := false
		for _, n := range promptNames {
			known = known || n == name
		}
		if !known {
			return fmt.Errorf("unknown prompt %q, expected one of: %s", name, strings.Join(promptNames, ", "))
		}

		p, err := newClient().UpdatePrompts(cmd.Context(), map[string]string{name: text})
		if err != nil {
			return fmt.Errorf("updating prompts: %w", err)
		}
		printPrompts(cmd, p)
		return nil
	},
}

func printPrompts(cmd *cobra.Command, p mail.Prompts) {
	label := lipgloss.NewStyle().Bold(true)
	out := cmd.OutOrStdout()
	for _, kv := range [][2]string{
		{mail.PromptCategorization, p.Categorization},
		{mail.PromptActionItem, p.ActionItem},
		{mail.PromptAutoReply, p.AutoReply},
	} {
		fmt.Fprintf(out, "%s\n%s\n\n", label.Render(kv[0]), kv[1])
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	inboxCmd.Flags().BoolVar(&inboxLoad, "load", false, "load the mock inbox before listing")
	inboxCmd.Flags().StringVar(&inboxProcess, "process", "", "re-run analysis for this email id")

	promptsCmd.AddCommand(promptsGetCmd, promptsSetCmd)
	rootCmd.AddCommand(inboxCmd, draftsCmd, promptsCmd)
}
