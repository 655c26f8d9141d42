package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/comigor/mailagent/internal/mail"
)

const (
	contextEmails  = 20
	detailedEmails = 5
	dateLayout     = "2006-01-02 15:04"
)

const generalInstruction = `You are a helpful Email Productivity Agent.
When answering questions about emails, format the email details clearly and professionally.
Do not refer to emails as "Email 1" or "Email 2" in your final answer. Use the email's subject or sender instead.
When listing or discussing specific emails, use a structured format with double newlines between fields:

**Subject:** [Subject]

**From:** [Sender]

**Date:** [Date]

**Summary:** [Summary]

**Action Items:** [List action items if any]

If the user asks to perform an action (like "Draft a reply" or "Summarize this") without naming an email,
check the Conversation History and assume they mean the email just discussed.
Only ask for clarification if the context is truly ambiguous.
When asked about deadlines or meetings across the inbox, list the dates with the sender and a short context.

Keep your answers concise and helpful.`

const focusInstruction = `You are a helpful Email Productivity Agent. Your responses should be CONCISE and TO THE POINT.

Formatting rules:
1. When asked for action items only, respond with just the action items in a bulleted list (•).
2. When asked for a summary only, respond with a single paragraph of 2-3 sentences, no bullet points or headers.
3. When asked for specific information, provide only that information.
4. Use the conversation history to understand context.

Do not repeat the entire email unless asked.`

// InboxContext renders the inbox overview the chat prompt is grounded in:
// the most recent emails, the first few in full, plus the email currently
// in view when there is one.
func InboxContext(emails []mail.Email, current *mail.Email) string {
	sorted := append([]mail.Email(nil), emails...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp.Time)
	})
	if len(sorted) > contextEmails {
		sorted = sorted[:contextEmails]
	}

	var b strings.Builder
	b.WriteString("📬 **INBOX OVERVIEW** (Most Recent First)\n")
	for i, e := range sorted {
		if i < detailedEmails {
			writeDetailed(&b, i+1, e)
		} else {
			writeBrief(&b, i+1, e)
		}
	}

	if current != nil {
		items := "None"
		if len(current.ActionItems) > 0 {
			items = bullets(current.ActionItems)
		}
		b.WriteString("\n\nUser is currently viewing this specific email:\n")
		fmt.Fprintf(&b, "Subject: %s\nSender: %s\nDate: %s\nBody: %s\nCategory: %s\nSummary: %s\nAction Items: %s\n",
			current.Subject, current.Sender, formatDate(current.Timestamp), current.Body,
			current.Category, current.Summary, items)
	}
	return b.String()
}

func writeDetailed(b *strings.Builder, n int, e mail.Email) {
	category := e.Category
	if category == "" {
		category = "Uncategorized"
	}
	fmt.Fprintf(b, "\n📧 **Email #%d**\n**From:** %s\n**Subject:** %s\n**Date:** %s\n**Category:** %s\n",
		n, e.Sender, e.Subject, formatDate(e.Timestamp), category)
	if e.Summary != "" {
		fmt.Fprintf(b, "**Summary:** %s\n", e.Summary)
	}
	if len(e.ActionItems) > 0 {
		fmt.Fprintf(b, "**Action Items:**%s\n", bullets(e.ActionItems))
	}
	fmt.Fprintf(b, "\n**Full Body:**\n%s\n%s\n", e.Body, strings.Repeat("─", 50))
}

func writeBrief(b *strings.Builder, n int, e mail.Email) {
	fmt.Fprintf(b, "\n📨 **Email #%d:** %s\n   From: %s | Date: %s", n, e.Subject, e.Sender, formatDate(e.Timestamp))
	if e.Category != "" {
		fmt.Fprintf(b, " | Category: %s", e.Category)
	}
	if e.Summary != "" {
		fmt.Fprintf(b, "\n   Summary: %s", e.Summary)
	}
	b.WriteString("\n")
}

func bullets(items []mail.ActionItem) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("\n  • ")
		b.WriteString(it.Task)
	}
	return b.String()
}

func formatDate(t mail.Timestamp) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(dateLayout)
}
