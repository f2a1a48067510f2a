package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/workbench/internal/agent"
)

// Messenger defines the interface for chat gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Command is a parsed chat command such as "/deny <plan_id> numbers look off".
type Command struct {
	Name   string
	PlanID string
	Reason string
}

// ParseCommand splits a chat message into a command. Messages that do not
// start with a slash are not commands.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}

	// Telegram appends the bot name in groups: /approve@workbench_bot
	name, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	cmd := Command{Name: strings.ToLower(name)}
	if len(fields) > 1 {
		cmd.PlanID = fields[1]
	}
	if len(fields) > 2 {
		cmd.Reason = strings.Join(fields[2:], " ")
	}
	return cmd, true
}

// Commands answers review commands sent from chat. Users maps a chat
// sender id to the workbench username that owns the plans, Roles maps that
// username to its role.
type Commands struct {
	Manager *agent.Manager
	Users   map[string]string
	Roles   map[string]string
}

func NewCommands(manager *agent.Manager, users map[string]string) *Commands {
	return &Commands{Manager: manager, Users: users}
}

const commandHelp = "Commands: /approve <plan_id> [reason], /deny <plan_id> [reason], /status <plan_id>, /plans"

// Handle runs one chat message and returns the reply text.
func (c *Commands) Handle(ctx context.Context, senderID, text string) string {
	cmd, ok := ParseCommand(text)
	if !ok {
		return commandHelp
	}

	username, ok := c.Users[senderID]
	if !ok {
		return "You are not linked to a workbench user."
	}
	user := agent.User{Username: username, Role: c.Roles[username]}

	switch cmd.Name {
	case "approve", "deny":
		if cmd.PlanID == "" {
			return fmt.Sprintf("Usage: /%s <plan_id> [reason]", cmd.Name)
		}
		approved := cmd.Name == "approve"
		reason := cmd.Reason
		if reason == "" {
			reason = "Approved via chat"
			if !approved {
				reason = "Denied via chat"
			}
		}
		res, err := c.Manager.Review(ctx, cmd.PlanID, user, agent.Decision{Approved: approved, Reason: reason})
		if err != nil {
			return errorReply(cmd.PlanID, err)
		}
		return fmt.Sprintf("Plan %s %s: %s", res.PlanID, res.Status, res.Summary)

	case "status":
		if cmd.PlanID == "" {
			return "Usage: /status <plan_id>"
		}
		st, err := c.Manager.GetPlan(ctx, cmd.PlanID, user)
		if err != nil {
			return errorReply(cmd.PlanID, err)
		}
		return fmt.Sprintf("Plan %s is %s (%d/%d steps)", st.Plan.ID, st.Status, len(st.Results), len(st.Plan.Steps))

	case "plans":
		states, err := c.Manager.ListPlans(ctx, user)
		if err != nil {
			return "Could not list plans."
		}
		if len(states) == 0 {
			return "No plans yet."
		}
		var b strings.Builder
		for _, st := range states {
			fmt.Fprintf(&b, "%s  %s\n", st.Plan.ID, st.Status)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	return commandHelp
}

func errorReply(planID string, err error) string {
	switch {
	case errors.Is(err, agent.ErrPlanNotFound):
		return fmt.Sprintf("Plan %s not found.", planID)
	case errors.Is(err, agent.ErrNotAwaitingReview):
		return fmt.Sprintf("Plan %s is not waiting for a review.", planID)
	case errors.Is(err, agent.ErrReviewerNotAllowed):
		return "You are not allowed to review plans."
	}
	return "Something went wrong, check the server logs."
}

// FormatNotice renders a pending review for chat.
func FormatNotice(n agent.ReviewNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review needed for plan %s (owner %s)\n", n.PlanID, n.Owner)
	if n.Recipient != "" {
		fmt.Fprintf(&b, "Report goes to: %s\n", n.Recipient)
	}
	if n.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", n.Summary)
	}
	fmt.Fprintf(&b, "Reply /approve %s or /deny %s <reason>", n.PlanID, n.PlanID)
	return b.String()
}
