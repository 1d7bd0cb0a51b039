package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"consultassist/pkg/ai"
	"consultassist/pkg/booking"
	"consultassist/pkg/mail"
	"consultassist/pkg/schedule"
	"consultassist/pkg/store"
)

// EndChatSignal is the sentinel reply meaning the user ended the session.
// The transport layer swaps it for a farewell message.
const EndChatSignal = "__END_CHAT__"

// maxToolCalls bounds oracle round-trips within a single user turn.
const maxToolCalls = 5

var terminationPhrases = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, p := range []string{
		"thank you that's all",
		"thanks that's all",
		"no more help needed",
		"no more assistance needed",
		"that's it",
		"goodbye",
		"bye",
	} {
		set[normalizeUtterance(p)] = struct{}{}
	}
	return set
}()

const (
	replyEmptyHistory = "It seems we just started. How can I help?"
	replyOracleDown   = "I'm sorry, I'm having trouble connecting to my brain right now."
	replyNoContent    = "I seem unable to respond now. Please try again."
	replyLoopBudget   = "I seem to be stuck processing that. Could you please rephrase?"
)

// Config holds the collaborators for the conversation orchestrator.
type Config struct {
	Store    store.Store
	Engine   *schedule.Engine
	Booking  *booking.Service
	Oracle   ai.Oracle
	Notifier mail.Notifier
	Now      func() time.Time
}

// App runs the tool-calling conversation loop: it forwards the session
// history to the oracle, executes requested tools, and returns the oracle's
// final text. Write tools trigger best-effort email notifications.
type App struct {
	store    store.Store
	engine   *schedule.Engine
	booking  *booking.Service
	oracle   ai.Oracle
	notifier mail.Notifier
	now      func() time.Time

	// stateMu serializes session-state read-modify-write cycles so
	// overlapping turns on one session cannot drop each other's fields.
	stateMu sync.Mutex
}

func New(cfg Config) (*App, error) {
	if cfg.Store == nil || cfg.Engine == nil || cfg.Booking == nil || cfg.Oracle == nil {
		return nil, fmt.Errorf("store, engine, booking, and oracle are required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = mail.NopNotifier{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:    cfg.Store,
		engine:   cfg.Engine,
		booking:  cfg.Booking,
		oracle:   cfg.Oracle,
		notifier: notifier,
		now:      now,
	}, nil
}

// Respond produces the assistant reply for the session's current history.
// The last entry must be the newest user message. Failures never escape as
// errors; they collapse to polite fallback text.
func (a *App) Respond(ctx context.Context, sessionID string, history []ai.Message) string {
	if len(history) == 0 {
		return replyEmptyHistory
	}
	if isTermination(history[len(history)-1].Content) {
		slog.Info("detected termination phrase", "sessionID", sessionID)
		return EndChatSignal
	}
	if err := a.store.EnsureSession(sessionID); err != nil {
		slog.Error("ensure session failed", "sessionID", sessionID, "err", err)
	}

	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, ai.Message{Role: "system", Content: systemPrompt(a.now())})
	messages = append(messages, history...)

	for loop := 1; loop <= maxToolCalls; loop++ {
		completion, err := a.oracle.Complete(ctx, messages, toolSchemas())
		if err != nil {
			slog.Error("oracle call failed", "sessionID", sessionID, "loop", loop, "err", err)
			return replyOracleDown
		}
		messages = append(messages, ai.Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		if len(completion.ToolCalls) == 0 {
			if completion.Content == "" {
				return replyNoContent
			}
			return completion.Content
		}

		for _, call := range completion.ToolCalls {
			outcome := a.executeTool(call)
			a.rememberArgs(sessionID, call, outcome)
			text := a.notifyIfNeeded(ctx, outcome)
			messages = append(messages, ai.Message{
				Role:       "tool",
				Name:       call.Function.Name,
				Content:    text,
				ToolCallID: call.ID,
			})
		}
	}
	return replyLoopBudget
}

// normalizeUtterance lowercases, drops punctuation, and collapses whitespace
// so any case/punctuation variant of a phrase compares equal.
func normalizeUtterance(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

func isTermination(message string) bool {
	_, ok := terminationPhrases[normalizeUtterance(message)]
	return ok
}

// notifyIfNeeded runs the email side-channel after a successful write tool.
// Delivery problems only annotate the tool result; they never fail the turn.
func (a *App) notifyIfNeeded(ctx context.Context, outcome toolOutcome) string {
	text := outcome.text
	if outcome.action == "" || outcome.appointmentID == 0 {
		return text
	}

	recipient := outcome.argEmail
	if recipient == "" {
		if det, err := a.booking.Details(outcome.appointmentID, true); err == nil {
			recipient = det.UserEmail
		}
	}
	if recipient == "" {
		slog.Warn("no recipient for confirmation email", "appointmentID", outcome.appointmentID)
		return text
	}

	if err := a.notifier.Send(ctx, outcome.appointmentID, outcome.action); err != nil {
		slog.Error("confirmation email failed", "appointmentID", outcome.appointmentID, "action", outcome.action, "err", err)
		return text + " (Note: Email sending failed.)"
	}
	if err := a.booking.MarkConfirmationSent(outcome.appointmentID); err != nil {
		slog.Error("mark confirmation sent failed", "appointmentID", outcome.appointmentID, "err", err)
	}
	return text + fmt.Sprintf(" Confirmation email sent to %s.", recipient)
}

// sessionArgs are the scratch-state fields harvested from any tool call.
type sessionArgs struct {
	UserName             string `json:"user_name"`
	UserEmail            string `json:"user_email"`
	ServiceID            int64  `json:"service_id"`
	NewServiceID         int64  `json:"new_service_id"`
	ApptDatetime         string `json:"appt_datetime"`
	NewApptDatetime      string `json:"new_appt_datetime"`
	RequestedDatetimeStr string `json:"requested_datetime_str"`
}

// rememberArgs persists identity and request details revealed by tool
// arguments into the session's working memory. Best-effort only.
func (a *App) rememberArgs(sessionID string, call ai.ToolCall, outcome toolOutcome) {
	var args sessionArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return
	}

	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	state, _, err := a.store.GetSessionState(sessionID)
	if err != nil {
		slog.Error("load session state failed", "sessionID", sessionID, "err", err)
		return
	}
	if args.UserName != "" {
		state.UserName = args.UserName
	}
	if args.UserEmail != "" {
		state.UserEmail = args.UserEmail
	}
	if args.ServiceID != 0 {
		state.RequestedServiceID = args.ServiceID
	}
	if args.NewServiceID != 0 {
		state.RequestedServiceID = args.NewServiceID
	}
	for _, t := range []string{args.ApptDatetime, args.NewApptDatetime, args.RequestedDatetimeStr} {
		if t != "" {
			state.RequestedTime = t
			break
		}
	}
	if outcome.consultantID != 0 {
		state.RequestedConsultantID = outcome.consultantID
	}

	if err := a.store.UpdateSessionState(sessionID, state); err != nil {
		slog.Error("update session state failed", "sessionID", sessionID, "err", err)
	}
}
