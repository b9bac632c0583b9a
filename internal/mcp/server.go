// Package mcp exposes reminder management as Model Context Protocol tools so
// an assistant can list, create and delete reminders over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tgifai/teleworker/internal/consts"
	"github.com/tgifai/teleworker/internal/pkg/logs"
	"github.com/tgifai/teleworker/internal/reminder"
)

const (
	ToolListReminders  = "list_reminders"
	ToolCreateReminder = "create_reminder"
	ToolDeleteReminder = "delete_reminder"
)

// Validator checks a reminder before it is stored.
type Validator func(r reminder.Reminder) error

type Server struct {
	store    reminder.Repository
	validate Validator
	server   *mcpsdk.Server
}

func NewServer(store reminder.Repository, validate Validator) *Server {
	s := &Server{
		store:    store,
		validate: validate,
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    consts.AppName,
			Version: consts.Version,
		}, nil),
	}

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        ToolListReminders,
		Description: "List every stored reminder, active or not.",
	}, s.listReminders)
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name: ToolCreateReminder,
		Description: "Create a reminder. 'when' is a 5-field cron expression, an ISO instant " +
			"such as 2025-03-01T09:00 or an interval such as P1M@2025-01-31T08:00.",
	}, s.createReminder)
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        ToolDeleteReminder,
		Description: "Delete a reminder by id.",
	}, s.deleteReminder)

	return s
}

// Run serves the tools over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves the tools over an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

type ReminderView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Message   string   `json:"message"`
	ChatIDs   []string `json:"chatIds"`
	When      string   `json:"when"`
	APIURL    string   `json:"apiUrl,omitempty"`
	Ring      bool     `json:"ring"`
	Active    bool     `json:"active"`
	Count     int      `json:"count"`
	CreatedAt string   `json:"createdAt"`
}

func viewOf(r reminder.Reminder) ReminderView {
	chatIDs := []string(r.Recipients)
	if chatIDs == nil {
		chatIDs = []string{}
	}
	return ReminderView{
		ID:        r.ID,
		Name:      r.Name,
		Message:   r.Message,
		ChatIDs:   chatIDs,
		When:      r.Schedule,
		APIURL:    r.ConditionRef,
		Ring:      r.Ring,
		Active:    r.Active,
		Count:     r.TriggerCount,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type ListInput struct{}

type ListOutput struct {
	Reminders []ReminderView `json:"reminders"`
}

func (s *Server) listReminders(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListInput) (*mcpsdk.CallToolResult, ListOutput, error) {
	rs, err := s.store.List(ctx)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("list reminders: %w", err)
	}
	out := ListOutput{Reminders: make([]ReminderView, 0, len(rs))}
	for _, r := range rs {
		out.Reminders = append(out.Reminders, viewOf(r))
	}
	return nil, out, nil
}

type CreateInput struct {
	Name    string   `json:"name" jsonschema:"short label shown in alarms and listings"`
	Message string   `json:"message" jsonschema:"text to send, may contain {{key}} placeholders filled by the condition"`
	When    string   `json:"when" jsonschema:"cron expression, ISO instant or interval schedule"`
	ChatIDs []string `json:"chatIds" jsonschema:"recipients, either a chat id or channelId:chatId"`
	Ring    bool     `json:"ring,omitempty" jsonschema:"also place a voice call when the reminder fires"`
	Active  *bool    `json:"active,omitempty" jsonschema:"defaults to true"`
	APIURL  string   `json:"apiUrl,omitempty" jsonschema:"optional condition path or http(s) URL gating delivery"`
}

type CreateOutput struct {
	Reminder ReminderView `json:"reminder"`
}

func (s *Server) createReminder(ctx context.Context, _ *mcpsdk.CallToolRequest, in CreateInput) (*mcpsdk.CallToolResult, CreateOutput, error) {
	r := reminder.Reminder{
		Name:         strings.TrimSpace(in.Name),
		Message:      in.Message,
		Recipients:   reminder.Recipients(in.ChatIDs).Clean(),
		Schedule:     strings.TrimSpace(in.When),
		ConditionRef: strings.TrimSpace(in.APIURL),
		Ring:         in.Ring,
		Active:       in.Active == nil || *in.Active,
	}
	if s.validate != nil {
		if err := s.validate(r); err != nil {
			return nil, CreateOutput{}, err
		}
	}
	if err := s.store.Create(ctx, &r); err != nil {
		return nil, CreateOutput{}, fmt.Errorf("create reminder: %w", err)
	}

	logs.CtxInfo(ctx, "[mcp] created reminder %s (%s)", r.Name, r.ID)
	return nil, CreateOutput{Reminder: viewOf(r)}, nil
}

type DeleteInput struct {
	ID string `json:"id" jsonschema:"id of the reminder to delete"`
}

type DeleteOutput struct {
	Deleted string `json:"deleted"`
}

func (s *Server) deleteReminder(ctx context.Context, _ *mcpsdk.CallToolRequest, in DeleteInput) (*mcpsdk.CallToolResult, DeleteOutput, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, DeleteOutput{}, errors.New("id is required")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			return nil, DeleteOutput{}, fmt.Errorf("reminder %s not found", id)
		}
		return nil, DeleteOutput{}, fmt.Errorf("delete reminder: %w", err)
	}

	logs.CtxInfo(ctx, "[mcp] deleted reminder %s", id)
	return nil, DeleteOutput{Deleted: id}, nil
}
