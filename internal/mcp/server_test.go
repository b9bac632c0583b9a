package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tgifai/teleworker/internal/condition"
	"github.com/tgifai/teleworker/internal/reminder"
	"github.com/tgifai/teleworker/internal/schedule"
)

func newTestServer(t *testing.T) (*Server, reminder.Repository) {
	t.Helper()
	store := reminder.NewJSONStore(filepath.Join(t.TempDir(), "reminders.json"))

	reg := condition.NewRegistry()
	reg.Register("/condition/always", condition.ProviderFunc(func(ctx context.Context, now time.Time) (condition.Outcome, error) {
		return condition.Outcome{Trigger: true}, nil
	}))
	resolver := condition.NewResolver(reg, nil)
	matcher := schedule.NewMatcher()

	validate := func(r reminder.Reminder) error {
		return reminder.Validate(r, matcher, resolver.Check)
	}
	return NewServer(store, validate), store
}

func TestCreateListDelete(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	_, created, err := s.createReminder(ctx, nil, CreateInput{
		Name:    " standup ",
		Message: "join the call",
		When:    "0 9 * * 1-5",
		ChatIDs: []string{"42", " ", "lark:oc_1"},
		APIURL:  "/condition/always",
	})
	if err != nil {
		t.Fatalf("createReminder() error = %v", err)
	}
	got := created.Reminder
	if got.ID == "" || got.Name != "standup" || !got.Active {
		t.Fatalf("created = %+v", got)
	}
	if len(got.ChatIDs) != 2 || got.ChatIDs[1] != "lark:oc_1" {
		t.Fatalf("chatIds = %v", got.ChatIDs)
	}

	stored, err := store.Get(ctx, got.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.ConditionRef != "/condition/always" {
		t.Fatalf("stored condition = %q", stored.ConditionRef)
	}

	_, list, err := s.listReminders(ctx, nil, ListInput{})
	if err != nil {
		t.Fatalf("listReminders() error = %v", err)
	}
	if len(list.Reminders) != 1 || list.Reminders[0].ID != got.ID {
		t.Fatalf("list = %+v", list.Reminders)
	}

	_, del, err := s.deleteReminder(ctx, nil, DeleteInput{ID: got.ID})
	if err != nil || del.Deleted != got.ID {
		t.Fatalf("deleteReminder() = %+v, %v", del, err)
	}
	if _, _, err := s.deleteReminder(ctx, nil, DeleteInput{ID: got.ID}); err == nil {
		t.Fatal("second delete should fail")
	}
}

func TestCreateReminder_Invalid(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	inactive := false

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"bad schedule", CreateInput{Name: "a", Message: "b", When: "tomorrow", ChatIDs: []string{"1"}}},
		{"blank recipients", CreateInput{Name: "a", Message: "b", When: "* * * * *", ChatIDs: []string{" "}}},
		{"unknown condition", CreateInput{Name: "a", Message: "b", When: "* * * * *", ChatIDs: []string{"1"}, APIURL: "/condition/nope"}},
		{"missing name", CreateInput{Message: "b", When: "* * * * *", ChatIDs: []string{"1"}, Active: &inactive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.createReminder(ctx, nil, tt.in)
			if !errors.Is(err, reminder.ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}

	rs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rs) != 0 {
		t.Fatalf("invalid input stored %d reminders", len(rs))
	}
}

func TestServer_OverTransport(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientT, serverT := mcpsdk.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverT)
	if err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	defer ss.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{ToolCreateReminder, ToolDeleteReminder, ToolListReminders}
	if len(names) != len(want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("tools = %v, want %v", names, want)
		}
	}

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: ToolCreateReminder,
		Arguments: map[string]any{
			"name":    "water",
			"message": "drink",
			"when":    "0 * * * *",
			"chatIds": []string{"7"},
		},
	})
	if err != nil {
		t.Fatalf("CallTool(create) error = %v", err)
	}
	if res.IsError {
		t.Fatalf("create returned a tool error: %+v", res.Content)
	}

	res, err = cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: ToolCreateReminder,
		Arguments: map[string]any{
			"name":    "water",
			"message": "drink",
			"when":    "whenever",
			"chatIds": []string{"7"},
		},
	})
	if err != nil {
		t.Fatalf("CallTool(invalid) error = %v", err)
	}
	if !res.IsError {
		t.Fatal("invalid schedule should come back as a tool error")
	}
}
