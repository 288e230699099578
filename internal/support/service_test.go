package support

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *Repo) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Ticket{}, &Message{}, &Reaction{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	repo := NewRepo(db)
	return NewService(repo), repo
}

func TestThread_RequiresEmail(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Thread(context.Background(), "  ", nil); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("err = %v, want ErrEmailRequired", err)
	}
}

func TestThread_CreatesTicketOnFirstVisit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	th, err := svc.Thread(ctx, "ann@example.com", nil)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if th.Ticket.ID == 0 || th.Ticket.Status != "open" {
		t.Fatalf("ticket = %+v", th.Ticket)
	}
	if len(th.Messages) != 0 {
		t.Fatalf("messages = %d, want 0", len(th.Messages))
	}

	again, err := svc.Thread(ctx, "ann@example.com", nil)
	if err != nil {
		t.Fatalf("thread again: %v", err)
	}
	if again.Ticket.ID != th.Ticket.ID {
		t.Fatalf("second visit created ticket %d, want %d", again.Ticket.ID, th.Ticket.ID)
	}
}

func TestThread_UnknownTicket(t *testing.T) {
	svc, _ := newTestService(t)

	id := uint64(999)
	if _, err := svc.Thread(context.Background(), "ann@example.com", &id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSend_AppendsAndBumpsActivity(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	sent := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return sent }

	msg, err := svc.Send(ctx, "ann@example.com", false, nil, "  my login broke  ", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.SenderType != "client" || msg.MessageText != "my login broke" {
		t.Fatalf("message = %+v", msg)
	}

	ticket, err := repo.GetTicket(ctx, msg.TicketID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if ticket.LastMessageAt == nil || !ticket.LastMessageAt.Equal(sent) {
		t.Fatalf("last_message_at = %v, want %v", ticket.LastMessageAt, sent)
	}

	th, err := svc.Thread(ctx, "ann@example.com", nil)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(th.Messages) != 1 || th.Messages[0].ID != msg.ID {
		t.Fatalf("thread messages = %+v", th.Messages)
	}
}

func TestSend_AdminRepliesIntoExistingTicket(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Send(ctx, "ann@example.com", false, nil, "help", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	reply, err := svc.Send(ctx, "support@example.com", true, &first.TicketID, "on it", "")
	if err != nil {
		t.Fatalf("admin send: %v", err)
	}
	if reply.SenderType != "admin" || reply.TicketID != first.TicketID {
		t.Fatalf("reply = %+v", reply)
	}

	th, err := svc.Thread(ctx, "ann@example.com", &first.TicketID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(th.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(th.Messages))
	}
	if th.Messages[0].ID != first.ID || th.Messages[1].ID != reply.ID {
		t.Fatalf("messages out of order: %+v", th.Messages)
	}
}

func TestSend_RejectsEmptyMessage(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Send(context.Background(), "ann@example.com", false, nil, "   ", ""); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestToggleReaction_OnThenOff(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, "ann@example.com", false, nil, "help", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	on, err := svc.ToggleReaction(ctx, "ann@example.com", msg.ID, "👍")
	if err != nil || !on {
		t.Fatalf("toggle on = %v, %v", on, err)
	}

	th, err := svc.Thread(ctx, "ann@example.com", &msg.TicketID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if got := th.Messages[0].Reactions; len(got) != 1 || got[0].Reaction != "👍" || got[0].UserEmail != "ann@example.com" {
		t.Fatalf("reactions = %+v", got)
	}

	off, err := svc.ToggleReaction(ctx, "ann@example.com", msg.ID, "👍")
	if err != nil || off {
		t.Fatalf("toggle off = %v, %v", off, err)
	}

	th, err = svc.Thread(ctx, "ann@example.com", &msg.TicketID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(th.Messages[0].Reactions) != 0 {
		t.Fatalf("reactions survived toggle off: %+v", th.Messages[0].Reactions)
	}
}

func TestSetStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, "ann@example.com", false, nil, "help", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.SetStatus(ctx, msg.TicketID, "closed"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	th, err := svc.Thread(ctx, "ann@example.com", &msg.TicketID)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if th.Ticket.Status != "closed" {
		t.Fatalf("status = %q, want closed", th.Ticket.Status)
	}

	if err := svc.SetStatus(ctx, 999, "closed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListTickets_CountsAndOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	first, err := svc.Send(ctx, "ann@example.com", false, nil, "one", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, "ann@example.com", false, &first.TicketID, "two", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	svc.now = func() time.Time { return base.Add(time.Hour) }
	second, err := svc.Send(ctx, "bob@example.com", false, nil, "hi", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	tickets, err := svc.ListTickets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("tickets = %d, want 2", len(tickets))
	}
	if tickets[0].ID != second.TicketID {
		t.Fatalf("most recently active ticket = %d, want %d", tickets[0].ID, second.TicketID)
	}
	if tickets[1].MessageCount != 2 || tickets[0].MessageCount != 1 {
		t.Fatalf("counts = %d, %d", tickets[1].MessageCount, tickets[0].MessageCount)
	}
	if tickets[1].LastMessageTime == nil {
		t.Fatalf("missing last_message_time")
	}
}
