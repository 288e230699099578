package support

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrEmailRequired = errors.New("user email required")
	ErrEmptyMessage  = errors.New("message required")
	ErrNotFound      = errors.New("ticket not found")
)

type Service struct {
	repo *Repo
	now  func() time.Time
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Thread returns the caller's ticket and its message history. With no
// ticket id the caller's newest ticket is used, created on the fly if they
// have none.
func (s *Service) Thread(ctx context.Context, email string, ticketID *uint64) (*Thread, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	var ticket *Ticket
	if ticketID != nil {
		t, err := s.repo.GetTicket(ctx, *ticketID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		ticket = t
	} else {
		t, err := s.repo.LatestTicketByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if t == nil {
			t = &Ticket{ClientEmail: email, Status: "open"}
			if err := s.repo.CreateTicket(ctx, t); err != nil {
				return nil, err
			}
		}
		ticket = t
	}

	msgs, err := s.repo.MessagesWithReactions(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &Thread{Ticket: *ticket, Messages: msgs}, nil
}

// Send appends a message to the caller's ticket, creating the ticket when
// needed, and bumps the ticket's activity timestamps. Admin viewers send as
// "admin", everyone else as "client".
func (s *Service) Send(ctx context.Context, email string, isAdmin bool, ticketID *uint64, text, attachmentURL string) (*Message, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	var ticket *Ticket
	if ticketID != nil {
		t, err := s.repo.GetTicket(ctx, *ticketID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		ticket = t
	} else {
		t, err := s.repo.LatestTicketByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if t == nil {
			t = &Ticket{ClientEmail: email, Status: "open"}
			if err := s.repo.CreateTicket(ctx, t); err != nil {
				return nil, err
			}
		}
		ticket = t
	}

	senderType := "client"
	if isAdmin {
		senderType = "admin"
	}
	msg := Message{
		TicketID:    ticket.ID,
		SenderType:  senderType,
		SenderEmail: &email,
		MessageText: text,
	}
	if attachmentURL = strings.TrimSpace(attachmentURL); attachmentURL != "" {
		msg.AttachmentURL = &attachmentURL
	}
	if err := s.repo.InsertMessage(ctx, &msg); err != nil {
		return nil, err
	}
	if err := s.repo.TouchTicket(ctx, ticket.ID, s.now()); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ToggleReaction flips the caller's reaction on a message. Reports whether
// the reaction is present afterwards.
func (s *Service) ToggleReaction(ctx context.Context, email string, messageID uint64, reaction string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, ErrEmailRequired
	}
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return false, ErrEmptyMessage
	}
	return s.repo.ToggleReaction(ctx, messageID, email, reaction)
}

// ListTickets is the admin overview of every ticket.
func (s *Service) ListTickets(ctx context.Context) ([]TicketSummary, error) {
	return s.repo.ListSummaries(ctx)
}

func (s *Service) SetStatus(ctx context.Context, ticketID uint64, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return ErrEmptyMessage
	}
	err := s.repo.UpdateStatus(ctx, ticketID, status)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
