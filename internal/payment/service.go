package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/chat-bankrot/community-chat/internal/models"
	"github.com/chat-bankrot/community-chat/internal/store/rabbitmq"
	"github.com/chat-bankrot/community-chat/internal/subscription"
)

var ErrOrderNotFound = errors.New("order not found")

// Plan prices in whole rubles, matching the storefront.
const (
	PriceWeek  = 999
	PriceMonth = 3999
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateOrder(ctx context.Context, o *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *Repo) GetOrder(ctx context.Context, invoiceID string) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) MarkPaid(ctx context.Context, invoiceID, userToken string) error {
	return r.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("invoice_id = ? AND status = ?", invoiceID, models.OrderPending).
		Updates(map[string]any{
			"status":     models.OrderPaid,
			"user_token": userToken,
		}).Error
}

// EmailPublisher queues access-token delivery mails.
type EmailPublisher interface {
	PublishEmailJob(ctx context.Context, job rabbitmq.EmailJob) error
}

type Service struct {
	repo     *Repo
	checkout *CheckoutClient
	subs     *subscription.Service
	emails   EmailPublisher
	baseURL  string
	entropy  *ulid.MonotonicEntropy
}

func NewService(repo *Repo, checkout *CheckoutClient, subs *subscription.Service, emails EmailPublisher, baseURL string) *Service {
	return &Service{
		repo:     repo,
		checkout: checkout,
		subs:     subs,
		emails:   emails,
		baseURL:  baseURL,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (s *Service) newInvoiceID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// CreateOrder registers a pending invoice and asks the provider for a
// redirect URL the buyer completes the payment at.
func (s *Service) CreateOrder(ctx context.Context, plan string) (paymentURL, invoiceID string, err error) {
	if _, err := subscription.PlanDuration(plan); err != nil {
		return "", "", err
	}

	amount := PriceMonth
	planName := "month"
	if plan == subscription.PlanWeek {
		amount = PriceWeek
		planName = "week"
	}

	invoiceID = s.newInvoiceID()
	order := &models.PaymentOrder{
		InvoiceID: invoiceID,
		Plan:      plan,
		Amount:    amount,
		Status:    models.OrderPending,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return "", "", err
	}

	idempotenceKey, err := subscription.NewToken()
	if err != nil {
		return "", "", err
	}
	returnURL := fmt.Sprintf("%s/payment/success?InvId=%s", s.baseURL, invoiceID)
	description := fmt.Sprintf("Chat subscription for one %s", planName)

	paymentURL, err = s.checkout.CreatePayment(ctx, amount, description, returnURL, invoiceID, plan, idempotenceKey)
	if err != nil {
		return "", "", err
	}
	return paymentURL, invoiceID, nil
}

// HandleSucceeded processes a payment.succeeded webhook: for a pending order
// it mints the subscription, marks the order paid and queues the token mail.
// Repeated deliveries for an already-paid order are no-ops.
func (s *Service) HandleSucceeded(ctx context.Context, ev *WebhookEvent) error {
	invoiceID := ev.Object.Metadata["invoice_id"]
	plan := ev.Object.Metadata["plan"]
	if invoiceID == "" || plan == "" {
		return nil
	}

	order, err := s.repo.GetOrder(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if order.Status != models.OrderPending {
		return nil
	}

	var emailAddr *string
	if ev.Object.Receipt != nil && ev.Object.Receipt.Email != "" {
		e := ev.Object.Receipt.Email
		emailAddr = &e
	}

	sub, err := s.subs.Mint(ctx, plan, emailAddr)
	if err != nil {
		return err
	}
	if err := s.repo.MarkPaid(ctx, invoiceID, sub.UserToken); err != nil {
		return err
	}

	if s.emails != nil && emailAddr != nil {
		job := rabbitmq.EmailJob{
			Email:       *emailAddr,
			Token:       sub.UserToken,
			Plan:        plan,
			ExpiresDate: sub.ExpiresAt.Format("02.01.2006"),
		}
		if err := s.emails.PublishEmailJob(ctx, job); err != nil {
			// delivery can be retried by hand from the admin panel
			log.Printf("payment: queue token mail failed invoice=%s err=%v", invoiceID, err)
		}
	}
	return nil
}

// SuccessRedirect resolves the post-payment redirect target. A paid order
// redirects with the minted token as a magic-link parameter; anything else
// lands back on the storefront as still pending.
func (s *Service) SuccessRedirect(ctx context.Context, invoiceID string) (string, error) {
	order, err := s.repo.GetOrder(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrOrderNotFound
		}
		return "", err
	}
	if order.Status == models.OrderPaid && order.UserToken != nil {
		return fmt.Sprintf("%s/payment-success?token=%s&plan=%s", s.baseURL, *order.UserToken, order.Plan), nil
	}
	return s.baseURL + "/?payment=pending", nil
}
