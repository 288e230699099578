package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckoutClient talks to the YooKassa-compatible payments REST API.
type CheckoutClient struct {
	baseURL   string
	shopID    string
	secretKey string
	httpc     *http.Client
}

func NewCheckoutClient(baseURL, shopID, secretKey string) *CheckoutClient {
	return &CheckoutClient{
		baseURL:   baseURL,
		shopID:    shopID,
		secretKey: secretKey,
		httpc:     &http.Client{Timeout: 15 * time.Second},
	}
}

type createPaymentReq struct {
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Capture     bool              `json:"capture"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type createPaymentResp struct {
	ID           string `json:"id"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreatePayment registers a redirect payment and returns the confirmation URL.
func (c *CheckoutClient) CreatePayment(ctx context.Context, amount int, description, returnURL, invoiceID, plan, idempotenceKey string) (string, error) {
	var reqBody createPaymentReq
	reqBody.Amount.Value = fmt.Sprintf("%d.00", amount)
	reqBody.Amount.Currency = "RUB"
	reqBody.Confirmation.Type = "redirect"
	reqBody.Confirmation.ReturnURL = returnURL
	reqBody.Capture = true
	reqBody.Description = description
	reqBody.Metadata = map[string]string{
		"invoice_id": invoiceID,
		"plan":       plan,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", idempotenceKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("payment creation failed: status=%d body=%s", resp.StatusCode, detail)
	}

	var out createPaymentResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Confirmation.ConfirmationURL == "" {
		return "", fmt.Errorf("payment creation failed: empty confirmation url")
	}
	return out.Confirmation.ConfirmationURL, nil
}

// WebhookEvent is the provider notification body. Only payment.succeeded
// is acted on; everything else is acknowledged and dropped.
type WebhookEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
		Receipt  *struct {
			Email string `json:"email"`
		} `json:"receipt"`
	} `json:"object"`
}
