package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mfigueroa/ordercore-backend/pkg/config"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
)

var (
	errBaseURLRequired  = errors.New("payment gateway base url is required")
	errKeyIDRequired    = errors.New("payment gateway key id is required")
	errCallbackRequired = errors.New("payment gateway callback secret is required")
)

// Statuses the gateway reports for a payment. Only captured payments
// mark an order as paid.
const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

// Payment is the gateway's authoritative record of a payment attempt.
type Payment struct {
	ID          string `json:"id"`
	OrderRef    string `json:"order_ref"`
	AmountCents int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Method      string `json:"method"`
}

// Client talks to the payment gateway's REST API and holds the callback
// signing secret.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	keyID          string
	keySecret      string
	callbackSecret string
	logg           *logger.Logger
}

// NewClient validates the gateway credentials once at startup.
func NewClient(ctx context.Context, cfg config.PaymentConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	callbackSecret := strings.TrimSpace(cfg.CallbackToken)
	if callbackSecret == "" {
		return nil, errCallbackRequired
	}

	c := &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        baseURL,
		keyID:          keyID,
		keySecret:      strings.TrimSpace(cfg.KeySecret),
		callbackSecret: callbackSecret,
		logg:           logg,
	}

	if logg != nil {
		logg.Info(ctx, "payment gateway client initialized")
	}
	return c, nil
}

// CallbackSecret returns the shared secret used to sign callbacks.
func (c *Client) CallbackSecret() string {
	if c == nil {
		return ""
	}
	return c.callbackSecret
}

// FetchPayment re-reads the payment from the gateway. Callback payloads
// are never trusted for amount or status; this is the source of truth.
func (c *Client) FetchPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	ref := strings.TrimSpace(paymentRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	endpoint := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment %s not found at gateway", ref))
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway rejected credentials")
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payment gateway returned %d", resp.StatusCode))
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}

	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"payment_ref": payment.ID,
			"status":      payment.Status,
		})
		c.logg.Info(logCtx, "payment fetched from gateway")
	}
	return &payment, nil
}
