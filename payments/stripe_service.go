package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edupay/tuition_pay/billing"
	config "github.com/edupay/tuition_pay/configs"
)

const defaultAPIBase = "https://api.stripe.com"

// StripeService talks to the Stripe REST API directly. It implements the
// billing ChargeService, SubscriptionService and LinkService contracts.
type StripeService struct {
	APIBase   string
	SecretKey string

	client *http.Client
}

func NewStripeService() *StripeService {
	apiBase := config.Config("STRIPE_API_BASE_URL")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &StripeService{
		APIBase:   apiBase,
		SecretKey: config.Config("STRIPE_SECRET_KEY"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type stripeError struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

type customerResponse struct {
	ID string `json:"id"`
}

type paymentIntentResponse struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type productResponse struct {
	ID string `json:"id"`
}

type priceResponse struct {
	ID string `json:"id"`
}

type subscriptionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type paymentLinkResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *StripeService) CreateCustomer(ctx context.Context, details billing.CustomerDetails) (string, error) {
	form := url.Values{}
	form.Set("email", details.Email)
	form.Set("name", details.Name)
	if details.Phone != "" {
		form.Set("phone", details.Phone)
	}
	form.Set("address[line1]", details.Address)
	form.Set("address[city]", details.City)
	form.Set("address[state]", details.State)
	form.Set("address[postal_code]", details.ZipCode)
	form.Set("address[country]", details.Country)
	setMetadata(form, details.Metadata)

	var customer customerResponse
	if err := s.post(ctx, "/v1/customers", form, "", &customer); err != nil {
		return "", err
	}
	return customer.ID, nil
}

func (s *StripeService) AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodID string) error {
	form := url.Values{}
	form.Set("customer", customerRef)
	if err := s.post(ctx, fmt.Sprintf("/v1/payment_methods/%s/attach", paymentMethodID), form, "", nil); err != nil {
		return err
	}

	form = url.Values{}
	form.Set("invoice_settings[default_payment_method]", paymentMethodID)
	return s.post(ctx, fmt.Sprintf("/v1/customers/%s", customerRef), form, "", nil)
}

// Charge creates and confirms a payment intent in one call. Card declines
// come back as *billing.DeclinedError; anything else is a transport or
// processor failure.
func (s *StripeService) Charge(ctx context.Context, req billing.ChargeRequest) (billing.ChargeResult, error) {
	form := url.Values{}
	form.Set("amount", cents(req.Amount))
	form.Set("currency", "usd")
	form.Set("customer", req.CustomerRef)
	form.Set("payment_method", req.PaymentMethodID)
	form.Set("confirm", "true")
	form.Set("description", req.Description)
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	setMetadata(form, req.Metadata)

	var intent paymentIntentResponse
	if err := s.post(ctx, "/v1/payment_intents", form, req.IdempotencyKey, &intent); err != nil {
		return billing.ChargeResult{}, err
	}

	if intent.Status != "succeeded" {
		reason := fmt.Sprintf("payment intent status %s", intent.Status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Message != "" {
			reason = intent.LastPaymentError.Message
		}
		return billing.ChargeResult{}, &billing.DeclinedError{Reason: reason}
	}

	return billing.ChargeResult{Ref: intent.ID}, nil
}

func (s *StripeService) CreateSubscription(ctx context.Context, req billing.SubscriptionRequest) (string, error) {
	form := url.Values{}
	form.Set("name", req.ProductName)
	setMetadata(form, req.Metadata)

	var product productResponse
	if err := s.post(ctx, "/v1/products", form, "", &product); err != nil {
		return "", err
	}

	form = url.Values{}
	form.Set("product", product.ID)
	form.Set("unit_amount", cents(req.AmountPerCycle))
	form.Set("currency", "usd")
	form.Set("recurring[interval]", "month")
	form.Set("recurring[interval_count]", "1")

	var price priceResponse
	if err := s.post(ctx, "/v1/prices", form, "", &price); err != nil {
		return "", err
	}

	form = url.Values{}
	form.Set("customer", req.CustomerRef)
	form.Set("items[0][price]", price.ID)
	form.Set("items[0][quantity]", strconv.Itoa(req.Cycles))
	form.Set("payment_settings[payment_method_types][0]", "card")
	form.Set("payment_settings[save_default_payment_method]", "on_subscription")
	setMetadata(form, req.Metadata)

	var sub subscriptionResponse
	if err := s.post(ctx, "/v1/subscriptions", form, "", &sub); err != nil {
		return "", err
	}
	if sub.Status != "active" {
		return "", fmt.Errorf("subscription %s is %s, expected active", sub.ID, sub.Status)
	}
	return sub.ID, nil
}

func (s *StripeService) CreateLink(ctx context.Context, req billing.LinkRequest) (billing.PaymentLink, error) {
	form := url.Values{}
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][product_data][name]", req.ProductName)
	if req.Description != "" {
		form.Set("line_items[0][price_data][product_data][description]", req.Description)
	}
	form.Set("line_items[0][price_data][unit_amount]", cents(req.Amount))
	form.Set("line_items[0][quantity]", "1")
	form.Set("payment_method_types[0]", "us_bank_account")
	setMetadata(form, req.Metadata)
	form.Set("metadata[dueDate]", req.DueDate.Format("2006-01-02"))

	if appBase := config.Config("APP_BASE_URL"); appBase != "" {
		form.Set("after_completion[type]", "redirect")
		form.Set("after_completion[redirect][url]", fmt.Sprintf("%s/dashboard?payment=success", appBase))
	}

	var link paymentLinkResponse
	if err := s.post(ctx, "/v1/payment_links", form, "", &link); err != nil {
		return billing.PaymentLink{}, err
	}
	return billing.PaymentLink{Ref: link.ID, URL: link.URL}, nil
}

func (s *StripeService) post(ctx context.Context, path string, form url.Values, idempotencyKey string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr stripeError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Error.Type == "card_error" {
			reason := apiErr.Error.Message
			if apiErr.Error.DeclineCode != "" {
				reason = apiErr.Error.DeclineCode
			}
			return &billing.DeclinedError{Reason: reason}
		}
		return fmt.Errorf("stripe %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func cents(amount decimal.Decimal) string {
	return strconv.FormatInt(amount.Shift(2).IntPart(), 10)
}

func setMetadata(form url.Values, metadata map[string]string) {
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
}

// VerifyWebhookSignature checks a Stripe-Signature header
// ("t=<ts>,v1=<hmac>") against the raw payload. The signed string is
// "<ts>.<payload>" with HMAC-SHA256 over the endpoint secret.
func VerifyWebhookSignature(payload []byte, sigHeader, secret string, tolerance time.Duration) error {
	var ts string
	var candidates []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if ts == "" || len(candidates) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed signature timestamp")
	}
	if tolerance > 0 {
		age := time.Since(time.Unix(tsInt, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}
