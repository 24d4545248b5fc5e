package payment

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

const (
	Currency = "LKR"
	Country  = "Sri Lanka"

	// StatusCodeSuccess is the gateway's code for a completed payment.
	// Every other code is treated as failure.
	StatusCodeSuccess = "2"
)

// Gateway signs outbound checkout payloads and verifies inbound webhook
// signatures using the PayHere MD5 scheme. The hashing steps are part of
// the gateway's wire contract and must not change.
type Gateway struct {
	MerchantID     string
	MerchantSecret string
	ReturnURL      string
	CancelURL      string
	NotifyURL      string
}

// Notification is the consumed subset of the gateway's webhook form
// fields. Missing parameters decode as empty strings, never nil.
type Notification struct {
	OrderID    string
	Amount     string
	Currency   string
	StatusCode string
	MD5Sig     string
}

func NotificationFromForm(form url.Values) Notification {
	return Notification{
		OrderID:    form.Get("order_id"),
		Amount:     form.Get("payhere_amount"),
		Currency:   form.Get("payhere_currency"),
		StatusCode: form.Get("status_code"),
		MD5Sig:     form.Get("md5sig"),
	}
}

// FormatAmount renders an amount the way the gateway hashes it: fixed two
// decimal places.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// Sign computes the checkout hash:
// uppercase(md5(merchantId + orderId + amount + currency + uppercase(md5(secret)))).
func (g *Gateway) Sign(orderID string, amount float64, currency string) string {
	input := g.MerchantID + orderID + FormatAmount(amount) + currency + g.secretHash()
	return strings.ToUpper(md5Hex(input))
}

// Verify recomputes the webhook signature over the notification fields and
// accepts only a matching signature combined with a success status code.
func (g *Gateway) Verify(n Notification) bool {
	input := g.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + g.secretHash()
	local := strings.ToUpper(md5Hex(input))
	return strings.EqualFold(local, n.MD5Sig) && n.StatusCode == StatusCodeSuccess
}

func (g *Gateway) secretHash() string {
	return strings.ToUpper(md5Hex(g.MerchantSecret))
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
