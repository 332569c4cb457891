package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"collections-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
)

const (
	smsGreeting = "Hello! This is the collections assistant. Reply with 'PAY' to get your EMI payment link."
	smsHelp     = "Sorry, I didn't understand. Reply with 'PAY' to get your EMI link."
)

// SMSHandler answers inbound text messages: a keyword dispatcher with no
// decision logic of its own.
type SMSHandler struct {
	customers customer.Service
	links     PaymentLinkService
	logger    *slog.Logger
}

func NewSMSHandler(customers customer.Service, links PaymentLinkService, l *slog.Logger) *SMSHandler {
	if customers == nil || links == nil {
		panic("sms handler dependencies cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &SMSHandler{
		customers: customers,
		links:     links,
		logger:    l.With("component", "SMSHandler"),
	}
}

// Reply handles POST /sms.
func (h *SMSHandler) Reply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := strings.ToLower(strings.TrimSpace(r.FormValue("Body")))
	from := r.FormValue("From")

	logCtx := h.logger.With(slog.String("from", from))
	logCtx.InfoContext(ctx, "Received inbound SMS", slog.String("keyword", body))

	doc, root := newTwiML()
	switch body {
	case "hi", "hello":
		addMessage(root, smsGreeting)
	case "pay":
		addMessage(root, h.paymentLinkMessage(r, from))
	default:
		addMessage(root, smsHelp)
	}

	respondTwiML(w, doc)
}

func (h *SMSHandler) paymentLinkMessage(r *http.Request, from string) string {
	ctx := r.Context()

	name := fallbackCallerName
	amount := decimal.NewFromInt(1000)
	if cust, err := h.customers.GetCustomerByPhone(ctx, from); err == nil {
		name = cust.Name
		amount = cust.EMIAmount
	} else {
		h.logger.WarnContext(ctx, "Could not resolve sender to a customer", slog.Any("error", err))
	}

	link, err := h.links.CreatePaymentLink(ctx, name, from, amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to create payment link for SMS reply", slog.Any("error", err))
		link = fallbackPaymentLink
	}

	return fmt.Sprintf("Here is your secure payment link: %s", link)
}
