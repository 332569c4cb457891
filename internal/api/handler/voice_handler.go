package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"collections-engine/internal/domain/customer"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

const (
	voiceMenuText = "Welcome to the collections assistant. " +
		"Press 1 to receive your EMI payment link via SMS. " +
		"Press 2 to mark your EMI as paid. " +
		"Press 3 to speak with an agent."

	fallbackPaymentLink = "https://example.com/pay"
	fallbackCallerName  = "Customer"
)

// MessageGateway sends a text message and reports the provider's message id.
type MessageGateway interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// PaymentLinkService creates a short payment URL for an installment.
type PaymentLinkService interface {
	CreatePaymentLink(ctx context.Context, name, contact string, amount decimal.Decimal) (string, error)
}

// VoiceHandler serves the interactive voice menu: pure request/response glue
// dispatching key presses to the customer service and the gateways.
type VoiceHandler struct {
	customers   customer.Service
	links       PaymentLinkService
	messenger   MessageGateway
	agentNumber string
	logger      *slog.Logger
}

func NewVoiceHandler(customers customer.Service, links PaymentLinkService, messenger MessageGateway, agentNumber string, l *slog.Logger) *VoiceHandler {
	if customers == nil || links == nil || messenger == nil {
		panic("voice handler dependencies cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &VoiceHandler{
		customers:   customers,
		links:       links,
		messenger:   messenger,
		agentNumber: agentNumber,
		logger:      l.With("component", "VoiceHandler"),
	}
}

// Menu handles POST /voice: the voice-menu entry point the outbound call is
// directed to. Repeats itself when the callee presses nothing.
func (h *VoiceHandler) Menu(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Serving voice menu")

	doc, root := newTwiML()
	gather := addGather(root, 1, "/voice/key")
	addSay(gather, voiceMenuText)
	addRedirect(root, "/voice")
	respondTwiML(w, doc)
}

// HandleKey handles POST /voice/key with the digit the callee pressed.
func (h *VoiceHandler) HandleKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	digit := r.FormValue("Digits")
	caller := r.FormValue("From")

	logCtx := h.logger.With(slog.String("digit", digit), slog.String("caller", caller))
	logCtx.InfoContext(ctx, "Received voice menu key press")

	// An unknown or malformed caller number degrades to a generic flow; the
	// menu must never error back at the telephony provider.
	cust, err := h.customers.GetCustomerByPhone(ctx, caller)
	if err != nil {
		logCtx.WarnContext(ctx, "Could not resolve caller to a customer", slog.Any("error", err))
		cust = nil
	}

	doc, root := newTwiML()
	switch digit {
	case "1":
		h.sendPaymentLink(ctx, root, caller, cust)
	case "2":
		h.markPaid(ctx, root, caller)
	case "3":
		logCtx.InfoContext(ctx, "Connecting caller to agent")
		addSay(root, "Please wait while we connect you to an agent.")
		addDial(root, h.agentNumber)
	default:
		logCtx.InfoContext(ctx, "Invalid key pressed")
		addSay(root, "Sorry, invalid choice. Goodbye.")
	}

	respondTwiML(w, doc)
}

func (h *VoiceHandler) sendPaymentLink(ctx context.Context, root *etree.Element, caller string, cust *customer.Customer) {
	addSay(root, "Great! Sending you a secure payment link via SMS now.")

	name := fallbackCallerName
	amount := decimal.NewFromInt(1000)
	if cust != nil {
		name = cust.Name
		amount = cust.EMIAmount
	}

	link, err := h.links.CreatePaymentLink(ctx, name, caller, amount)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to create payment link, using fallback", slog.Any("error", err))
		link = fallbackPaymentLink
	}

	body := fmt.Sprintf("Hello %s! Pay your EMI here: %s", name, link)
	if _, err := h.messenger.SendSMS(ctx, caller, body); err != nil {
		h.logger.ErrorContext(ctx, "Failed to send payment link SMS", slog.Any("error", err))
		addSay(root, "We couldn't send the SMS right now. Please try later.")
	}
}

func (h *VoiceHandler) markPaid(ctx context.Context, root *etree.Element, caller string) {
	if err := h.customers.MarkPaid(ctx, caller); err != nil {
		h.logger.ErrorContext(ctx, "Failed to mark installment paid", slog.Any("error", err))
		addSay(root, "We couldn't update your record right now. Please try again later.")
		return
	}
	addSay(root, "Thank you. We have marked your EMI as paid.")
}
