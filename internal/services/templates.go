package services

import (
	"fmt"
	"strings"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/models"
)

// Customer-facing replies. SMS is plain text, so no markup.
const (
	msgStartPrompt     = "Reply MENU to see today's menu and order."
	msgNoMenu          = "Sorry, there's no menu available today. Please check back later!"
	msgInvalidNumbers  = "Please select valid item numbers from the menu (e.g. 1, 3). Reply MENU to see it again."
	msgSelectionPrompt = "Reply with the item numbers you want (e.g. 1, 3), or MENU to see the menu again."
	msgConfirmPrompt   = "Reply CONFIRM to place your order, MENU to start over, or CANCEL."
	msgCancelled       = "Your order has been cancelled. Reply MENU whenever you'd like to order again."
	msgTryAgain        = "Sorry, we couldn't process that right now. Please try again in a few minutes."
	msgBusy            = "We're still working on your last message. Please try again in a moment."
	msgHelp            = `EatCaterly text ordering:
MENU - see today's menu
1, 3 - pick items by number
CONFIRM - place your order
CANCEL - cancel your order
STOP - stop menu texts`
)

// FormatCents renders integer cents as dollars, e.g. 1700 -> "$17.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// FormatMenu renders a snapshot as a numbered list. The numbers printed
// here are the numbers customers reply with.
func FormatMenu(menu *MenuSnapshot) string {
	var b strings.Builder
	title := menu.Name
	if title == "" {
		title = "Today's menu"
	}
	b.WriteString(title)
	b.WriteString(":\n")
	for i, item := range menu.Items {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, item.Name, FormatCents(item.PriceCents))
	}
	b.WriteString("\nReply with the item numbers you want (e.g. 1, 3).")
	return b.String()
}

func formatConfirmPrompt(items []models.SessionItem, total int64) string {
	var b strings.Builder
	b.WriteString("Your order:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s %s\n", item.Name, FormatCents(item.UnitPriceCents*int64(item.Quantity)))
	}
	fmt.Fprintf(&b, "Total: %s\n\n", FormatCents(total))
	b.WriteString(msgConfirmPrompt)
	return b.String()
}

func formatOrderPlaced(orderID string, total int64, paymentURL string) string {
	return fmt.Sprintf("Order %s confirmed! Total: %s\nPay here: %s\nThank you!",
		orderID, FormatCents(total), paymentURL)
}

func formatPaymentPending(orderID string, total int64) string {
	return fmt.Sprintf("Order %s for %s was saved, but we couldn't create your payment link. "+
		"We'll text it to you shortly, no need to order again.", orderID, FormatCents(total))
}

func formatPaymentLink(orderID string, total int64, paymentURL string) string {
	return fmt.Sprintf("Here's your payment link for order %s (%s): %s", orderID, FormatCents(total), paymentURL)
}

func formatPaymentReceived(orderID string, total int64) string {
	return fmt.Sprintf("Payment of %s received for order %s. Thank you!", FormatCents(total), orderID)
}
