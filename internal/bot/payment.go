package bot

import (
	"context"
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"

	"jobalertbot/internal/transport"
)

// cmdSubscribe sends the premium payment instructions followed by a UPI
// QR photo. Payment is verified manually: the user uploads a screenshot
// and the admin approves with /addpremium.
func (r *Router) cmdSubscribe(ctx context.Context, chatID int64) {
	amount := r.cfg.amount()

	text := fmt.Sprintf(
		"🔒 <b>Upgrade to Premium</b>\n\n"+
			"💰 Amount: ₹%d (one-time)\n\n"+
			"👉 Pay using any UPI app:\n"+
			"📌 <b>UPI ID:</b> <code>%s</code>\n\n"+
			"📷 Or simply scan the QR code below to pay instantly.\n\n"+
			"After payment, please upload a screenshot here 📸\n"+
			"Admin will verify & activate your Premium ✅",
		amount, r.cfg.UPIID,
	)
	r.reply(ctx, chatID, text)

	png, err := upiQR(r.cfg.UPIID, r.cfg.PayeeName, amount, "Job Bot Premium")
	if err != nil {
		r.log.Error().Err(err).Msg("qr generation failed")
		return
	}
	_, err = r.adapter.SendPhoto(ctx, transport.ChatTarget{ChatID: chatID}, transport.PhotoOut{
		Data:    png,
		Name:    "upi_qr.png",
		Caption: fmt.Sprintf("📷 Scan & Pay ₹%d to %s", amount, r.cfg.UPIID),
	})
	if err != nil {
		r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("qr send failed")
	}
}

// upiQR encodes a upi://pay deep link as a PNG.
func upiQR(upiID, payee string, amount int, note string) ([]byte, error) {
	if payee == "" {
		payee = "Job Alert Bot"
	}
	q := url.Values{}
	q.Set("pa", upiID)
	q.Set("pn", payee)
	q.Set("am", fmt.Sprintf("%d", amount))
	q.Set("cu", "INR")
	q.Set("tn", note)
	link := "upi://pay?" + q.Encode()
	return qrcode.Encode(link, qrcode.Medium, 256)
}
