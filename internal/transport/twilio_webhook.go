package transport

import (
	"net/http"
	"strconv"
	"strings"

	twclient "github.com/twilio/twilio-go/client"

	"messaging-platform/internal/conversations"
)

// ParseTwilioInboundMessage reads the form-encoded messaging webhook.
// The channel is inferred from the whatsapp:/rcs: address prefix, which is stripped.
func ParseTwilioInboundMessage(r *http.Request) (InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return InboundMessage{}, err
	}
	from := strings.TrimSpace(r.PostFormValue("From"))
	to := strings.TrimSpace(r.PostFormValue("To"))
	ch, from := splitChannel(from)
	_, to = splitChannel(to)

	m := InboundMessage{
		ExternalID: strings.TrimSpace(r.PostFormValue("MessageSid")),
		AccountID:  r.PostFormValue("AccountSid"),
		Channel:    ch,
		From:       from,
		To:         to,
		Body:       r.PostFormValue("Body"),
	}
	if m.ExternalID == "" {
		m.ExternalID = strings.TrimSpace(r.PostFormValue("SmsSid"))
	}
	if n, err := strconv.Atoi(r.PostFormValue("NumMedia")); err == nil {
		m.NumMedia = n
	}
	if m.From == "" || m.To == "" {
		return InboundMessage{}, ErrInvalidRequest
	}
	return m, nil
}

func splitChannel(addr string) (conversations.Channel, string) {
	for _, ch := range []conversations.Channel{conversations.ChannelWhatsApp, conversations.ChannelRCS} {
		prefix := string(ch) + ":"
		if strings.HasPrefix(strings.ToLower(addr), prefix) {
			return ch, addr[len(prefix):]
		}
	}
	return conversations.ChannelSMS, addr
}

// ValidateTwilioSignature checks X-Twilio-Signature against the public URL Twilio
// posted to. r.ParseForm must have been called.
func ValidateTwilioSignature(authToken, publicURL string, r *http.Request) bool {
	sig := r.Header.Get("X-Twilio-Signature")
	if sig == "" || authToken == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	v := twclient.NewRequestValidator(authToken)
	return v.Validate(publicURL, params, sig)
}
