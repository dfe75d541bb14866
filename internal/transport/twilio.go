package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"

	"messaging-platform/internal/conversations"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioTransport sends through the Twilio Messages API, paced by a token bucket so a
// burst of replies does not trip the account's per-number throughput limit.
type TwilioTransport struct {
	api     messageCreator
	limiter *rate.Limiter
}

// NewTwilioTransport builds a REST-backed transport. ratePerSecond <= 0 disables pacing.
func NewTwilioTransport(accountSID, authToken string, ratePerSecond float64) *TwilioTransport {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return newTwilioTransport(c.Api, ratePerSecond)
}

func newTwilioTransport(api messageCreator, ratePerSecond float64) *TwilioTransport {
	lim := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &TwilioTransport{api: api, limiter: lim}
}

func (t *TwilioTransport) Name() string { return "twilio" }

func (t *TwilioTransport) Send(ctx context.Context, req OutboundRequest) (SendResult, error) {
	if err := req.validate(); err != nil {
		return SendResult{}, err
	}
	to, err := addressFor(req.Channel, req.To)
	if err != nil {
		return SendResult{}, err
	}
	from, err := addressFor(req.Channel, req.From)
	if err != nil {
		return SendResult{}, err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return SendResult{}, fmt.Errorf("transport: twilio pacing: %w", err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(req.Body)

	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return SendResult{}, fmt.Errorf("transport: twilio send: %w", err)
	}
	out := SendResult{}
	if resp != nil {
		if resp.Sid != nil {
			out.ExternalID = *resp.Sid
		}
		if resp.Status != nil {
			out.Status = *resp.Status
		}
	}
	return out, nil
}

// addressFor applies Twilio's channel prefix (whatsapp:+1..., rcs:+1...).
func addressFor(ch conversations.Channel, addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	switch ch {
	case conversations.ChannelSMS, "":
		return addr, nil
	case conversations.ChannelWhatsApp, conversations.ChannelRCS:
		prefix := string(ch) + ":"
		if strings.HasPrefix(addr, prefix) {
			return addr, nil
		}
		return prefix + addr, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedChannel, ch)
	}
}
