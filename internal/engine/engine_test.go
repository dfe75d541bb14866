package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"messaging-platform/internal/ai"
	"messaging-platform/internal/audit"
	"messaging-platform/internal/classifier"
	"messaging-platform/internal/compliance"
	"messaging-platform/internal/contacts"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/dispatch"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/responder"
	"messaging-platform/internal/taxonomy"
	"messaging-platform/internal/tenants"
	"messaging-platform/internal/transport"
)

const (
	customer = "+15551234567"
	business = "+15550001111"
)

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingAlerter) Alert(ctx context.Context, a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recordingAlerter) all() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.alerts...)
}

type harness struct {
	engine    *Engine
	contacts  *contacts.MemoryRepo
	convs     *conversations.MemoryRepo
	msgs      *messages.MemoryRepo
	audit     *audit.MemoryRepo
	tenants   *tenants.Service
	transport *transport.MemoryTransport
	alerts    *recordingAlerter

	classifyCalls atomic.Int32
	respondCalls  atomic.Int32

	mu          sync.Mutex
	classifyOut func(ctx context.Context) (string, error)
	respondOut  func(ctx context.Context, prompt string) (string, error)
}

type harnessOption func(*harness, *Deps)

func withContactsRepo(r contacts.Repository) harnessOption {
	return func(h *harness, d *Deps) { d.Contacts = contacts.NewService(r, "US") }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		contacts:  contacts.NewMemoryRepo(),
		convs:     conversations.NewMemoryRepo(),
		msgs:      messages.NewMemoryRepo(),
		audit:     audit.NewMemoryRepo(),
		transport: transport.NewMemoryTransport(),
		alerts:    &recordingAlerter{},
	}
	h.tenants = tenants.NewService(tenants.NewMemoryRepo(), "US")
	_, err := h.tenants.Upsert(context.Background(), tenants.Tenant{
		ID:            "t1",
		BusinessName:  "Acme Bikes",
		KnowledgeBase: "Orders ship within 3 business days.",
	}, []string{business})
	require.NoError(t, err)

	h.classifyOut = func(ctx context.Context) (string, error) {
		return `{"intent":"order_status","sentiment":"negative","confidence":0.9}`, nil
	}
	h.respondOut = func(ctx context.Context, prompt string) (string, error) {
		return `{"reply":"Your order ships within 3 business days.","escalate":false,"sentiment":"negative"}`, nil
	}

	classifyGen := ai.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		h.classifyCalls.Add(1)
		h.mu.Lock()
		fn := h.classifyOut
		h.mu.Unlock()
		return fn(ctx)
	})
	respondGen := ai.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		h.respondCalls.Add(1)
		h.mu.Lock()
		fn := h.respondOut
		h.mu.Unlock()
		return fn(ctx, prompt)
	})

	convSvc := conversations.NewService(h.convs)
	msgSvc := messages.NewService(h.msgs)
	deps := Deps{
		Tenants:       h.tenants,
		Contacts:      contacts.NewService(h.contacts, "US"),
		Conversations: convSvc,
		Messages:      msgSvc,
		Classifier:    classifier.New(classifyGen, 50*time.Millisecond, nil),
		Responder:     responder.New(respondGen, 50*time.Millisecond, nil),
		Dispatcher:    dispatch.New(h.transport, msgSvc, convSvc),
		Audit:         audit.NewService(h.audit),
		Alerter:       h.alerts,
	}
	for _, o := range opts {
		o(h, &deps)
	}
	h.engine, err = New(deps, Options{HistoryWindow: 10})
	require.NoError(t, err)
	return h
}

func (h *harness) setClassifier(fn func(ctx context.Context) (string, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.classifyOut = fn
}

func (h *harness) setResponder(fn func(ctx context.Context, prompt string) (string, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.respondOut = fn
}

func (h *harness) inbound(body, sid string) Inbound {
	return Inbound{TenantID: "t1", From: customer, To: business, Body: body, ExternalID: sid}
}

func (h *harness) onlyContact(t *testing.T) contacts.Contact {
	t.Helper()
	all := h.contacts.All()
	require.Len(t, all, 1)
	return all[0]
}

func auditTypes(repo *audit.MemoryRepo) []audit.EventType {
	var out []audit.EventType
	for _, e := range repo.Events() {
		out = append(out, e.Type)
	}
	return out
}

func TestHandleInbound_StopOptsOutWithoutAI(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.engine.HandleInbound(ctx, h.inbound("STOP", "SM1"))
	require.True(t, res.Acknowledged)
	require.Equal(t, OutcomeOptedOut, res.Outcome)

	c := h.onlyContact(t)
	require.Equal(t, contacts.StatusUnsubscribed, c.Status)
	require.Equal(t, "+15551234567", c.Phone)

	sent := h.transport.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, compliance.OptOutReply, sent[0].Body)
	require.Equal(t, customer, sent[0].To)
	require.Equal(t, business, sent[0].From)

	require.Zero(t, h.classifyCalls.Load())
	require.Zero(t, h.respondCalls.Load())

	stored := h.msgs.ForConversation(res.ConversationID)
	require.Len(t, stored, 2)
	require.Equal(t, messages.TypeOptOut, stored[0].Type)
	require.Equal(t, messages.DirectionInbound, stored[0].Direction)
	require.Empty(t, stored[0].Intent)
	require.Equal(t, messages.DirectionOutbound, stored[1].Direction)
	require.Contains(t, auditTypes(h.audit), audit.EventTypeOptOut)
}

func TestHandleInbound_ComplianceKeywordsAreCaseAndSpaceInsensitive(t *testing.T) {
	h := newHarness(t)
	res := h.engine.HandleInbound(context.Background(), h.inbound("  unsubscribe \n", ""))
	require.Equal(t, OutcomeOptedOut, res.Outcome)
	require.Zero(t, h.classifyCalls.Load())
}

func TestHandleInbound_StartResubscribes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.engine.HandleInbound(ctx, h.inbound("STOP", "SM1"))
	res := h.engine.HandleInbound(ctx, h.inbound("start", "SM2"))
	require.Equal(t, OutcomeOptedIn, res.Outcome)
	require.Equal(t, contacts.StatusActive, h.onlyContact(t).Status)

	sent := h.transport.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, compliance.OptInReply, sent[1].Body)
	require.Zero(t, h.classifyCalls.Load())
	require.Contains(t, auditTypes(h.audit), audit.EventTypeOptIn)
}

func TestHandleInbound_HelpRepliesWithoutAI(t *testing.T) {
	h := newHarness(t)
	res := h.engine.HandleInbound(context.Background(), h.inbound("HELP", "SM1"))
	require.Equal(t, OutcomeHelp, res.Outcome)
	require.Equal(t, contacts.StatusActive, h.onlyContact(t).Status)
	require.Equal(t, compliance.HelpReply, h.transport.Sent()[0].Body)
	require.Zero(t, h.classifyCalls.Load())
	require.Zero(t, h.respondCalls.Load())
}

func TestHandleInbound_ClassifierTimeoutFallsBack(t *testing.T) {
	h := newHarness(t)
	h.setClassifier(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	res := h.engine.HandleInbound(context.Background(), h.inbound("My order hasn't arrived", "SM1"))
	require.True(t, res.Acknowledged)
	require.Equal(t, OutcomeReplied, res.Outcome)
	require.True(t, res.Classification.Fallback)

	stored := h.msgs.ForConversation(res.ConversationID)
	require.Len(t, stored, 2)
	require.Equal(t, res.InboundMessageID, stored[0].ID)
	require.Equal(t, taxonomy.IntentGeneral, stored[0].Intent)
	require.Equal(t, taxonomy.SentimentNeutral, stored[0].Sentiment)
	require.Equal(t, int32(1), h.respondCalls.Load())
	require.Len(t, h.transport.Sent(), 1)
}

func TestHandleInbound_ClassifiedMessageIsAnnotated(t *testing.T) {
	h := newHarness(t)
	res := h.engine.HandleInbound(context.Background(), h.inbound("My order hasn't arrived", "SM1"))
	require.Equal(t, OutcomeReplied, res.Outcome)

	stored := h.msgs.ForConversation(res.ConversationID)
	require.Equal(t, taxonomy.IntentOrderStatus, stored[0].Intent)
	require.Equal(t, taxonomy.SentimentNegative, stored[0].Sentiment)
	require.Equal(t, messages.TypeAutoReply, stored[1].Type)
	require.Equal(t, messages.SenderBot, stored[1].Sender)
	require.Empty(t, stored[1].Intent)

	conv := h.convs.ForContact(res.ContactID)[0]
	require.Equal(t, taxonomy.IntentOrderStatus, conv.Intent)
	require.Equal(t, taxonomy.SentimentNegative, conv.Sentiment)
}

func TestHandleInbound_ResponderEscalates(t *testing.T) {
	h := newHarness(t)
	h.setResponder(func(ctx context.Context, prompt string) (string, error) {
		return `{"reply":"I'm connecting you with a teammate now.","escalate":true,"sentiment":"very_negative"}`, nil
	})

	res := h.engine.HandleInbound(context.Background(), h.inbound("This is the third time I'm asking!!", "SM1"))
	require.Equal(t, OutcomeEscalated, res.Outcome)

	conv := h.convs.ForContact(res.ContactID)[0]
	require.Equal(t, conversations.StatusEscalated, conv.Status)
	require.Len(t, h.transport.Sent(), 1)
	require.Equal(t, "I'm connecting you with a teammate now.", h.transport.Sent()[0].Body)
	require.Contains(t, auditTypes(h.audit), audit.EventTypeEscalated)
}

func TestHandleInbound_ResponderEscalatesWithUnknownIntent(t *testing.T) {
	h := newHarness(t)
	h.setResponder(func(ctx context.Context, prompt string) (string, error) {
		return `{"reply":"A teammate will sort out your refund.","escalate":true,"intent":"refund_request","sentiment":"negative"}`, nil
	})

	res := h.engine.HandleInbound(context.Background(), h.inbound("I want my money back", "SM1"))
	require.Equal(t, OutcomeEscalated, res.Outcome)
	require.Equal(t, conversations.StatusEscalated, h.convs.ForContact(res.ContactID)[0].Status)
	require.Equal(t, "A teammate will sort out your refund.", h.transport.Sent()[0].Body)
}

func TestHandleInbound_EscalateIntentForcesEscalation(t *testing.T) {
	h := newHarness(t)
	h.setClassifier(func(ctx context.Context) (string, error) {
		return `{"intent":"escalate","sentiment":"negative"}`, nil
	})

	res := h.engine.HandleInbound(context.Background(), h.inbound("Let me talk to a person", "SM1"))
	require.Equal(t, OutcomeEscalated, res.Outcome)
	require.Equal(t, conversations.StatusEscalated, h.convs.ForContact(res.ContactID)[0].Status)
}

func TestHandleInbound_FallbackTotality(t *testing.T) {
	failures := map[string]func(ctx context.Context, prompt string) (string, error){
		"timeout": func(ctx context.Context, prompt string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		"server error": func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("status 500")
		},
		"malformed": func(ctx context.Context, prompt string) (string, error) {
			return `{"text": "hello"`, nil
		},
	}
	for name, fail := range failures {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.setClassifier(func(ctx context.Context) (string, error) { return fail(ctx, "") })
			h.setResponder(fail)

			res := h.engine.HandleInbound(context.Background(), h.inbound("Do you have helmets?", "SM1"))
			require.True(t, res.Acknowledged)
			require.Equal(t, OutcomeFallbackReplied, res.Outcome)
			require.NoError(t, res.Err)

			stored := h.msgs.ForConversation(res.ConversationID)
			require.Len(t, stored, 2)
			require.Equal(t, messages.DirectionInbound, stored[0].Direction)
			require.Equal(t, messages.TypeFallbackReply, stored[1].Type)
			require.Equal(t, responder.FallbackText, stored[1].Body)

			conv := h.convs.ForContact(res.ContactID)[0]
			require.Equal(t, conversations.StatusOpen, conv.Status)
		})
	}
}

func TestHandleInbound_ConcurrentFirstMessagesConverge(t *testing.T) {
	h := newHarness(t)

	var g errgroup.Group
	results := make([]Result, 8)
	for i := range results {
		i := i
		g.Go(func() error {
			results[i] = h.engine.HandleInbound(context.Background(), h.inbound("hello?", ""))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	c := h.onlyContact(t)
	convs := h.convs.ForContact(c.ID)
	require.Len(t, convs, 1)
	for _, r := range results {
		require.Equal(t, c.ID, r.ContactID)
		require.Equal(t, convs[0].ID, r.ConversationID)
	}
}

func TestHandleInbound_SlowClassificationKeepsOrder(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	h.setClassifier(func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(entered)
			select {
			case <-release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return `{"intent":"order_status","sentiment":"neutral"}`, nil
	})

	var g errgroup.Group
	g.Go(func() error {
		h.engine.HandleInbound(context.Background(), h.inbound("first", "SM1"))
		return nil
	})
	<-entered
	h.engine.HandleInbound(context.Background(), h.inbound("second", "SM2"))
	close(release)
	require.NoError(t, g.Wait())

	stored := h.msgs.All()
	require.Len(t, stored, 4)
	for i := 1; i < len(stored); i++ {
		require.Less(t, stored[i-1].Seq, stored[i].Seq)
		require.False(t, stored[i].CreatedAt.Before(stored[i-1].CreatedAt), "created_at went backwards at seq %d", stored[i].Seq)
	}
}

func TestHandleInbound_ResolvedThenReopen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.engine.HandleInbound(ctx, h.inbound("hi", "SM1"))
	_, err := h.engine.Resolve(ctx, "t1", first.ConversationID, audit.Actor{UserID: "agent-1", Role: "agent"})
	require.NoError(t, err)
	before := h.msgs.ForConversation(first.ConversationID)

	second := h.engine.HandleInbound(ctx, h.inbound("one more thing", "SM2"))
	require.NotEqual(t, first.ConversationID, second.ConversationID)
	require.Equal(t, first.ContactID, second.ContactID)
	require.Equal(t, before, h.msgs.ForConversation(first.ConversationID))

	convs := h.convs.ForContact(first.ContactID)
	require.Len(t, convs, 2)
	active := 0
	for _, c := range convs {
		if c.Active() {
			active++
		}
	}
	require.Equal(t, 1, active)
}

func TestHandleInbound_RedeliveryIsDeduplicated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.engine.HandleInbound(ctx, h.inbound("Where is my order?", "SM1"))
	require.Equal(t, OutcomeReplied, first.Outcome)
	again := h.engine.HandleInbound(ctx, h.inbound("Where is my order?", "SM1"))
	require.True(t, again.Acknowledged)
	require.Equal(t, OutcomeDuplicate, again.Outcome)

	require.Len(t, h.msgs.All(), 2)
	require.Len(t, h.transport.Sent(), 1)
	require.Equal(t, int32(1), h.respondCalls.Load())
}

func TestHandleInbound_UnsubscribedContactIsSuppressed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.engine.HandleInbound(ctx, h.inbound("STOP", "SM1"))
	res := h.engine.HandleInbound(ctx, h.inbound("actually, where is my order?", "SM2"))
	require.Equal(t, OutcomeSuppressed, res.Outcome)
	require.NotEmpty(t, res.InboundMessageID)
	require.Equal(t, int32(1), h.classifyCalls.Load())
	require.Zero(t, h.respondCalls.Load())
	require.Len(t, h.transport.Sent(), 1, "only the opt-out confirmation")
}

func TestHandleInbound_PauseBotWhileEscalated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.tenants.Upsert(ctx, tenants.Tenant{ID: "t1", BusinessName: "Acme Bikes", PauseBotOnEscalation: true}, nil)
	require.NoError(t, err)

	first := h.engine.HandleInbound(ctx, h.inbound("hi", "SM1"))
	_, err = h.engine.Escalate(ctx, "t1", first.ConversationID, audit.Actor{UserID: "agent-1"})
	require.NoError(t, err)

	res := h.engine.HandleInbound(ctx, h.inbound("hello??", "SM2"))
	require.Equal(t, OutcomeSuppressed, res.Outcome)
	require.Equal(t, first.ConversationID, res.ConversationID)
	require.Len(t, h.transport.Sent(), 1)
}

func TestHandleInbound_HistoryExcludesCurrentMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var prompts []string
	var mu sync.Mutex
	h.setResponder(func(ctx context.Context, prompt string) (string, error) {
		mu.Lock()
		prompts = append(prompts, prompt)
		mu.Unlock()
		return `{"reply":"ok","escalate":false}`, nil
	})

	h.engine.HandleInbound(ctx, h.inbound("first question", "SM1"))
	h.engine.HandleInbound(ctx, h.inbound("second question", "SM2"))

	require.Len(t, prompts, 2)
	require.NotContains(t, prompts[0], "[customer]")
	require.Contains(t, prompts[1], "[customer] first question")
	require.Contains(t, prompts[1], "[assistant] ok")
	require.NotContains(t, prompts[1], "[customer] second question")
	require.Less(t, strings.Index(prompts[1], "[customer] first question"), strings.Index(prompts[1], "[assistant] ok"))
}

func TestHandleInbound_TransportFailureKeepsHistory(t *testing.T) {
	h := newHarness(t)
	h.transport.Fail(errors.New("carrier down"))

	res := h.engine.HandleInbound(context.Background(), h.inbound("hi", "SM1"))
	require.True(t, res.Acknowledged)
	require.False(t, res.Delivered)

	stored := h.msgs.ForConversation(res.ConversationID)
	require.Len(t, stored, 2)
	require.Equal(t, messages.DeliveryFailed, stored[1].DeliveryStatus)
	require.Contains(t, auditTypes(h.audit), audit.EventTypeDeliveryFailed)
}

type brokenContacts struct{}

func (brokenContacts) FindOrCreate(ctx context.Context, c contacts.Contact) (contacts.Contact, bool, error) {
	return contacts.Contact{}, false, errors.New("connection refused")
}

func (brokenContacts) Get(ctx context.Context, tenantID, id string) (contacts.Contact, error) {
	return contacts.Contact{}, errors.New("connection refused")
}

func (brokenContacts) SetStatus(ctx context.Context, tenantID, id string, status contacts.Status, at time.Time) (contacts.Contact, error) {
	return contacts.Contact{}, errors.New("connection refused")
}

func TestHandleInbound_StoreUnavailableIsAcknowledgedAndAlerted(t *testing.T) {
	h := newHarness(t, withContactsRepo(brokenContacts{}))

	res := h.engine.HandleInbound(context.Background(), h.inbound("hi", "SM1"))
	require.True(t, res.Acknowledged)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Error(t, res.Err)

	alerts := h.alerts.all()
	require.Len(t, alerts, 1)
	require.Equal(t, "identity", alerts[0].Stage)
	require.Zero(t, h.classifyCalls.Load())
	require.Empty(t, h.transport.Sent())
}

func TestHandleInbound_InvalidSenderIsNotAlerted(t *testing.T) {
	h := newHarness(t)
	res := h.engine.HandleInbound(context.Background(), Inbound{TenantID: "t1", From: "anonymous", To: business, Body: "hi"})
	require.True(t, res.Acknowledged)
	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Empty(t, h.alerts.all())
}

func TestHandleInbound_UnknownTenantUsesDefaults(t *testing.T) {
	h := newHarness(t)
	in := h.inbound("hi", "SM1")
	in.TenantID = "t-missing"
	res := h.engine.HandleInbound(context.Background(), in)
	require.Equal(t, OutcomeReplied, res.Outcome)
}

func TestAgentActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := audit.Actor{UserID: "agent-1", Role: "agent", IP: "10.0.0.1"}

	res := h.engine.HandleInbound(ctx, h.inbound("hi", "SM1"))

	msg, err := h.engine.AgentReply(ctx, "t1", res.ConversationID, agent, "  Hi, this is Sam from Acme.  ")
	require.NoError(t, err)
	require.Equal(t, messages.SenderAgent, msg.Sender)
	require.Equal(t, messages.TypeAgentReply, msg.Type)
	require.Equal(t, "Hi, this is Sam from Acme.", msg.Body)
	require.Equal(t, business, h.transport.Sent()[1].From)

	_, err = h.engine.AgentReply(ctx, "t1", res.ConversationID, agent, "   ")
	require.ErrorIs(t, err, ErrEmptyReply)

	transcript, err := h.engine.Transcript(ctx, "t1", res.ConversationID, 0)
	require.NoError(t, err)
	require.Len(t, transcript, 3)

	_, err = h.engine.Transcript(ctx, "t2", res.ConversationID, 0)
	require.ErrorIs(t, err, conversations.ErrNotFound)

	conv, err := h.engine.Resolve(ctx, "t1", res.ConversationID, agent)
	require.NoError(t, err)
	require.Equal(t, conversations.StatusResolved, conv.Status)

	_, err = h.engine.Resolve(ctx, "t1", res.ConversationID, agent)
	require.ErrorIs(t, err, conversations.ErrInvalidTransition)

	_, err = h.engine.AgentReply(ctx, "t1", res.ConversationID, agent, "still there?")
	require.ErrorIs(t, err, ErrConversationClosed)
}

func TestAgentReply_RefusesUnsubscribedContact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.engine.HandleInbound(ctx, h.inbound("hi", "SM1"))
	_, err := h.engine.SetContactStatus(ctx, "t1", res.ContactID, contacts.StatusUnsubscribed, audit.Actor{UserID: "agent-1"})
	require.NoError(t, err)

	_, err = h.engine.AgentReply(ctx, "t1", res.ConversationID, audit.Actor{UserID: "agent-1"}, "hello")
	require.ErrorIs(t, err, ErrContactUnsubscribed)
	require.Contains(t, auditTypes(h.audit), audit.EventTypeContactStatus)
}
