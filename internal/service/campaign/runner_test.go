package campaign

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/service/quota"
	"github.com/waflow/waflow/internal/whatsapp"
	"github.com/waflow/waflow/pkg/messaging"
)

type fakeAccountRepo struct {
	mu    sync.Mutex
	used  int
	limit int
}

func (f *fakeAccountRepo) GetQuota(ctx context.Context, id uuid.UUID) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used, f.limit, nil
}

func (f *fakeAccountRepo) ConsumeQuota(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used >= f.limit {
		return false, nil
	}
	f.used++
	return true, nil
}

func (f *fakeAccountRepo) ReleaseQuota(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used > 0 {
		f.used--
	}
	return nil
}

func (f *fakeAccountRepo) Create(ctx context.Context, a *model.Account) error { return nil }
func (f *fakeAccountRepo) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return nil, nil
}
func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return nil, nil
}
func (f *fakeAccountRepo) Update(ctx context.Context, a *model.Account) error { return nil }
func (f *fakeAccountRepo) GetWhatsAppConfig(ctx context.Context, id uuid.UUID) (*model.WhatsAppConfig, error) {
	return nil, nil
}
func (f *fakeAccountRepo) SaveWhatsAppConfig(ctx context.Context, c *model.WhatsAppConfig) error {
	return nil
}
func (f *fakeAccountRepo) GetAccountIDByPhoneNumberID(ctx context.Context, p string) (uuid.UUID, error) {
	return uuid.Nil, nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[uuid.UUID]*model.Contact
}

func newFakeContactRepo(contacts ...*model.Contact) *fakeContactRepo {
	repo := &fakeContactRepo{contacts: map[uuid.UUID]*model.Contact{}}
	for _, c := range contacts {
		repo.contacts[c.ID] = c
	}
	return repo
}

func (f *fakeContactRepo) ListSendableByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Contact
	for _, id := range ids {
		if c, ok := f.contacts[id]; ok && c.Sendable() {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeContactRepo) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact not found")
	}
	copied := *c
	return &copied, nil
}

func (f *fakeContactRepo) IncrementMessageStats(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[id]; ok {
		c.MessageCount++
	}
	return nil
}

func (f *fakeContactRepo) SetUnsubscribed(ctx context.Context, id uuid.UUID, unsubscribed bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[id]; ok {
		c.IsUnsubscribed = unsubscribed
	}
	return nil
}

func (f *fakeContactRepo) Create(ctx context.Context, c *model.Contact) error { return nil }
func (f *fakeContactRepo) GetByNormalizedPhone(ctx context.Context, accountID uuid.UUID, n string) (*model.Contact, error) {
	return nil, fmt.Errorf("not found")
}
func (f *fakeContactRepo) List(ctx context.Context, accountID uuid.UUID, filters *model.ContactFilters) ([]*model.Contact, error) {
	return nil, nil
}
func (f *fakeContactRepo) Update(ctx context.Context, c *model.Contact) error        { return nil }
func (f *fakeContactRepo) Delete(ctx context.Context, accountID, id uuid.UUID) error { return nil }

type fakeCampaignRepo struct {
	mu     sync.Mutex
	status model.CampaignStatus
	stats  model.CampaignStats
	ended  bool
}

func (f *fakeCampaignRepo) GetStatus(ctx context.Context, id uuid.UUID) (model.CampaignStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeCampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	return nil
}

func (f *fakeCampaignRepo) MarkRunning(ctx context.Context, id uuid.UUID, start time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = model.CampaignStatusRunning
	return nil
}

func (f *fakeCampaignRepo) MarkCompleted(ctx context.Context, id uuid.UUID, end time.Time, stats model.CampaignStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = model.CampaignStatusCompleted
	f.stats.MessagesSent = stats.MessagesSent
	f.stats.MessagesFailed = stats.MessagesFailed
	f.stats.MessagesSkipped = stats.MessagesSkipped
	f.ended = true
	return nil
}

func (f *fakeCampaignRepo) UpdateStats(ctx context.Context, id uuid.UUID, stats model.CampaignStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.MessagesSent = stats.MessagesSent
	f.stats.MessagesFailed = stats.MessagesFailed
	f.stats.MessagesSkipped = stats.MessagesSkipped
	return nil
}

func (f *fakeCampaignRepo) Create(ctx context.Context, c *model.Campaign) error { return nil }
func (f *fakeCampaignRepo) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Campaign, error) {
	return nil, nil
}
func (f *fakeCampaignRepo) List(ctx context.Context, accountID uuid.UUID) ([]*model.Campaign, error) {
	return nil, nil
}
func (f *fakeCampaignRepo) Update(ctx context.Context, c *model.Campaign) error       { return nil }
func (f *fakeCampaignRepo) Delete(ctx context.Context, accountID, id uuid.UUID) error { return nil }
func (f *fakeCampaignRepo) IncrementDeliveryStat(ctx context.Context, id uuid.UUID, s model.MessageStatus) error {
	return nil
}
func (f *fakeCampaignRepo) GetContactIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeCampaignRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	return nil, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*model.Message
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	copied := *m
	f.messages = append(f.messages, &copied)
	return nil
}

func (f *fakeMessageRepo) MarkSent(ctx context.Context, id uuid.UUID, whatsappID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			m.Status = model.MessageStatusSent
			m.WhatsAppMessageID = whatsappID
			m.SentDate = &at
		}
	}
	return nil
}

func (f *fakeMessageRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id {
			m.Status = model.MessageStatusFailed
			m.FailureReason = reason
			m.ErrorMessage = errMsg
		}
	}
	return nil
}

func (f *fakeMessageRepo) byStatus(status model.MessageStatus) []*model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Message
	for _, m := range f.messages {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessageRepo) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Message, error) {
	return nil, nil
}
func (f *fakeMessageRepo) GetByWhatsAppID(ctx context.Context, id string) (*model.Message, error) {
	return nil, fmt.Errorf("not found")
}
func (f *fakeMessageRepo) List(ctx context.Context, accountID uuid.UUID, filters *model.MessageFilters) ([]*model.Message, error) {
	return nil, nil
}
func (f *fakeMessageRepo) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, s model.MessageStatus, at time.Time, r, e string) error {
	return nil
}
func (f *fakeMessageRepo) AppendWebhookEvent(ctx context.Context, id uuid.UUID, e model.WebhookEvent) error {
	return nil
}
func (f *fakeMessageRepo) ExistsInbound(ctx context.Context, id string) (bool, error) {
	return false, nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls int
	// failFor holds normalized phone numbers whose dispatch should fail.
	failFor map[string]bool
}

func (f *fakeDispatcher) SendTemplateMessage(ctx context.Context, creds whatsapp.Credentials, req whatsapp.TemplateSendRequest) (*whatsapp.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFor[whatsapp.NormalizePhone(req.PhoneNumber)] {
		return nil, fmt.Errorf("provider rejected recipient")
	}
	return &whatsapp.SendResponse{MessageID: fmt.Sprintf("wamid.%d", f.calls)}, nil
}

func activeContact(accountID uuid.UUID, phone string) *model.Contact {
	return &model.Contact{
		ID:                    uuid.New(),
		AccountID:             accountID,
		PhoneNumber:           phone,
		NormalizedPhoneNumber: whatsapp.NormalizePhone(phone),
		Status:                model.ContactStatusActive,
	}
}

func testTemplate(accountID uuid.UUID) *model.Template {
	return &model.Template{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      "order_update",
		Language:  "en_US",
		Status:    model.TemplateStatusApproved,
		Components: model.TemplateComponents{
			{Type: "BODY", Text: "Hi {{1}}, your order {{2}} shipped"},
		},
	}
}

func testCampaign(accountID uuid.UUID, templateID uuid.UUID, contactIDs []uuid.UUID) *model.Campaign {
	return &model.Campaign{
		ID:             uuid.New(),
		AccountID:      accountID,
		Name:           "launch",
		TemplateID:     templateID,
		Status:         model.CampaignStatusDraft,
		ContactIDs:     contactIDs,
		BodyParameters: []string{"Alice", "A100"},
		Settings: model.CampaignSettings{
			BatchSize:            50,
			DelayBetweenMessages: 0,
		},
	}
}

func runFixture(accounts *fakeAccountRepo, contacts *fakeContactRepo, campaigns *fakeCampaignRepo, messages *fakeMessageRepo, dispatch *fakeDispatcher) *Runner {
	quotaSvc := quota.NewService(accounts, nil)
	return NewRunner(campaigns, contacts, messages, quotaSvc, dispatch, nil, nil, nil, zerolog.Nop())
}

func TestRunPausesOnQuotaExhaustion(t *testing.T) {
	accountID := uuid.New()
	c1 := activeContact(accountID, "15550000001")
	c2 := activeContact(accountID, "15550000002")
	c3 := activeContact(accountID, "15550000003")

	accounts := &fakeAccountRepo{limit: 2}
	contacts := newFakeContactRepo(c1, c2, c3)
	campaigns := &fakeCampaignRepo{}
	messages := &fakeMessageRepo{}
	dispatch := &fakeDispatcher{}

	template := testTemplate(accountID)
	campaign := testCampaign(accountID, template.ID, []uuid.UUID{c1.ID, c2.ID, c3.ID})

	runner := runFixture(accounts, contacts, campaigns, messages, dispatch)
	require.NoError(t, runner.Run(context.Background(), campaign, template, whatsapp.Credentials{}))

	assert.Equal(t, model.CampaignStatusPaused, campaigns.status)
	assert.Equal(t, 2, campaigns.stats.MessagesSent)
	assert.Equal(t, 1, campaigns.stats.MessagesSkipped)
	assert.Equal(t, 2, accounts.used)
	// The third contact never got a message record.
	assert.Len(t, messages.messages, 2)
	assert.Len(t, messages.byStatus(model.MessageStatusSent), 2)
}

func TestRunCompletesAndStatsAddUp(t *testing.T) {
	accountID := uuid.New()
	c1 := activeContact(accountID, "15550000001")
	c2 := activeContact(accountID, "15550000002")
	c3 := activeContact(accountID, "15550000003")
	c4 := activeContact(accountID, "15550000004")

	accounts := &fakeAccountRepo{limit: 100}
	contacts := newFakeContactRepo(c1, c2, c3, c4)
	campaigns := &fakeCampaignRepo{}
	messages := &fakeMessageRepo{}
	dispatch := &fakeDispatcher{failFor: map[string]bool{c3.NormalizedPhoneNumber: true}}

	template := testTemplate(accountID)
	campaign := testCampaign(accountID, template.ID, []uuid.UUID{c1.ID, c2.ID, c3.ID, c4.ID})
	campaign.Settings.BatchSize = 2

	runner := runFixture(accounts, contacts, campaigns, messages, dispatch)
	require.NoError(t, runner.Run(context.Background(), campaign, template, whatsapp.Credentials{}))

	assert.Equal(t, model.CampaignStatusCompleted, campaigns.status)
	assert.Equal(t, 3, campaigns.stats.MessagesSent)
	assert.Equal(t, 1, campaigns.stats.MessagesFailed)
	assert.Equal(t, 0, campaigns.stats.MessagesSkipped)
	total := campaigns.stats.MessagesSent + campaigns.stats.MessagesFailed + campaigns.stats.MessagesSkipped
	assert.Equal(t, len(campaign.ContactIDs), total)
	// A failed dispatch returns its claimed quota unit.
	assert.Equal(t, 3, accounts.used)
}

func TestRunSkipsUnsubscribedWithoutMessage(t *testing.T) {
	accountID := uuid.New()
	c1 := activeContact(accountID, "15550000001")
	c2 := activeContact(accountID, "15550000002")
	c2.IsUnsubscribed = true

	accounts := &fakeAccountRepo{limit: 100}
	contacts := newFakeContactRepo(c1, c2)
	campaigns := &fakeCampaignRepo{}
	messages := &fakeMessageRepo{}
	dispatch := &fakeDispatcher{}

	template := testTemplate(accountID)
	campaign := testCampaign(accountID, template.ID, []uuid.UUID{c1.ID, c2.ID})

	runner := runFixture(accounts, contacts, campaigns, messages, dispatch)
	require.NoError(t, runner.Run(context.Background(), campaign, template, whatsapp.Credentials{}))

	assert.Equal(t, model.CampaignStatusCompleted, campaigns.status)
	assert.Equal(t, 1, campaigns.stats.MessagesSent)
	assert.Equal(t, 1, campaigns.stats.MessagesSkipped)
	assert.Len(t, messages.messages, 1)
	assert.Equal(t, c1.ID, messages.messages[0].ContactID)
}

func TestRunStopsWhenCancelledExternally(t *testing.T) {
	accountID := uuid.New()
	c1 := activeContact(accountID, "15550000001")
	c2 := activeContact(accountID, "15550000002")

	accounts := &fakeAccountRepo{limit: 100}
	contacts := newFakeContactRepo(c1, c2)
	campaigns := &cancelledCampaignRepo{fakeCampaignRepo: &fakeCampaignRepo{}}
	messages := &fakeMessageRepo{}
	dispatch := &fakeDispatcher{}

	template := testTemplate(accountID)
	campaign := testCampaign(accountID, template.ID, []uuid.UUID{c1.ID, c2.ID})

	quotaSvc := quota.NewService(accounts, nil)
	runner := NewRunner(campaigns, contacts, messages, quotaSvc, dispatch, nil, nil, nil, zerolog.Nop())

	require.NoError(t, runner.Run(context.Background(), campaign, template, whatsapp.Credentials{}))

	assert.Empty(t, messages.messages)
	assert.Equal(t, 0, dispatch.calls)
	assert.Equal(t, 0, accounts.used)
}

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]interface{}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][]interface{}{}}
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], message)
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBroker) Close() error { return nil }

func (f *fakeBroker) events(channel string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[channel]
}

func TestRunPublishesLifecycleEvent(t *testing.T) {
	accountID := uuid.New()
	c1 := activeContact(accountID, "15550000001")

	accounts := &fakeAccountRepo{limit: 100}
	contacts := newFakeContactRepo(c1)
	campaigns := &fakeCampaignRepo{}
	messages := &fakeMessageRepo{}
	dispatch := &fakeDispatcher{}
	broker := newFakeBroker()

	template := testTemplate(accountID)
	campaign := testCampaign(accountID, template.ID, []uuid.UUID{c1.ID})

	quotaSvc := quota.NewService(accounts, nil)
	runner := NewRunner(campaigns, contacts, messages, quotaSvc, dispatch, broker, nil, nil, zerolog.Nop())
	require.NoError(t, runner.Run(context.Background(), campaign, template, whatsapp.Credentials{}))

	lifecycle := broker.events(messaging.ChannelCampaignLifecycle)
	require.Len(t, lifecycle, 1)
	event := lifecycle[0].(messaging.CampaignLifecycleEvent)
	assert.Equal(t, string(model.CampaignStatusCompleted), event.Status)
	assert.Equal(t, 1, event.Sent)
	assert.NotEmpty(t, broker.events(messaging.ChannelCampaignProgress))
}

func TestRunQuotaPauseLifecycleReason(t *testing.T) {
	accountID := uuid.New()
	c1 := activeContact(accountID, "15550000001")
	c2 := activeContact(accountID, "15550000002")

	accounts := &fakeAccountRepo{limit: 1}
	contacts := newFakeContactRepo(c1, c2)
	campaigns := &fakeCampaignRepo{}
	messages := &fakeMessageRepo{}
	dispatch := &fakeDispatcher{}
	broker := newFakeBroker()

	template := testTemplate(accountID)
	campaign := testCampaign(accountID, template.ID, []uuid.UUID{c1.ID, c2.ID})

	quotaSvc := quota.NewService(accounts, nil)
	runner := NewRunner(campaigns, contacts, messages, quotaSvc, dispatch, broker, nil, nil, zerolog.Nop())
	require.NoError(t, runner.Run(context.Background(), campaign, template, whatsapp.Credentials{}))

	lifecycle := broker.events(messaging.ChannelCampaignLifecycle)
	require.Len(t, lifecycle, 1)
	event := lifecycle[0].(messaging.CampaignLifecycleEvent)
	assert.Equal(t, string(model.CampaignStatusPaused), event.Status)
	assert.Equal(t, "quota_exhausted", event.Reason)
}

// cancelledCampaignRepo reports cancelled on every status poll regardless
// of MarkRunning, modelling an operator cancel racing the run start.
type cancelledCampaignRepo struct {
	*fakeCampaignRepo
}

func (f *cancelledCampaignRepo) GetStatus(ctx context.Context, id uuid.UUID) (model.CampaignStatus, error) {
	return model.CampaignStatusCancelled, nil
}
