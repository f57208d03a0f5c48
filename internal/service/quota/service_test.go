package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waflow/waflow/internal/model"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

// fakeAccountRepo implements the quota slice of AccountRepository backed by
// an in-memory counter guarded the same way the SQL update is: the check
// and the increment happen under one lock.
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

func TestConsumeStopsAtLimit(t *testing.T) {
	repo := &fakeAccountRepo{limit: 3}
	svc := NewService(repo, nil)
	accountID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Consume(context.Background(), accountID))
	}

	err := svc.Consume(context.Background(), accountID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrQuotaExceeded))
	assert.Equal(t, 3, repo.used)
}

func TestConsumeConcurrentNeverOvershoots(t *testing.T) {
	repo := &fakeAccountRepo{limit: 50}
	svc := NewService(repo, nil)
	accountID := uuid.New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Consume(context.Background(), accountID); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, granted)
	assert.Equal(t, 50, repo.used)
}

func TestCheckAdvisory(t *testing.T) {
	repo := &fakeAccountRepo{used: 8, limit: 10}
	svc := NewService(repo, nil)
	accountID := uuid.New()

	assert.NoError(t, svc.Check(context.Background(), accountID, 2))

	err := svc.Check(context.Background(), accountID, 3)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrQuotaExceeded))
}

func TestRemainingNeverNegative(t *testing.T) {
	repo := &fakeAccountRepo{used: 12, limit: 10}
	svc := NewService(repo, nil)

	remaining, err := svc.Remaining(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}
