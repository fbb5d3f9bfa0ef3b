package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// testClock is a movable clock shared by a test and its use cases.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseTime} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// -----------------------------
// memDB: in-memory repositories + transaction manager
// -----------------------------

type memTx struct{}

// memDB serialises transactions and restores a snapshot when fn fails, so
// tests can assert that rejected operations leave no trace.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	profiles map[string]*model.Profile
	payments map[string]*model.Payment // by reference
	posts    map[string]*model.Post

	txCount int

	// hooks
	saveProfileErr func(p *model.Profile) error
}

func newMemDB() *memDB {
	return &memDB{
		profiles: map[string]*model.Profile{},
		payments: map[string]*model.Payment{},
		posts:    map[string]*model.Post{},
	}
}

func (db *memDB) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	db.txCount++
	snapProfiles, snapPayments, snapPosts := db.snapshot()
	db.mu.Unlock()

	if err := fn(ctx, memTx{}); err != nil {
		db.mu.Lock()
		db.profiles, db.payments, db.posts = snapProfiles, snapPayments, snapPosts
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) snapshot() (map[string]*model.Profile, map[string]*model.Payment, map[string]*model.Post) {
	pr := make(map[string]*model.Profile, len(db.profiles))
	for k, v := range db.profiles {
		pr[k] = cloneProfile(v)
	}
	pa := make(map[string]*model.Payment, len(db.payments))
	for k, v := range db.payments {
		c := *v
		pa[k] = &c
	}
	po := make(map[string]*model.Post, len(db.posts))
	for k, v := range db.posts {
		po[k] = clonePost(v)
	}
	return pr, pa, po
}

func cloneProfile(p *model.Profile) *model.Profile {
	c := *p
	return &c
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	c.MediaURLs = append([]string(nil), p.MediaURLs...)
	return &c
}

func (db *memDB) profile(id string) *model.Profile {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p, ok := db.profiles[id]; ok {
		return cloneProfile(p)
	}
	return nil
}

func (db *memDB) payment(ref string) *model.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p, ok := db.payments[ref]; ok {
		c := *p
		return &c
	}
	return nil
}

func (db *memDB) post(id string) *model.Post {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p, ok := db.posts[id]; ok {
		return clonePost(p)
	}
	return nil
}

func (db *memDB) putProfile(p *model.Profile) {
	db.mu.Lock()
	db.profiles[p.ID] = cloneProfile(p)
	db.mu.Unlock()
}

func (db *memDB) putPayment(p *model.Payment) {
	db.mu.Lock()
	c := *p
	db.payments[p.TransactionReference] = &c
	db.mu.Unlock()
}

func (db *memDB) putPost(p *model.Post) {
	db.mu.Lock()
	db.posts[p.ID] = clonePost(p)
	db.mu.Unlock()
}

func (db *memDB) Profiles() *memProfiles { return &memProfiles{db: db} }
func (db *memDB) Payments() *memPayments { return &memPayments{db: db} }
func (db *memDB) Posts() *memPosts       { return &memPosts{db: db} }

// profiles

type memProfiles struct {
	db           *memDB
	invalidated  []string
	invalidateMu sync.Mutex
}

var (
	_ repository.ProfileRepository  = (*memProfiles)(nil)
	_ repository.ProfileInvalidator = (*memProfiles)(nil)
)

func (r *memProfiles) Save(_ context.Context, _ repository.Tx, p *model.Profile) error {
	if r.db.saveProfileErr != nil {
		if err := r.db.saveProfileErr(p); err != nil {
			return err
		}
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, other := range r.db.profiles {
		if id != p.ID && other.Username == p.Username {
			return domain.ErrAlreadyExists
		}
	}
	r.db.profiles[p.ID] = cloneProfile(p)
	return nil
}

func (r *memProfiles) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Profile, error) {
	if p := r.db.profile(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memProfiles) FindByUsername(_ context.Context, _ repository.Tx, username string) (*model.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.profiles {
		if p.Username == username {
			return cloneProfile(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memProfiles) ListDueForReset(_ context.Context, _ repository.Tx, cutoff time.Time, afterID string, limit int) ([]*model.Profile, error) {
	out := r.list(func(p *model.Profile) bool {
		return p.Tier == model.TierFree && !p.CycleStartedAt.After(cutoff) && p.ID > afterID
	}, 0)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memProfiles) ListLapsed(_ context.Context, _ repository.Tx, now time.Time, limit int) ([]*model.Profile, error) {
	return r.list(func(p *model.Profile) bool {
		return p.Tier != model.TierFree &&
			(p.SubscriptionStatus == model.SubscriptionStatusActive || p.SubscriptionStatus == model.SubscriptionStatusTrial) &&
			p.SubscriptionEndDate != nil && p.SubscriptionEndDate.Before(now)
	}, limit), nil
}

func (r *memProfiles) list(match func(*model.Profile) bool, limit int) []*model.Profile {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Profile
	for _, p := range r.db.profiles {
		if match(p) {
			out = append(out, cloneProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CycleStartedAt.Equal(out[j].CycleStartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CycleStartedAt.Before(out[j].CycleStartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memProfiles) Invalidate(_ context.Context, p *model.Profile) {
	r.invalidateMu.Lock()
	r.invalidated = append(r.invalidated, p.ID)
	r.invalidateMu.Unlock()
}

// payments

type memPayments struct{ db *memDB }

var _ repository.PaymentRepository = (*memPayments)(nil)

func (r *memPayments) Save(_ context.Context, _ repository.Tx, p *model.Payment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.payments[p.TransactionReference]; ok {
		return domain.ErrAlreadyExists
	}
	c := *p
	r.db.payments[p.TransactionReference] = &c
	return nil
}

func (r *memPayments) FindByReference(_ context.Context, _ repository.Tx, reference string) (*model.Payment, error) {
	if p := r.db.payment(reference); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memPayments) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.PaymentStatus, providerTxnID *string, completedAt *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.payments {
		if p.ID != id {
			continue
		}
		p.Status = status
		if providerTxnID != nil {
			p.ProviderTransactionID = providerTxnID
		}
		if completedAt != nil {
			p.CompletedAt = completedAt
		}
		return nil
	}
	return domain.ErrNotFound
}

func (r *memPayments) CancelStalePending(_ context.Context, _ repository.Tx, olderThan time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, p := range r.db.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			p.Status = model.PaymentStatusCancelled
			n++
		}
	}
	return n, nil
}

// posts

type memPosts struct{ db *memDB }

var _ repository.PostRepository = (*memPosts)(nil)

func (r *memPosts) Create(_ context.Context, _ repository.Tx, p *model.Post) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.posts {
		if other.OwnerID == p.OwnerID && other.Slug == p.Slug {
			return domain.ErrAlreadyExists
		}
	}
	r.db.posts[p.ID] = clonePost(p)
	return nil
}

func (r *memPosts) Update(_ context.Context, _ repository.Tx, p *model.Post) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	old, ok := r.db.posts[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	c := clonePost(p)
	c.Views, c.Clicks = old.Views, old.Clicks
	r.db.posts[p.ID] = c
	return nil
}

func (r *memPosts) Delete(_ context.Context, _ repository.Tx, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.posts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.db.posts, id)
	return nil
}

func (r *memPosts) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Post, error) {
	if p := r.db.post(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *memPosts) FindByOwnerAndSlug(_ context.Context, _ repository.Tx, ownerID, slug string) (*model.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.posts {
		if p.OwnerID == ownerID && p.Slug == slug {
			return clonePost(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memPosts) SlugExists(ctx context.Context, tx repository.Tx, ownerID, slug string) (bool, error) {
	_, err := r.FindByOwnerAndSlug(ctx, tx, ownerID, slug)
	return err == nil, nil
}

func (r *memPosts) ListByOwner(_ context.Context, _ repository.Tx, ownerID string) ([]*model.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Post
	for _, p := range r.db.posts {
		if p.OwnerID == ownerID {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memPosts) CountActiveByOwner(_ context.Context, _ repository.Tx, ownerID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, p := range r.db.posts {
		if p.OwnerID == ownerID && p.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *memPosts) IncrementCounter(_ context.Context, _ repository.Tx, id string, kind model.AnalyticsKind) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.posts[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch kind {
	case model.AnalyticsView:
		p.Views++
	case model.AnalyticsClick:
		p.Clicks++
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

func (r *memPosts) ExpireActiveByOwner(_ context.Context, tx repository.Tx, ownerID string, now time.Time) ([]string, error) {
	if tx == nil {
		return nil, domain.ErrInvalidExecContext
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var media []string
	for _, p := range r.db.posts {
		if p.OwnerID != ownerID || !p.IsActive {
			continue
		}
		media = append(media, p.MediaURLs...)
		at := now
		p.IsActive = false
		p.MediaURLs = []string{}
		p.ExpiredAt = &at
		p.UpdatedAt = now
	}
	return media, nil
}

// -----------------------------
// adapter fakes
// -----------------------------

type fakeProvider struct {
	name     model.Provider
	mu       sync.Mutex
	notif    *model.Notification
	parseErr error
	checkErr error
	requests []adapter.CheckoutRequest
}

var _ adapter.PaymentProvider = (*fakeProvider)(nil)

func (f *fakeProvider) Name() model.Provider { return f.name }

func (f *fakeProvider) Checkout(_ context.Context, req adapter.CheckoutRequest) (*model.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	f.requests = append(f.requests, req)
	return &model.Checkout{
		Provider:     f.name,
		Reference:    req.Payment.TransactionReference,
		RedirectPath: "/checkout/" + string(f.name) + "/" + req.Payment.TransactionReference,
	}, nil
}

func (f *fakeProvider) ParseNotification(_ context.Context, _ adapter.WebhookRequest) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	c := *f.notif
	return &c, nil
}

func (f *fakeProvider) setNotification(n model.Notification) {
	f.mu.Lock()
	f.notif = &n
	f.mu.Unlock()
}

type fakeRegistry map[model.Provider]adapter.PaymentProvider

func (r fakeRegistry) Get(name model.Provider) (adapter.PaymentProvider, error) {
	if p, ok := r[name]; ok {
		return p, nil
	}
	return nil, domain.ErrInvalidArgument
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

const cdnBase = "https://cdn.test/media/"

type fakeStorage struct {
	mu         sync.Mutex
	deleted    []string
	deleteErr  func(keys []string) error
	presignErr error
	presigned  []string
}

var _ adapter.ObjectStorage = (*fakeStorage)(nil)

func (s *fakeStorage) PresignPut(_ context.Context, key, _ string, ttl time.Duration) (*adapter.PresignedUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presignErr != nil {
		return nil, s.presignErr
	}
	s.presigned = append(s.presigned, key)
	return &adapter.PresignedUpload{
		UploadURL: "https://upload.test/" + key + "?sig=x",
		PublicURL: cdnBase + key,
		Key:       key,
		ExpiresAt: baseTime.Add(ttl),
	}, nil
}

func (s *fakeStorage) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		if err := s.deleteErr(keys); err != nil {
			return err
		}
	}
	s.deleted = append(s.deleted, keys...)
	return nil
}

func (s *fakeStorage) KeyFromURL(u string) (string, bool) {
	if !strings.HasPrefix(u, cdnBase) {
		return "", false
	}
	key := strings.TrimPrefix(u, cdnBase)
	return key, key != ""
}

func (s *fakeStorage) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.deleted...)
	sort.Strings(out)
	return out
}

func mediaURL(userID, name string) string { return cdnBase + "posts/" + userID + "/" + name }

type fakeLocker struct {
	mu    sync.Mutex
	held  map[string]string
	errOn error
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.errOn != nil {
		return "", l.errOn
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLocked
	}
	l.held[key] = "token-" + key
	return l.held[key], nil
}

func (l *fakeLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *fakeLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

type fakeLimiter struct {
	mu    sync.Mutex
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

// inlineSubmitter runs tasks synchronously so tests can assert their effect.
type inlineSubmitter struct {
	mu     sync.Mutex
	reject error
	errs   []error
}

func (s *inlineSubmitter) Submit(task func(ctx context.Context) error) error {
	if s.reject != nil {
		return s.reject
	}
	err := task(context.Background())
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
	return nil
}

var errBoom = errors.New("boom")

// -----------------------------
// fixtures
// -----------------------------

const (
	sellerID = "2f1c9a44-7b7e-4b7e-9a0e-3c1f5a6d8e01"
	otherID  = "9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a"
)

func freeProfile(id, username string, cycleStart time.Time) *model.Profile {
	return &model.Profile{
		ID:                 id,
		Username:           username,
		DisplayName:        username,
		Tier:               model.TierFree,
		SubscriptionStatus: model.SubscriptionStatusActive,
		CycleStartedAt:     cycleStart,
		CreatedAt:          cycleStart,
		UpdatedAt:          cycleStart,
	}
}

func paidProfile(id, username string, tier model.Tier, end time.Time) *model.Profile {
	p := freeProfile(id, username, baseTime.AddDate(0, -2, 0))
	start := end.AddDate(0, 0, -model.SubscriptionPeriodDays)
	p.Tier = tier
	p.SubscriptionStartDate = &start
	p.SubscriptionEndDate = &end
	p.VerifiedSeller = true
	return p
}
