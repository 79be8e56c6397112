package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Priya8975/newsletter-service/internal/domain"
	"github.com/Priya8975/newsletter-service/internal/provider"
)

const (
	testListPL int64 = 1
	testListEN int64 = 2
)

var testListIDs = ListIDs{PL: testListPL, EN: testListEN}

var errFake = errors.New("fake provider failure")

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakePendingStore is an in-memory PendingStore.
type fakePendingStore struct {
	mu       sync.Mutex
	records  map[string]*domain.PendingSubscription
	sweepErr error
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{records: make(map[string]*domain.PendingSubscription)}
}

func (f *fakePendingStore) ReplacePending(_ context.Context, p *domain.PendingSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.records {
		if r.Email == p.Email {
			delete(f.records, id)
		}
	}
	cp := *p
	f.records[p.ID] = &cp
	return nil
}

func (f *fakePendingStore) GetPendingByToken(_ context.Context, token string) (*domain.PendingSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Token == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePendingStore) DeletePending(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

func (f *fakePendingStore) DeleteExpiredPending(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	var n int64
	for id, r := range f.records {
		if r.Expired(now) {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

func (f *fakePendingStore) forEmail(email string) []*domain.PendingSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.PendingSubscription
	for _, r := range f.records {
		if r.Email == email {
			out = append(out, r)
		}
	}
	return out
}

type fakeFeedbackStore struct {
	mu      sync.Mutex
	entries []*domain.UnsubscribeFeedback
	err     error
}

func (f *fakeFeedbackStore) InsertUnsubscribeFeedback(_ context.Context, e *domain.UnsubscribeFeedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

type fakeArticleStore map[string]*domain.Article

func (f fakeArticleStore) GetArticle(_ context.Context, id string) (*domain.Article, error) {
	return f[id], nil
}

type fakeStatsCache struct {
	stats       *domain.SubscriberStats
	invalidated int
}

func (f *fakeStatsCache) GetCachedStats(context.Context) (*domain.SubscriberStats, error) {
	return f.stats, nil
}

func (f *fakeStatsCache) SetCachedStats(_ context.Context, s domain.SubscriberStats, _ time.Duration) error {
	f.stats = &s
	return nil
}

func (f *fakeStatsCache) InvalidateStats(context.Context) error {
	f.stats = nil
	f.invalidated++
	return nil
}

// fakeProvider implements ListProvider and Mailer and records every call.
type fakeProvider struct {
	mu        sync.Mutex
	lists     map[int64]map[string]bool
	nextID    int64
	calls     []string
	failQueue map[string][]error
	failAll   map[string]error

	campaigns map[int64]provider.Campaign
	delivered map[int64][]string
	emails    []provider.Email
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		lists: map[int64]map[string]bool{
			testListPL: {},
			testListEN: {},
		},
		nextID:    100,
		failQueue: make(map[string][]error),
		failAll:   make(map[string]error),
		campaigns: make(map[int64]provider.Campaign),
		delivered: make(map[int64][]string),
	}
}

// failNext queues errors returned by the next calls of op. A nil entry lets
// that call succeed.
func (f *fakeProvider) failNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failQueue[op] = append(f.failQueue[op], errs...)
}

func (f *fakeProvider) failAlways(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll[op] = errFake
}

// record must be called with mu held.
func (f *fakeProvider) record(op string) error {
	f.calls = append(f.calls, op)
	if err := f.failAll[op]; err != nil {
		return err
	}
	if q := f.failQueue[op]; len(q) > 0 {
		f.failQueue[op] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeProvider) seed(listID int64, n int, domainName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.lists[listID][fmt.Sprintf("user%03d@%s", i, domainName)] = true
	}
}

func (f *fakeProvider) UpsertContact(_ context.Context, c provider.UpsertContact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("upsert"); err != nil {
		return err
	}
	for _, id := range c.UnlinkListIDs {
		delete(f.lists[id], c.Email)
	}
	for _, id := range c.ListIDs {
		if f.lists[id] == nil {
			f.lists[id] = make(map[string]bool)
		}
		f.lists[id][c.Email] = true
	}
	return nil
}

func (f *fakeProvider) AddContactsToList(_ context.Context, listID int64, emails []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("add"); err != nil {
		return err
	}
	if len(emails) > ListAddChunkSize {
		return fmt.Errorf("too many contacts: %d", len(emails))
	}
	for _, e := range emails {
		f.lists[listID][e] = true
	}
	return nil
}

func (f *fakeProvider) RemoveContactsFromList(_ context.Context, listID int64, emails []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("remove"); err != nil {
		return err
	}
	removed := 0
	for _, e := range emails {
		if f.lists[listID][e] {
			delete(f.lists[listID], e)
			removed++
		}
	}
	if removed == 0 {
		return errors.New("contact already removed from list")
	}
	return nil
}

func (f *fakeProvider) ListContacts(_ context.Context, listID int64, limit, offset int) ([]provider.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("list_contacts"); err != nil {
		return nil, err
	}
	emails := f.sortedMembers(listID)
	if offset >= len(emails) {
		return []provider.Contact{}, nil
	}
	end := min(offset+limit, len(emails))
	out := make([]provider.Contact, 0, end-offset)
	for _, e := range emails[offset:end] {
		out = append(out, provider.Contact{Email: e, ListIDs: []int64{listID}})
	}
	return out, nil
}

func (f *fakeProvider) GetList(_ context.Context, listID int64) (*provider.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get_list"); err != nil {
		return nil, err
	}
	members, ok := f.lists[listID]
	if !ok {
		return nil, errors.New("list not found")
	}
	return &provider.List{ID: listID, TotalSubscribers: len(members)}, nil
}

func (f *fakeProvider) CreateList(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create_list"); err != nil {
		return 0, err
	}
	f.nextID++
	f.lists[f.nextID] = make(map[string]bool)
	return f.nextID, nil
}

func (f *fakeProvider) DeleteList(_ context.Context, listID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete_list"); err != nil {
		return err
	}
	delete(f.lists, listID)
	return nil
}

func (f *fakeProvider) CreateCampaign(_ context.Context, c provider.Campaign) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create_campaign"); err != nil {
		return 0, err
	}
	f.nextID++
	f.campaigns[f.nextID] = c
	return f.nextID, nil
}

func (f *fakeProvider) SendCampaignNow(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("send_campaign"); err != nil {
		return err
	}
	c, ok := f.campaigns[id]
	if !ok {
		return errors.New("campaign not found")
	}
	for _, listID := range c.ListIDs {
		f.delivered[id] = append(f.delivered[id], f.sortedMembers(listID)...)
	}
	return nil
}

func (f *fakeProvider) SendTransactional(_ context.Context, e provider.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("send_email"); err != nil {
		return err
	}
	f.emails = append(f.emails, e)
	return nil
}

func (f *fakeProvider) sortedMembers(listID int64) []string {
	emails := make([]string, 0, len(f.lists[listID]))
	for e := range f.lists[listID] {
		emails = append(emails, e)
	}
	sort.Strings(emails)
	return emails
}

func (f *fakeProvider) isMember(listID int64, email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists[listID][email]
}

func (f *fakeProvider) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) campaignRecipients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.delivered {
		n += len(r)
	}
	return n
}

func (f *fakeProvider) transactionalRecipients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.emails {
		n += len(e.Recipients)
	}
	return n
}

// lastEmail returns the most recent transactional email.
func (f *fakeProvider) lastEmail(t *testing.T) provider.Email {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.emails) == 0 {
		t.Fatal("no transactional email was sent")
	}
	return f.emails[len(f.emails)-1]
}

// recordingPacer returns immediately and remembers every requested pause.
type recordingPacer struct {
	mu     sync.Mutex
	pauses []time.Duration
	err    error
}

func (p *recordingPacer) Pause(_ context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses = append(p.pauses, d)
	return p.err
}

func (p *recordingPacer) count(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, got := range p.pauses {
		if got == d {
			n++
		}
	}
	return n
}

type recordingReporter struct {
	mu     sync.Mutex
	events []Progress
}

func (r *recordingReporter) ReportProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *recordingReporter) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Stage
	}
	return out
}

// fakeGuard mimics an open or closed circuit breaker.
type fakeGuard struct {
	open      bool
	failures  int
	successes int
}

func (g *fakeGuard) AllowRequest(context.Context, string) (string, bool) {
	if g.open {
		return "open", false
	}
	return "closed", true
}

func (g *fakeGuard) RecordSuccess(context.Context, string) { g.successes++ }
func (g *fakeGuard) RecordFailure(context.Context, string) { g.failures++ }

func testContent(t *testing.T) *Content {
	t.Helper()
	c, err := NewContent("https://example.com/")
	if err != nil {
		t.Fatalf("NewContent: %v", err)
	}
	return c
}
