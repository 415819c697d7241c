package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/codec"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

const (
	localServer  = "mail1"
	remoteServer = "mail2"
)

// fakeDelegate implements driven.RemoteDelegate for testing.
type fakeDelegate struct {
	mu     sync.Mutex
	calls  []delegateCall
	result *domain.PartialResult
	err    error
	block  bool
}

type delegateCall struct {
	server string
	token  string
	req    domain.DelegationRequest
}

func (f *fakeDelegate) Delegate(
	ctx context.Context,
	serverName, token string,
	req domain.DelegationRequest,
) (*domain.PartialResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, delegateCall{server: serverName, token: token, req: req})
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func (f *fakeDelegate) Calls() []delegateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delegateCall(nil), f.calls...)
}

// fakeMetrics implements driven.CrawlMetrics for testing.
type fakeMetrics struct {
	mu          sync.Mutex
	crawls      map[string]int
	skipped     map[string]int
	rejected    map[string]int
	delegations map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		crawls:      make(map[string]int),
		skipped:     make(map[string]int),
		rejected:    make(map[string]int),
		delegations: make(map[string]int),
	}
}

func (m *fakeMetrics) CrawlCompleted(mode string, _, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crawls[mode]++
}

func (m *fakeMetrics) SubtreeSkipped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[reason]++
}

func (m *fakeMetrics) EntityRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *fakeMetrics) DelegationFinished(server, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegations[server+"/"+outcome]++
}

func (m *fakeMetrics) Skipped(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skipped[reason]
}

func (m *fakeMetrics) Rejected(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[reason]
}

func (m *fakeMetrics) Delegations(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delegations[key]
}

// fakeTokens implements driven.TokenIssuer and driven.TokenVerifier.
// Tokens are "token-<account>".
type fakeTokens struct {
	issueErr error
}

func (f *fakeTokens) Issue(_ context.Context, accountID string) (string, error) {
	if f.issueErr != nil {
		return "", f.issueErr
	}
	return "token-" + accountID, nil
}

func (f *fakeTokens) Verify(_ context.Context, token string) (string, error) {
	var account string
	if _, err := fmt.Sscanf(token, "token-%s", &account); err != nil || account == "" {
		return "", fmt.Errorf("%w: bad token", domain.ErrUnauthorized)
	}
	return account, nil
}

// fixture is a small cluster: alice and bob live on this server, carol on
// a peer.
type fixture struct {
	t        *testing.T
	store    *memory.Store
	codec    *codec.JSONCodec
	delegate *fakeDelegate
	metrics  *fakeMetrics
	tokens   *fakeTokens
	crawler  *Crawler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(localServer)
	store.AddServer(domain.Server{Name: localServer})
	store.AddServer(domain.Server{Name: remoteServer})
	store.AddAccount(domain.Account{ID: "alice", Name: "alice@example.com", Server: localServer})
	store.AddAccount(domain.Account{ID: "bob", Name: "bob@example.com", Server: localServer})
	store.AddAccount(domain.Account{ID: "carol", Name: "carol@example.com", Server: remoteServer})

	f := &fixture{
		t:        t,
		store:    store,
		codec:    codec.NewJSONCodec(),
		delegate: &fakeDelegate{},
		metrics:  newFakeMetrics(),
		tokens:   &fakeTokens{},
	}
	f.crawler = NewCrawler(localServer, store, store, f.codec, f.delegate, f.metrics, CrawlOptions{})
	return f
}

func (f *fixture) contacts() *ContactsService {
	return NewContactsService(f.crawler, f.store, f.tokens)
}

func (f *fixture) remoteFolder() *RemoteFolderService {
	return NewRemoteFolderService(f.crawler, f.tokens)
}

func (f *fixture) folder(account string, parent int, name string) int {
	f.t.Helper()
	id, err := f.store.CreateFolder(account, parent, name, domain.ViewContact, "")
	require.NoError(f.t, err)
	return id
}

func (f *fixture) mount(account string, parent int, name string, view domain.FolderView, target domain.MountTarget) int {
	f.t.Helper()
	id, err := f.store.CreateMountpoint(account, parent, name, view, "#ff0000", target)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) contact(account string, folder int, name, email string) int {
	f.t.Helper()
	fields := map[string]string{"firstName": name}
	if email != "" {
		fields["email"] = email
	}
	id, err := f.store.AddContact(account, folder, domain.ContactRecord{FileAs: name, Fields: fields})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) group(account string, folder int, name string, members ...domain.MemberRef) int {
	f.t.Helper()
	blob, err := f.codec.Encode(members)
	require.NoError(f.t, err)
	id, err := f.store.AddContact(account, folder, domain.ContactRecord{FileAs: name, Group: true, Members: blob})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) grant(account string, folder int, grantee string) {
	f.t.Helper()
	require.NoError(f.t, f.store.Grant(account, folder, grantee))
}

func (f *fixture) setting(account, name, value string) {
	f.t.Helper()
	require.NoError(f.t, f.store.SaveUserSetting(context.Background(), account, name, value))
}

func (f *fixture) includeShared(account string) {
	f.setting(account, domain.SettingIncludeShared, "true")
}

func emails(contacts []domain.Contact) []string {
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.Email)
	}
	return out
}

func names(nodes []*domain.TreeNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}
