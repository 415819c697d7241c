package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
)

func TestFetchCollection_PersonalFolders(t *testing.T) {
	f := newFixture(t)
	janeID := f.contact("alice", domain.ContactsFolderID, "Jane", "jane@example.com")
	f.contact("alice", domain.ContactsFolderID, "Nobody", "")
	f.contact("alice", domain.ContactsFolderID, "Broken", "not-an-address")
	f.contact("alice", domain.AutoContactsFolderID, "Auto", "auto@example.com")
	work := f.folder("alice", domain.RootFolderID, "Work")
	f.contact("alice", work, "Bob", "bob@example.com")
	_, err := f.store.CreateFolder("alice", domain.RootFolderID, "Inbox", domain.ViewMessage, "")
	require.NoError(t, err)

	res, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, driving.CrawlFlat, res.Mode)
	require.NotNil(t, res.Collection)
	assert.Nil(t, res.Tree)
	assert.Equal(t, []string{"jane@example.com", "bob@example.com"}, emails(res.Collection.Contacts))

	jane := res.Collection.Contacts[0]
	assert.Equal(t, domain.ItemRef("alice", janeID), jane.ID)
	assert.Equal(t, "Jane", jane.Name)
	assert.Equal(t, domain.ContactRef(jane.ID), jane.SourceRef)
	assert.Equal(t, domain.SourcePrimaryStore, jane.SourceType)
	assert.Equal(t, map[string]string{"firstName": "Jane", "lastName": ""}, jane.Properties)

	assert.Empty(t, res.Remaining)
	assert.True(t, res.Existing.IsEmpty())
	assert.Positive(t, res.Elapsed)

	assert.Equal(t, 1, f.metrics.Rejected("no_email"))
	assert.Equal(t, 1, f.metrics.Rejected("invalid_email"))
	assert.Equal(t, 1, f.metrics.Skipped(skipExcluded))
	assert.Equal(t, 1, f.metrics.Skipped(skipIneligible))
	assert.Equal(t, 1, f.metrics.crawls["flat"])
}

func TestFetchTree_MirrorsFolders(t *testing.T) {
	f := newFixture(t)
	f.contact("alice", domain.ContactsFolderID, "Jane", "jane@example.com")
	work, err := f.store.CreateFolder("alice", domain.RootFolderID, "Work", domain.ViewContact, "#00ff00")
	require.NoError(t, err)
	team := f.folder("alice", work, "Team")
	f.contact("alice", team, "Tom", "tom@example.com")

	res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)
	require.NotNil(t, res.Tree)
	assert.Nil(t, res.Collection)

	root := res.Tree
	assert.True(t, root.Hide)
	assert.False(t, root.IsShare)
	require.Equal(t, []string{"Contacts", "Work"}, names(root.Subfolders))

	assert.Equal(t, []string{"jane@example.com"}, emails(root.Subfolders[0].Contacts))
	workNode := root.Subfolders[1]
	assert.Equal(t, "#00ff00", workNode.Color)
	assert.Empty(t, workNode.Contacts)
	require.Equal(t, []string{"Team"}, names(workNode.Subfolders))
	assert.Equal(t, []string{"tom@example.com"}, emails(workNode.Subfolders[0].Contacts))
}

func TestFetch_StartsAtRootID(t *testing.T) {
	f := newFixture(t)
	f.contact("alice", domain.ContactsFolderID, "Jane", "jane@example.com")
	work := f.folder("alice", domain.RootFolderID, "Work")
	f.contact("alice", work, "Bob", "bob@example.com")

	res, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{AccountID: "alice", RootID: work})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob@example.com"}, emails(res.Collection.Contacts))
}

func TestFetch_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{AccountID: "carol"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetch_Groups(t *testing.T) {
	f := newFixture(t)
	f.store.AddDirectoryEntry(domain.DirectoryRecord{
		Key:   "uid=dave",
		Attrs: map[string][]string{"email": {"dave@example.com"}, "givenName": {"Dave"}},
	})
	bobID := f.contact("alice", domain.ContactsFolderID, "Bob", "bob@example.com")
	groupID := f.group("alice", domain.ContactsFolderID, "Team",
		domain.MemberRef{Type: domain.MemberInline, Value: "Jane Doe <jane@example.com>, "},
		domain.MemberRef{Type: domain.MemberContactRef, Value: domain.ItemRef("alice", bobID)},
		domain.MemberRef{Type: domain.MemberDirectoryRef, Value: "uid=dave"},
		domain.MemberRef{Type: domain.MemberContactRef, Value: "alice:9999"},
	)
	f.group("alice", domain.ContactsFolderID, "Ghosts",
		domain.MemberRef{Type: domain.MemberContactRef, Value: "alice:9998"},
	)
	_, err := f.store.AddContact("alice", domain.ContactsFolderID, domain.ContactRecord{
		FileAs: "Garbled", Group: true, Members: "{not json",
	})
	require.NoError(t, err)

	res, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	require.Len(t, res.Collection.Groups, 1)
	g := res.Collection.Groups[0]
	assert.Equal(t, domain.ItemRef("alice", groupID), g.ID)
	assert.Equal(t, "Team", g.Name)
	assert.Equal(t, []string{"jane@example.com", "bob@example.com", "dave@example.com"}, emails(g.Members))
	for _, m := range g.Members {
		assert.True(t, m.GroupMember)
		assert.Equal(t, g.SourceRef(), m.SourceRef)
	}
	assert.Equal(t, "Dave", g.Members[2].Properties["firstName"])
	assert.Equal(t, []domain.MemberRef{{Type: domain.MemberContactRef, Value: "alice:9999"}}, g.FailedDereferences)

	// the member contact is also listed on its own
	assert.Equal(t, []string{"bob@example.com"}, emails(res.Collection.Contacts))

	assert.Equal(t, 1, f.metrics.Rejected("empty_group"))
	assert.Equal(t, 1, f.metrics.Rejected("group_decode"))
}

func TestFetch_ExistingRefs(t *testing.T) {
	f := newFixture(t)
	janeID := f.contact("alice", domain.ContactsFolderID, "Jane", "jane@example.com")
	f.contact("alice", domain.ContactsFolderID, "Bob", "bob@example.com")
	groupID := f.group("alice", domain.ContactsFolderID, "Team",
		domain.MemberRef{Type: domain.MemberInline, Value: "tom@example.com"},
	)

	janeRef := domain.ContactRef(domain.ItemRef("alice", janeID))
	groupRef := domain.GroupRef(domain.ItemRef("alice", groupID))
	res, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{
		AccountID: "alice",
		Existing:  []string{janeRef, "contact:alice:9999", janeRef, groupRef, ""},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bob@example.com"}, emails(res.Collection.Contacts))
	assert.Empty(t, res.Collection.Groups)
	assert.Equal(t, []string{"jane@example.com"}, emails(res.Existing.Contacts))
	require.Len(t, res.Existing.Groups, 1)
	assert.Equal(t, "Team", res.Existing.Groups[0].Name)
	assert.Equal(t, []string{"contact:alice:9999"}, res.Remaining)
}

func TestFetch_LocalShare(t *testing.T) {
	f := newFixture(t)
	bobBook := f.folder("bob", domain.RootFolderID, "Bob Book")
	f.contact("bob", bobBook, "Zed", "zed@example.com")
	f.grant("bob", bobBook, "alice")
	f.mount("alice", domain.RootFolderID, "From Bob", domain.ViewContact, domain.MountTarget{OwnerID: "bob", FolderID: bobBook})
	f.includeShared("alice")

	res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	require.Equal(t, []string{"Contacts", "From Bob"}, names(res.Tree.Subfolders))
	shared := res.Tree.Subfolders[1]
	assert.True(t, shared.IsShare)
	assert.Equal(t, "#ff0000", shared.Color)
	assert.Equal(t, []string{"zed@example.com"}, emails(shared.Contacts))
	assert.False(t, res.Tree.Subfolders[0].IsShare)
}

func TestFetch_SharedGroupCannotRevealPrivateContacts(t *testing.T) {
	f := newFixture(t)
	private := f.folder("bob", domain.RootFolderID, "Private")
	secret := f.contact("bob", private, "Secret", "secret@example.com")
	shared := f.folder("bob", domain.RootFolderID, "Shared")
	secretRef := domain.MemberRef{Type: domain.MemberContactRef, Value: domain.ItemRef("bob", secret)}
	f.group("bob", shared, "Team",
		domain.MemberRef{Type: domain.MemberInline, Value: "tom@example.com"},
		secretRef,
	)
	f.grant("bob", shared, "alice")
	f.mount("alice", domain.RootFolderID, "From Bob", domain.ViewContact, domain.MountTarget{OwnerID: "bob", FolderID: shared})
	f.includeShared("alice")

	res, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	require.Len(t, res.Collection.Groups, 1)
	g := res.Collection.Groups[0]
	assert.Equal(t, []string{"tom@example.com"}, emails(g.Members))
	assert.Equal(t, []domain.MemberRef{secretRef}, g.FailedDereferences)
	assert.NotContains(t, emails(res.Collection.Contacts), "secret@example.com")
}

func TestFetch_SharingDisabled(t *testing.T) {
	f := newFixture(t)
	bobBook := f.folder("bob", domain.RootFolderID, "Bob Book")
	f.contact("bob", bobBook, "Zed", "zed@example.com")
	f.grant("bob", bobBook, "alice")
	f.mount("alice", domain.RootFolderID, "From Bob", domain.ViewContact, domain.MountTarget{OwnerID: "bob", FolderID: bobBook})

	res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Contacts"}, names(res.Tree.Subfolders))
	assert.Equal(t, 1, f.metrics.Skipped(skipSharing))
}

func TestFetch_WholeAccountShareSkipsRootContent(t *testing.T) {
	f := newFixture(t)
	f.contact("bob", domain.RootFolderID, "Root Item", "root@example.com")
	f.contact("bob", domain.ContactsFolderID, "Zed", "zed@example.com")
	f.contact("bob", domain.AutoContactsFolderID, "Auto", "auto@example.com")
	f.grant("bob", domain.RootFolderID, "alice")
	f.mount("alice", domain.RootFolderID, "Bob", domain.ViewUnknown, domain.MountTarget{OwnerID: "bob", FolderID: domain.RootFolderID})
	f.includeShared("alice")

	res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	require.Equal(t, []string{"Contacts", "Bob"}, names(res.Tree.Subfolders))
	bob := res.Tree.Subfolders[1]
	assert.True(t, bob.IsShare)
	assert.Empty(t, bob.Contacts)
	require.Equal(t, []string{"Contacts"}, names(bob.Subfolders))
	assert.True(t, bob.Subfolders[0].IsShare)
	assert.Equal(t, []string{"zed@example.com"}, emails(bob.Subfolders[0].Contacts))
}

func TestFetch_ShareWithoutPermissionIsSkipped(t *testing.T) {
	f := newFixture(t)
	bobBook := f.folder("bob", domain.RootFolderID, "Bob Book")
	f.contact("bob", bobBook, "Zed", "zed@example.com")
	f.mount("alice", domain.RootFolderID, "From Bob", domain.ViewContact, domain.MountTarget{OwnerID: "bob", FolderID: bobBook})
	f.includeShared("alice")

	res, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	assert.Empty(t, res.Collection.Contacts)
	assert.Equal(t, 1, f.metrics.Skipped(skipDenied))
}

func TestFetch_DanglingMountpoints(t *testing.T) {
	f := newFixture(t)
	f.mount("alice", domain.RootFolderID, "Gone", domain.ViewContact, domain.MountTarget{OwnerID: "bob", FolderID: 4242})
	f.mount("alice", domain.RootFolderID, "Nobody", domain.ViewContact, domain.MountTarget{OwnerID: "mallory", FolderID: 300})
	f.includeShared("alice")

	res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Contacts"}, names(res.Tree.Subfolders))
	assert.Equal(t, 1, f.metrics.Skipped(skipMissing))
	assert.Equal(t, 1, f.metrics.Skipped(skipUnknownOwner))
}

func TestFetch_NestedMountpointInLocalShareIsIgnored(t *testing.T) {
	f := newFixture(t)
	bobBook := f.folder("bob", domain.RootFolderID, "Bob Book")
	f.grant("bob", bobBook, "alice")
	aliceBook := f.folder("alice", domain.RootFolderID, "Alice Book")
	f.contact("alice", aliceBook, "Ann", "ann@example.com")
	f.mount("bob", bobBook, "Back To Alice", domain.ViewContact, domain.MountTarget{OwnerID: "alice", FolderID: aliceBook})
	f.mount("alice", domain.RootFolderID, "From Bob", domain.ViewContact, domain.MountTarget{OwnerID: "bob", FolderID: bobBook})
	f.includeShared("alice")

	res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)

	require.Equal(t, []string{"Contacts", "Alice Book", "From Bob"}, names(res.Tree.Subfolders))
	assert.Empty(t, res.Tree.Subfolders[2].Subfolders)
	assert.Equal(t, 1, f.metrics.Skipped(skipNested))
}

func TestFetch_RemoteShare(t *testing.T) {
	f := newFixture(t)
	f.contact("alice", domain.ContactsFolderID, "Jane", "jane@example.com")
	f.mount("alice", domain.RootFolderID, "Carol Book", domain.ViewContact, domain.MountTarget{OwnerID: "carol", FolderID: 300})
	f.includeShared("alice")
	f.setting("alice", domain.SettingIncludeFields, "firstName,email")

	remote := domain.Contact{Email: "carl@example.com", ID: "carol:301", SourceRef: "contact:carol:301"}
	known := domain.Contact{Email: "cat@example.com", ID: "carol:302", SourceRef: "contact:carol:302"}
	f.delegate.result = &domain.PartialResult{
		Collection:         &domain.Collection{Contacts: []domain.Contact{remote}},
		ExistingCollection: domain.Collection{Contacts: []domain.Contact{known}},
		Existing:           []string{"contact:carol:999"},
	}

	res, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{
		AccountID: "alice",
		Existing:  []string{"contact:carol:302", "contact:carol:999"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"jane@example.com", "carl@example.com"}, emails(res.Collection.Contacts))
	assert.Equal(t, []string{"cat@example.com"}, emails(res.Existing.Contacts))
	assert.Equal(t, []string{"contact:carol:999"}, res.Remaining)

	calls := f.delegate.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, remoteServer, calls[0].server)
	assert.Equal(t, "token-alice", calls[0].token)
	assert.Equal(t, domain.DelegationRequest{
		Account:       "carol",
		Item:          300,
		IncludeFields: []string{"firstName", "email"},
		Tree:          false,
		Existing:      []string{"contact:carol:302", "contact:carol:999"},
	}, calls[0].req)
	assert.Equal(t, 1, f.metrics.Delegations(remoteServer+"/success"))
}

func TestFetchTree_RemoteShareKeepsLocalName(t *testing.T) {
	f := newFixture(t)
	f.mount("alice", domain.RootFolderID, "Carol Book", domain.ViewContact, domain.MountTarget{OwnerID: "carol", FolderID: 300})
	f.includeShared("alice")
	f.delegate.result = &domain.PartialResult{Tree: &domain.TreeNode{
		Name:     "Carol's Own Name",
		Color:    "#000000",
		Contacts: []domain.Contact{{Email: "carl@example.com"}},
		Subfolders: []*domain.TreeNode{
			{Name: "Sub", IsShare: true},
		},
	}}

	res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice", AuthToken: "given"})
	require.NoError(t, err)

	require.Equal(t, []string{"Contacts", "Carol Book"}, names(res.Tree.Subfolders))
	node := res.Tree.Subfolders[1]
	assert.True(t, node.IsShare)
	assert.Equal(t, "#ff0000", node.Color)
	assert.Equal(t, []string{"carl@example.com"}, emails(node.Contacts))
	assert.Equal(t, []string{"Sub"}, names(node.Subfolders))

	calls := f.delegate.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "given", calls[0].token)
	assert.True(t, calls[0].req.Tree)
}

func TestFetch_RemoteShareFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture)
		called bool
	}{
		{
			name:   "peer error",
			setup:  func(f *fixture) { f.delegate.err = errors.New("connection refused") },
			called: true,
		},
		{
			name:   "wrong shape",
			setup:  func(f *fixture) { f.delegate.result = &domain.PartialResult{} },
			called: true,
		},
		{
			name: "timeout",
			setup: func(f *fixture) {
				f.delegate.block = true
				f.crawler.SetOptions(CrawlOptions{DelegationTimeout: 20 * time.Millisecond})
			},
			called: true,
		},
		{
			name:  "no token",
			setup: func(f *fixture) { f.tokens.issueErr = errors.New("no secret") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.contact("alice", domain.ContactsFolderID, "Jane", "jane@example.com")
			f.mount("alice", domain.RootFolderID, "Carol Book", domain.ViewContact, domain.MountTarget{OwnerID: "carol", FolderID: 300})
			f.includeShared("alice")
			tt.setup(f)

			res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice"})
			require.NoError(t, err)

			assert.Equal(t, []string{"Contacts"}, names(res.Tree.Subfolders))
			assert.Equal(t, 1, f.metrics.Skipped(skipRemote))
			assert.Equal(t, tt.called, len(f.delegate.Calls()) == 1)
		})
	}
}

func TestFetch_RemoteShareWithoutDelegate(t *testing.T) {
	f := newFixture(t)
	f.mount("alice", domain.RootFolderID, "Carol Book", domain.ViewContact, domain.MountTarget{OwnerID: "carol", FolderID: 300})
	f.includeShared("alice")
	f.crawler = NewCrawler(localServer, f.store, f.store, f.codec, nil, nil, CrawlOptions{})

	res, err := f.contacts().FetchTree(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Contacts"}, names(res.Tree.Subfolders))
}

func TestFetch_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.contact("alice", domain.ContactsFolderID, "Jane", "jane@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.contacts().FetchCollection(ctx, driving.CrawlRequest{AccountID: "alice"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestCrawler_Options(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, localServer, f.crawler.Server())
	assert.Equal(t, CrawlOptions{}, f.crawler.Options())

	opts := CrawlOptions{Parallelism: 2, DelegationTimeout: time.Second, DirectoryAttrs: map[string]string{"firstName": "cn"}}
	f.crawler.SetOptions(opts)
	assert.Equal(t, opts, f.crawler.Options())
}

func TestCrawler_DirectoryAttrsApply(t *testing.T) {
	f := newFixture(t)
	f.store.AddDirectoryEntry(domain.DirectoryRecord{
		Key:   "uid=dave",
		Attrs: map[string][]string{"email": {"dave@example.com"}, "cn": {"Dave D"}, "givenName": {"Dave"}},
	})
	f.group("alice", domain.ContactsFolderID, "Team",
		domain.MemberRef{Type: domain.MemberDirectoryRef, Value: "uid=dave"})
	f.crawler.SetOptions(CrawlOptions{DirectoryAttrs: map[string]string{"firstName": "cn"}})

	res, err := f.contacts().FetchCollection(context.Background(), driving.CrawlRequest{AccountID: "alice"})
	require.NoError(t, err)
	require.Len(t, res.Collection.Groups, 1)
	assert.Equal(t, "Dave D", res.Collection.Groups[0].Members[0].Properties["firstName"])
	assert.Equal(t, "", res.Collection.Groups[0].Members[0].Properties["lastName"])
}
