package cli

import (
	"bytes"
	"context"
	"errors"

	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
)

// mockContactsService implements driving.ContactsService for testing.
type mockContactsService struct {
	result  *driving.CrawlResult
	err     error
	lastReq driving.CrawlRequest
	mode    driving.CrawlMode
}

func (m *mockContactsService) FetchCollection(_ context.Context, req driving.CrawlRequest) (*driving.CrawlResult, error) {
	m.lastReq = req
	m.mode = driving.CrawlFlat
	return m.result, m.err
}

func (m *mockContactsService) FetchTree(_ context.Context, req driving.CrawlRequest) (*driving.CrawlResult, error) {
	m.lastReq = req
	m.mode = driving.CrawlTree
	return m.result, m.err
}

// mockTokenIssuer implements driven.TokenIssuer for testing.
type mockTokenIssuer struct {
	token string
	err   error
}

func (m *mockTokenIssuer) Issue(_ context.Context, accountID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if accountID == "" {
		return "", errors.New("missing account")
	}
	return m.token, nil
}

// setupServices installs s for one test and restores the previous services.
func setupServices(s Services) func() {
	old := Services{
		Contacts:     contactsService,
		RemoteFolder: remoteFolderService,
		Settings:     settingsStore,
		Tokens:       tokenIssuer,
		Verifier:     tokenVerifier,
		Metrics:      metricsHandler,
		Listen:       listenAddr,
		Watch:        configWatcher,
		Reload:       configReloader,
	}
	SetServices(s)
	return func() { SetServices(old) }
}

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
