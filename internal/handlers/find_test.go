package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/mailtail/internal/maildb"
	"github.com/felo/mailtail/internal/parser"
)

func strptr(s string) *string { return &s }

func newTestServer(t *testing.T) (*maildb.DB, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := maildb.New(logger)
	srv := httptest.NewServer(New(db, logger).Routes())
	t.Cleanup(srv.Close)
	return db, srv
}

func seed(t *testing.T, db *maildb.DB) {
	t.Helper()
	db.InsertMails([]parser.Mail{
		{ID: "AAAAAAAAAA", To: "alice@d.com", Line: strptr("log line alice")},
		{ID: "BBBBBBBBBB", To: "bob@d.com", Line: strptr("log line bob")},
	})
	db.UpdateSubjects([]parser.Mail{
		{ID: "AAAAAAAAAA", To: "alice@d.com", Subject: strptr("Hello World")},
	})
}

// TestFindMailMissingFilter tests that the address filter is required
func TestFindMailMissingFilter(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/find_mail")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestFindMailNotFound tests the empty-result outcome
func TestFindMailNotFound(t *testing.T) {
	db, srv := newTestServer(t)
	seed(t, db)

	resp, err := http.Get(srv.URL + "/find_mail?email_address_filter=ghost@nowhere")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestFindMailFound tests the JSON shape of a successful lookup
func TestFindMailFound(t *testing.T) {
	db, srv := newTestServer(t)
	seed(t, db)

	resp, err := http.Get(srv.URL + "/find_mail?email_address_filter=alice@d.com")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body map[string][]parser.Mail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body, "alice@d.com")
	require.Len(t, body["alice@d.com"], 1)

	m := body["alice@d.com"][0]
	assert.Equal(t, "AAAAAAAAAA", m.ID)
	require.NotNil(t, m.Subject)
	assert.Equal(t, "Hello World", *m.Subject)
	require.NotNil(t, m.Line)
	assert.Equal(t, "log line alice", *m.Line)
	assert.Empty(t, m.To, "recipient is the map key, not part of the record body")
}

// TestFindMailSubjectFilter tests the case-insensitive subject filter
func TestFindMailSubjectFilter(t *testing.T) {
	db, srv := newTestServer(t)
	seed(t, db)

	resp, err := http.Get(srv.URL + "/find_mail?email_address_filter=d.com&subject_filter=hello")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]parser.Mail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "alice@d.com")
	assert.NotContains(t, body, "bob@d.com", "records without a matching subject drop their recipient")
}

// TestFindMailSubjectFilterExcludesAll tests that a filter matching
// nothing yields the not-found outcome
func TestFindMailSubjectFilterExcludesAll(t *testing.T) {
	db, srv := newTestServer(t)
	seed(t, db)

	resp, err := http.Get(srv.URL + "/find_mail?email_address_filter=d.com&subject_filter=nomatch")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
