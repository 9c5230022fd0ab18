package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func TestSenderCandidate(t *testing.T) {
	c, err := senderCandidate(`"Jane Doe" <Jane.Doe@Example.com>`)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", c.Email)
	assert.Equal(t, "Jane Doe", c.FullName)
	assert.Equal(t, "Jane", c.FirstName)
	assert.Equal(t, "Doe", c.LastName)
	assert.Equal(t, models.SourceEmail, c.Source)

	c, err = senderCandidate("bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, c.FullName)

	_, err = senderCandidate("not an address")
	assert.Error(t, err)
}

func TestAttachmentParts(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: "aGk"}},
			{Filename: "CV.PDF", MimeType: "application/pdf"},
			{MimeType: "multipart/alternative", Parts: []*gmail.MessagePart{
				{Filename: "resume.docx"},
				{Filename: "photo.jpg"},
			}},
			{Filename: "notes.txt"},
		},
	}
	var names []string
	for _, p := range attachmentParts(payload) {
		names = append(names, p.Filename)
	}
	assert.Equal(t, []string{"CV.PDF", "resume.docx", "notes.txt"}, names)
	assert.Nil(t, attachmentParts(nil))
}

func TestDecodeBase64URL(t *testing.T) {
	want := []byte("resume?>>text")
	for _, enc := range []string{
		base64.URLEncoding.EncodeToString(want),
		base64.RawURLEncoding.EncodeToString(want),
	} {
		got, err := decodeBase64URL(enc)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := decodeBase64URL("***")
	assert.Error(t, err)
}

func TestIsHistoryExpiredError(t *testing.T) {
	assert.True(t, isHistoryExpiredError(fmt.Errorf("list: %w", &googleapi.Error{Code: 404})))
	assert.False(t, isHistoryExpiredError(&googleapi.Error{Code: 500}))
	assert.False(t, isHistoryExpiredError(errors.New("boom")))
}

func TestInboxRetry(t *testing.T) {
	s := NewInboxService(nil, nil, nil, "", 0)
	var waits []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	ctx := context.Background()

	calls := 0
	err := s.retry(ctx, 3, time.Second, func() error {
		calls++
		if calls < 3 {
			return errors.New("503")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)

	calls = 0
	err = s.retry(ctx, 3, time.Second, func() error {
		calls++
		return &googleapi.Error{Code: 404}
	})
	assert.True(t, isHistoryExpiredError(err))
	assert.Equal(t, 1, calls)

	err = s.retry(ctx, 2, time.Second, func() error { return errors.New("down") })
	assert.ErrorContains(t, err, "failed after 2 attempts")
}

// fakeGmail serves the handful of Gmail endpoints the sync uses.
func fakeGmail(t *testing.T, messages map[string]*gmail.Message, attachments map[string]string) *gmail.Service {
	t.Helper()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		var refs []*gmail.Message
		for id := range messages {
			refs = append(refs, &gmail.Message{Id: id})
		}
		write(w, gmail.ListMessagesResponse{Messages: refs})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		write(w, gmail.Profile{EmailAddress: "jobs@example.com", HistoryId: 100})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/history", func(w http.ResponseWriter, r *http.Request) {
		write(w, gmail.ListHistoryResponse{HistoryId: 105})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		msg, ok := messages[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		write(w, msg)
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}/attachments/{aid}", func(w http.ResponseWriter, r *http.Request) {
		write(w, gmail.MessagePartBody{Data: attachments[r.PathValue("aid")]})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return svc
}

func TestInbox_SyncEmails(t *testing.T) {
	f := newResumeFixture(t)
	ctx := context.Background()

	enc := base64.URLEncoding.EncodeToString
	messages := map[string]*gmail.Message{
		"m1": {Id: "m1", Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{{Name: "From", Value: "Jane Doe <jane.doe@example.com>"}, {Name: "Subject", Value: "Application"}},
			Parts: []*gmail.MessagePart{
				{Filename: "jane.txt", Body: &gmail.MessagePartBody{Data: enc([]byte(sampleResume))}},
				{Filename: "empty.txt", Body: &gmail.MessagePartBody{Data: enc([]byte("  "))}},
			},
		}},
		"m2": {Id: "m2", Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{{Name: "From", Value: "bob@example.com"}},
			Parts: []*gmail.MessagePart{
				{Filename: "bob.txt", Body: &gmail.MessagePartBody{AttachmentId: "a1"}},
			},
		}},
		"m3": {Id: "m3", Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{{Name: "From", Value: "noreply@example.com"}},
		}},
	}
	attachments := map[string]string{"a1": base64.RawURLEncoding.EncodeToString([]byte("Bob Builder\nbob@example.com\nGo, Docker"))}

	s := NewInboxService(f.db, f.svc, fakeGmail(t, messages, attachments), "", time.Minute)
	require.NoError(t, s.SyncEmails(ctx))

	var cands []models.Candidate
	require.NoError(t, f.db.Order("email").Find(&cands).Error)
	require.Len(t, cands, 2)
	assert.Equal(t, "bob@example.com", cands[0].Email)
	assert.Equal(t, models.SourceEmail, cands[1].Source)
	assert.Equal(t, 2, f.queue.Len())

	var processed int64
	require.NoError(t, f.db.Model(&models.ProcessedEmail{}).Count(&processed).Error)
	assert.EqualValues(t, 3, processed)

	state, err := s.loadState(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 100, state.LastHistoryID)

	// incremental run: nothing new, bookmark advances
	require.NoError(t, s.SyncEmails(ctx))
	state, err = s.loadState(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 105, state.LastHistoryID)
	assert.Equal(t, 2, f.queue.Len())
}
