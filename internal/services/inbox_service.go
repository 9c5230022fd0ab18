package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/justsurfingit/ats-backend/internal/models"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultInboxQuery = "has:attachment (filename:pdf OR filename:docx OR filename:txt) newer_than:7d"
	gmailUser         = "me"
	syncTimeout       = 5 * time.Minute
)

// InboxService turns resumes emailed to a Gmail inbox into candidates.
type InboxService struct {
	DB       *gorm.DB
	Resumes  *ResumeService
	Gmail    *gmail.Service
	Query    string
	Interval time.Duration

	logger *log.Entry
	sleep  func(context.Context, time.Duration) error
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewInboxService(db *gorm.DB, resumes *ResumeService, client *gmail.Service, query string, interval time.Duration) *InboxService {
	if query == "" {
		query = DefaultInboxQuery
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &InboxService{
		DB:       db,
		Resumes:  resumes,
		Gmail:    client,
		Query:    query,
		Interval: interval,
		logger:   log.WithField("component", "inbox"),
		sleep:    sleepCtx,
	}
}

// StartWatcher syncs once immediately and then on every tick until Stop.
func (s *InboxService) StartWatcher(ctx context.Context) {
	if s.Gmail == nil {
		s.logger.Warn("gmail watcher disabled (no client), check credentials")
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			if err := s.SyncEmails(ctx); err != nil && ctx.Err() == nil {
				s.logger.WithError(err).Error("inbox sync failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	s.logger.WithField("interval", s.Interval).Info("gmail watcher started")
}

// Stop ends the watcher and waits for a running sync to finish.
func (s *InboxService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// SyncEmails runs one sync cycle: full on first run or after the history
// bookmark expires, incremental otherwise.
func (s *InboxService) SyncEmails(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	state, err := s.loadState(ctx)
	if err != nil {
		return err
	}

	var (
		messages     []*gmail.Message
		newHistoryID uint64
	)
	if state.LastHistoryID == 0 {
		s.logger.Info("first run, performing full sync")
		messages, newHistoryID, err = s.performFullSync(ctx)
	} else {
		messages, newHistoryID, err = s.performIncrementalSync(ctx, state.LastHistoryID)
		if err != nil && isHistoryExpiredError(err) {
			s.logger.Warn("history id expired, falling back to full sync")
			messages, newHistoryID, err = s.performFullSync(ctx)
		}
	}
	if err != nil {
		return fmt.Errorf("gmail sync: %w", err)
	}

	ingested := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.ProcessedEmail{}).Where("id = ?", msg.Id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		n, err := s.processMessage(ctx, msg)
		if err != nil {
			// left unmarked so the next cycle retries it
			s.logger.WithError(err).WithField("message_id", msg.Id).Error("failed to process email")
			continue
		}
		ingested += n
		if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ProcessedEmail{ID: msg.Id}).Error; err != nil {
			return err
		}
	}

	if newHistoryID > state.LastHistoryID {
		if err := s.DB.WithContext(ctx).Model(state).Update("last_history_id", newHistoryID).Error; err != nil {
			return err
		}
	}
	s.logger.WithFields(log.Fields{"messages": len(messages), "resumes": ingested, "history_id": newHistoryID}).Info("inbox sync finished")
	return nil
}

func (s *InboxService) loadState(ctx context.Context) (*models.InboxState, error) {
	state := &models.InboxState{Mailbox: gmailUser}
	err := s.DB.WithContext(ctx).Where(models.InboxState{Mailbox: gmailUser}).FirstOrCreate(state).Error
	return state, err
}

// performFullSync lists recent matching messages and anchors the bookmark at the
// mailbox's current history id.
func (s *InboxService) performFullSync(ctx context.Context) ([]*gmail.Message, uint64, error) {
	var refs []*gmail.Message
	err := s.retry(ctx, 3, time.Second, func() error {
		refs = refs[:0]
		return s.Gmail.Users.Messages.List(gmailUser).Q(s.Query).MaxResults(100).
			Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
				refs = append(refs, resp.Messages...)
				return nil
			})
	})
	if err != nil {
		return nil, 0, err
	}

	var profile *gmail.Profile
	err = s.retry(ctx, 3, time.Second, func() error {
		var e error
		profile, e = s.Gmail.Users.GetProfile(gmailUser).Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, 0, err
	}
	return s.expandMessages(ctx, refs), profile.HistoryId, nil
}

// performIncrementalSync asks only for messages added since startID.
func (s *InboxService) performIncrementalSync(ctx context.Context, startID uint64) ([]*gmail.Message, uint64, error) {
	var (
		refs    []*gmail.Message
		latest  uint64
		visited = map[string]bool{}
	)
	err := s.retry(ctx, 3, time.Second, func() error {
		refs, latest = refs[:0], 0
		clear(visited)
		return s.Gmail.Users.History.List(gmailUser).StartHistoryId(startID).HistoryTypes("messageAdded").
			Pages(ctx, func(resp *gmail.ListHistoryResponse) error {
				latest = max(latest, resp.HistoryId)
				for _, h := range resp.History {
					for _, added := range h.MessagesAdded {
						if added.Message != nil && !visited[added.Message.Id] {
							visited[added.Message.Id] = true
							refs = append(refs, added.Message)
						}
					}
				}
				return nil
			})
	})
	if err != nil {
		return nil, 0, err
	}
	return s.expandMessages(ctx, refs), latest, nil
}

// expandMessages fetches full messages. Ones that keep failing are skipped and
// picked up again by the next full sync.
func (s *InboxService) expandMessages(ctx context.Context, refs []*gmail.Message) []*gmail.Message {
	out := make([]*gmail.Message, 0, len(refs))
	for _, ref := range refs {
		var msg *gmail.Message
		err := s.retry(ctx, 2, 500*time.Millisecond, func() error {
			var e error
			msg, e = s.Gmail.Users.Messages.Get(gmailUser, ref.Id).Context(ctx).Do()
			return e
		})
		if err != nil {
			s.logger.WithError(err).WithField("message_id", ref.Id).Warn("could not fetch message")
			continue
		}
		out = append(out, msg)
	}
	return out
}

// processMessage ingests every resume attachment of msg and returns how many
// were queued. Attachments that are not usable resumes are skipped.
func (s *InboxService) processMessage(ctx context.Context, msg *gmail.Message) (int, error) {
	headers := parseHeaders(msg)
	seed, err := senderCandidate(headers["From"])
	logger := s.logger.WithFields(log.Fields{"message_id": msg.Id, "subject": truncateUTF8(headers["Subject"], 60)})
	if err != nil {
		logger.WithError(err).Warn("skipping email with unreadable sender")
		return 0, nil
	}

	parts := attachmentParts(msg.Payload)
	if len(parts) == 0 {
		logger.Debug("no resume attachments")
		return 0, nil
	}

	n := 0
	for _, part := range parts {
		data, err := s.attachmentData(ctx, msg.Id, part)
		if err != nil {
			return n, fmt.Errorf("download %s: %w", part.Filename, err)
		}
		cand := *seed
		r, err := s.Resumes.IngestFromInbox(ctx, &cand, UploadInput{FileName: part.Filename, Data: data})
		if errors.Is(err, ErrInvalidInput) {
			logger.WithError(err).WithField("file", part.Filename).Warn("attachment is not a usable resume")
			continue
		}
		if err != nil {
			return n, err
		}
		n++
		logger.WithFields(log.Fields{"file": part.Filename, "resume_id": r.ID, "candidate_id": r.CandidateID}).Info("resume received by email")
	}
	return n, nil
}

func (s *InboxService) attachmentData(ctx context.Context, messageID string, part *gmail.MessagePart) ([]byte, error) {
	if part.Body == nil {
		return nil, errors.New("attachment has no body")
	}
	encoded := part.Body.Data
	if encoded == "" && part.Body.AttachmentId != "" {
		err := s.retry(ctx, 3, time.Second, func() error {
			body, e := s.Gmail.Users.Messages.Attachments.Get(gmailUser, messageID, part.Body.AttachmentId).Context(ctx).Do()
			if e == nil {
				encoded = body.Data
			}
			return e
		})
		if err != nil {
			return nil, err
		}
	}
	return decodeBase64URL(encoded)
}

// --- HELPERS ---

// retry runs f with exponential backoff. A history-expired 404 fails fast so the
// caller can switch to a full sync.
func (s *InboxService) retry(ctx context.Context, attempts int, wait time.Duration, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		if isHistoryExpiredError(err) || ctx.Err() != nil {
			return err
		}
		if i == attempts-1 {
			break
		}
		s.logger.WithError(err).WithField("retry_in", wait).Warn("gmail api error")
		if serr := s.sleep(ctx, wait); serr != nil {
			return serr
		}
		wait *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

func isHistoryExpiredError(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 404
	}
	return false
}

func parseHeaders(msg *gmail.Message) map[string]string {
	res := make(map[string]string)
	if msg.Payload == nil {
		return res
	}
	for _, h := range msg.Payload.Headers {
		res[h.Name] = h.Value
	}
	return res
}

// senderCandidate builds the candidate seed from a From header.
func senderCandidate(from string) (*models.Candidate, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, err
	}
	c := &models.Candidate{
		Email:    normalizeEmail(addr.Address),
		FullName: strings.TrimSpace(addr.Name),
		Source:   models.SourceEmail,
		Status:   models.CandidateStatusNew,
	}
	c.FirstName, c.LastName = splitName(c.FullName)
	return c, nil
}

var resumeExtensions = map[string]bool{".pdf": true, ".docx": true, ".txt": true}

// attachmentParts walks the MIME tree and returns resume-like attachments.
func attachmentParts(p *gmail.MessagePart) []*gmail.MessagePart {
	if p == nil {
		return nil
	}
	var out []*gmail.MessagePart
	if p.Filename != "" && resumeExtensions[strings.ToLower(filepath.Ext(p.Filename))] {
		out = append(out, p)
	}
	for _, child := range p.Parts {
		out = append(out, attachmentParts(child)...)
	}
	return out
}

// decodeBase64URL accepts Gmail's URL-safe base64 with or without padding.
func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
