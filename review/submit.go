package review

import (
	"medintake.com/intake/flow"
	"medintake.com/intake/logger"
	"medintake.com/intake/rules"
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"path"
	"strings"
	"time"
)

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

var (
	ErrConflicts       = errors.New("answers have unresolved conflicts")
	ErrConsentRequired = errors.New("consent is required to submit")
)

// Archiver stores the exported answers of a submitted intake.
type Archiver interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// SubmitSession is what the submitter needs from a session on top of the review data.
type SubmitSession interface {
	Session
	ExportAnswers() (string, error)
	Summary() string
	LogEvent(name string, data map[string]interface{})
}

type Receipt struct {
	SessionID    string    `json:"session_id"`
	TotalAnswers int       `json:"total_answers"`
	SubmittedAt  time.Time `json:"submitted_at"`
	ArchiveKey   string    `json:"archive_key,omitempty"`
	Summary      string    `json:"summary"`
}

type Submitter struct {
	rules    []rules.Rule
	archiver Archiver
	now      func() time.Time
	log      zerolog.Logger
}

// NewSubmitter creates a submitter. The archiver may be nil.
func NewSubmitter(ruleSet []rules.Rule, archiver Archiver) *Submitter {
	return &Submitter{
		rules:    ruleSet,
		archiver: archiver,
		now:      time.Now,
		log:      logger.NewLogger("Submitter"),
	}
}

func ArchiveKey(sessionID string, submittedAt time.Time) string {
	return path.Join(
		"submissions",
		sessionID,
		fmt.Sprintf("%s.intake.csv", submittedAt.UTC().Format(RFC3339Micro)),
	)
}

// Submit finalizes an intake. Conflicts block it regardless of consent.
func (s *Submitter) Submit(ctx context.Context, session SubmitSession, consent bool) (*Receipt, error) {
	report := Build(session, s.rules)
	if len(report.Conflicts) > 0 {
		messages := make([]string, len(report.Conflicts))
		for i, c := range report.Conflicts {
			messages[i] = c.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrConflicts, strings.Join(messages, "; "))
	}
	if !consent {
		return nil, ErrConsentRequired
	}

	now := s.now()
	receipt := &Receipt{
		SessionID:    session.SessionID(),
		TotalAnswers: report.AnsweredCount,
		SubmittedAt:  now,
		Summary:      session.Summary(),
	}

	if s.archiver != nil {
		csv, err := session.ExportAnswers()
		if err != nil {
			return nil, fmt.Errorf("exporting answers: %w", err)
		}
		key := ArchiveKey(receipt.SessionID, now)
		if err := s.archiver.Upload(ctx, key, []byte(csv)); err != nil {
			s.log.Error().Err(err).Str("session_id", receipt.SessionID).Str("key", key).Msg("Could not archive submission")
			return nil, fmt.Errorf("archiving submission: %w", err)
		}
		receipt.ArchiveKey = key
	}

	session.LogEvent(flow.EventFinalSubmit, map[string]interface{}{
		"total_answers": report.AnsweredCount,
		"timestamp":     now.UnixMilli(),
	})
	s.log.Info().
		Str("session_id", receipt.SessionID).
		Int("total_answers", receipt.TotalAnswers).
		Str("archive_key", receipt.ArchiveKey).
		Msg("intake submitted")
	return receipt, nil
}
