// Package core holds the domain types shared across the pipeline stages.
package core

import "time"

// Triage categories assigned during Stage 1 classification.
const (
	CategoryHighRelevance = "high_relevance"
	CategoryGeneralInfo   = "general_info"
	CategoryDiscard       = "discard"
)

// Email represents a single message fetched from Gmail.
type Email struct {
	ID       string `json:"id"`        // Gmail message ID
	Subject  string `json:"subject"`   // Subject header
	Sender   string `json:"sender"`    // From header, e.g. `Name <addr@example.com>`
	Date     string `json:"date"`      // Date header as sent
	Snippet  string `json:"snippet"`   // Gmail-provided preview text
	BodyHTML string `json:"body_html"` // Concatenated text/html parts
	BodyText string `json:"body_text"` // Concatenated text/plain parts
}

// TriageResult is the relevance classification for a single email.
type TriageResult struct {
	Email          Email    `json:"email"`
	Category       string   `json:"category"`        // high_relevance, general_info, or discard
	RelevanceScore float64  `json:"relevance_score"` // 0.0 to 1.0
	Topics         []string `json:"topics"`          // matched topic tags
	Reason         string   `json:"reason"`          // one-sentence explanation from the model
}

// ExtractedItem is a fully extracted and condensed newsletter item,
// ready for synthesis.
type ExtractedItem struct {
	SourceName   string   `json:"source_name"`   // human-readable newsletter name
	Topics       []string `json:"topics"`        // topic tags carried over from triage
	Category     string   `json:"category"`      // triage category
	SummaryText  string   `json:"summary_text"`  // condensed content fed to synthesis
	LinkURL      string   `json:"link_url"`      // followed article URL, if any
	FullContent  string   `json:"full_content"`  // combined body + linked article text
	EmailID      string   `json:"email_id"`      // source Gmail message ID
	EmailSubject string   `json:"email_subject"` // source subject line
}

// Briefing is the synthesized output of a pipeline run.
type Briefing struct {
	Subject  string `json:"subject"`  // email subject line
	Markdown string `json:"markdown"` // briefing body as Markdown
	HTML     string `json:"html"`     // rendered email-safe HTML
}

// RunRecord captures one pipeline run for the history store.
type RunRecord struct {
	ID                string    `json:"id"`
	RanAt             time.Time `json:"ran_at"`
	MessagesProcessed int       `json:"messages_processed"`
}
