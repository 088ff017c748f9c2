package domain

import "time"

// Meeting sentiment labels derived from the wording of a report.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentMixed    = "mixed"
	SentimentNeutral  = "neutral"
	// SentimentUnknown marks a meeting whose report could not be read.
	SentimentUnknown = "unknown"
)

// Meeting is the latest known state of one 3GPP working-group meeting.
type Meeting struct {
	MeetingID      string   `json:"meeting_id"`
	WorkingGroup   string   `json:"working_group"`
	Date           string   `json:"date,omitempty"`
	Location       string   `json:"location,omitempty"`
	KeyAgreements  []string `json:"key_agreements"`
	TDocReferences []string `json:"tdoc_references"`
	Sentiment      string   `json:"sentiment"`
	ReportURL      string   `json:"report_url,omitempty"`
}

// Standardization is the standards-body view attached to a digest.
type Standardization struct {
	RecentMeetings []Meeting `json:"recent_meetings"`
	// UnavailableGroups lists working groups whose listing could not be fetched.
	UnavailableGroups []string  `json:"unavailable_groups,omitempty"`
	FetchedAt         time.Time `json:"fetched_at"`
}
