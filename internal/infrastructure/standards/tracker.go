package standards

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"Sentinel6G/internal/domain"
	"Sentinel6G/internal/fetcher"
	"Sentinel6G/internal/ports"
)

// Fetcher acquires the raw payload of a source.
type Fetcher interface {
	Fetch(ctx context.Context, source domain.Source) fetcher.Outcome
}

// Tracker walks each working-group listing to its newest meetings and reads
// their reports through the fetch orchestrator.
type Tracker struct {
	fetcher  Fetcher
	groups   []domain.Source
	perGroup int
	workers  int
	now      func() time.Time
	logger   *slog.Logger
}

var _ ports.StandardsTracker = (*Tracker)(nil)

// NewTracker wires the orchestrator with the working-group listings.
func NewTracker(f Fetcher, groups []domain.Source, perGroup, workers int, now func() time.Time, log *slog.Logger) *Tracker {
	if perGroup <= 0 {
		perGroup = 1
	}
	if workers <= 0 {
		workers = 2
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Tracker{fetcher: f, groups: groups, perGroup: perGroup, workers: workers, now: now, logger: log}
}

// Recent collects the newest meetings of every group, in group order.
func (t *Tracker) Recent(ctx context.Context) domain.Standardization {
	perGroup := make([][]domain.Meeting, len(t.groups))
	failed := make([]bool, len(t.groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, group := range t.groups {
		g.Go(func() error {
			meetings, err := t.collectGroup(gctx, group)
			if err != nil {
				t.logger.Warn("working group unavailable", "group", group.Name, "error", err)
				failed[i] = true
				return nil
			}
			perGroup[i] = meetings
			return nil
		})
	}
	_ = g.Wait()

	out := domain.Standardization{RecentMeetings: []domain.Meeting{}, FetchedAt: t.now().UTC()}
	for i, group := range t.groups {
		if failed[i] {
			out.UnavailableGroups = append(out.UnavailableGroups, group.Name)
			continue
		}
		out.RecentMeetings = append(out.RecentMeetings, perGroup[i]...)
	}
	t.logger.Info("standardization collected", "meetings", len(out.RecentMeetings), "unavailable_groups", len(out.UnavailableGroups))
	return out
}

func (t *Tracker) collectGroup(ctx context.Context, group domain.Source) ([]domain.Meeting, error) {
	out := t.fetcher.Fetch(ctx, group)
	if err := out.Err(group.Name); err != nil {
		return nil, err
	}
	dirs, err := meetingDirs(out.Payload, group.URL)
	if err != nil {
		return nil, err
	}
	dirs = dirs[:min(len(dirs), t.perGroup)]

	meetings := make([]domain.Meeting, 0, len(dirs))
	for _, dir := range dirs {
		meetings = append(meetings, t.meeting(ctx, group, dir))
	}
	return meetings, nil
}

// meeting reads the report of one meeting. The report usually sits in a
// Report/ subfolder and sometimes in the meeting folder itself; a meeting
// without a readable report is kept with an unknown sentiment.
func (t *Tracker) meeting(ctx context.Context, group domain.Source, dir meetingDir) domain.Meeting {
	m := domain.Meeting{
		MeetingID:      dir.ID,
		WorkingGroup:   group.Name,
		KeyAgreements:  []string{},
		TDocReferences: []string{},
		Sentiment:      domain.SentimentUnknown,
	}
	log := t.logger.With("group", group.Name, "meeting", dir.ID)

	var link string
	for _, listing := range []string{dir.URL + "Report/", dir.URL} {
		out := t.fetcher.Fetch(ctx, t.page(group, listing))
		if !out.OK() {
			log.Debug("meeting listing unavailable", "url", listing, "outcome", out.Kind.String())
			continue
		}
		if l, ok := reportLink(out.Payload, listing); ok {
			link = l
			break
		}
	}
	if link == "" {
		log.Debug("no readable meeting report")
		return m
	}

	out := t.fetcher.Fetch(ctx, t.page(group, link))
	if err := out.Err(group.Name); err != nil {
		log.Warn("meeting report unavailable", "url", link, "error", err)
		return m
	}
	parsed, err := ParseMeetingReport(out.Payload, dir.ID, group.Name)
	if err != nil {
		log.Warn("meeting report unreadable", "url", link, "error", err)
		return m
	}
	parsed.ReportURL = link
	log.Debug("meeting report parsed", "agreements", len(parsed.KeyAgreements), "tdocs", len(parsed.TDocReferences))
	return parsed
}

// page keeps the group name so fetch metrics stay per working group.
func (t *Tracker) page(group domain.Source, url string) domain.Source {
	return domain.Source{Name: group.Name, URL: url, Strategy: group.Strategy, Payload: domain.PayloadPage}
}
