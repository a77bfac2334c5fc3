package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"dependatrack/internal/client/gharchive"
	"dependatrack/internal/dependabot"
	"dependatrack/internal/models"
	"dependatrack/internal/repository"
)

const maxErrorMessageLen = 5000

// Importer pulls one archive hour, extracts every Dependabot pull
// request event from it, and records the outcome in the import ledger.
type Importer struct {
	Store      repository.Store
	Archive    *gharchive.Client
	Metadata   *MetadataService
	Advisories *AdvisoryService
	Logger     *zap.Logger

	// Lag keeps the scheduled job behind the live edge; CatchupHours is
	// how far back it looks for hours that never got a ledger row.
	Lag          time.Duration
	CatchupHours int
	RetryWindow  time.Duration

	hostID uint64
}

type ImportResult struct {
	Filename           string `json:"filename"`
	Skipped            bool   `json:"skipped"`
	NotFound           bool   `json:"not_found"`
	DependabotCount    int    `json:"dependabot_count"`
	PRCount            int    `json:"pr_count"`
	CommentCount       int    `json:"comment_count"`
	ReviewCount        int    `json:"review_count"`
	ReviewCommentCount int    `json:"review_comment_count"`
	ReviewThreadCount  int    `json:"review_thread_count"`
	CreatedCount       int    `json:"created_count"`
	UpdatedCount       int    `json:"updated_count"`
}

// hourStats tallies one archive hour. dependabot counts pull request
// events only; comment and review activity has its own counters.
type hourStats struct {
	dependabot    int
	pr            int
	comment       int
	review        int
	reviewComment int
	reviewThread  int
	created       int
	updated       int

	packageIDs map[uint64]bool
	links      int
}

func newHourStats() *hourStats {
	return &hourStats{packageIDs: map[uint64]bool{}}
}

var prActions = map[string]bool{
	"opened":      true,
	"closed":      true,
	"synchronize": true,
	"reopened":    true,
	"edited":      true,
}

// ImportHour imports one UTC hour. A previously successful hour is
// skipped; an hour the archive has not published yet leaves no ledger
// row so the catch-up loop will come back to it.
func (s *Importer) ImportHour(ctx context.Context, hour time.Time) (ImportResult, error) {
	return s.importHour(ctx, hour, false)
}

// Retry re-imports an hour regardless of its current ledger state. The
// row is overwritten with the fresh outcome; here a missing archive
// hour does count as a failure.
func (s *Importer) Retry(ctx context.Context, filename string) (ImportResult, error) {
	hour, err := models.HourForFilename(filename)
	if err != nil {
		return ImportResult{Filename: filename}, err
	}
	return s.importHour(ctx, hour, true)
}

func (s *Importer) importHour(ctx context.Context, hour time.Time, force bool) (ImportResult, error) {
	filename := models.FilenameForHour(hour)
	result := ImportResult{Filename: filename}

	if !force {
		done, err := s.Store.SuccessfulImportExists(ctx, filename)
		if err != nil {
			return result, err
		}
		if done {
			result.Skipped = true
			return result, nil
		}
	}

	s.Logger.Info("importing archive hour", zap.String("filename", filename))
	started := time.Now()

	reader, err := s.Archive.Fetch(ctx, hour)
	if errors.Is(err, gharchive.ErrNotFound) {
		result.NotFound = true
		if !force {
			// Not published yet. Leave no trace so a later attempt is not
			// mistaken for a retry.
			return result, nil
		}
		recordErr := s.recordImport(ctx, filename, newHourStats(), err)
		if recordErr != nil {
			return result, recordErr
		}
		return result, err
	}
	if err != nil {
		if recordErr := s.recordImport(ctx, filename, newHourStats(), err); recordErr != nil {
			return result, recordErr
		}
		return result, err
	}

	stats, procErr := s.processArchive(ctx, reader)
	reader.Close()

	if err := s.recordImport(ctx, filename, stats, procErr); err != nil {
		return result, err
	}
	fillResult(&result, stats)
	if procErr != nil {
		return result, procErr
	}

	if err := s.refreshCounters(ctx, stats); err != nil {
		return result, err
	}

	s.Logger.Info("archive hour imported",
		zap.String("filename", filename),
		zap.Int("dependabot_count", stats.dependabot),
		zap.Int("created_count", stats.created),
		zap.Int("updated_count", stats.updated),
		zap.Duration("elapsed", time.Since(started)))
	return result, nil
}

// ImportRange imports every hour from `from` through `to` inclusive.
// One failing hour does not stop the rest.
func (s *Importer) ImportRange(ctx context.Context, from, to time.Time) ([]ImportResult, error) {
	from = from.UTC().Truncate(time.Hour)
	to = to.UTC().Truncate(time.Hour)
	var results []ImportResult
	var firstErr error
	for hour := from; !hour.After(to); hour = hour.Add(time.Hour) {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res, err := s.ImportHour(ctx, hour)
		results = append(results, res)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// RunScheduled is the hourly cron entrypoint. It imports the newest
// eligible hour plus any recent hour that never got a ledger row.
// Previously failed hours are the retry job's concern, not this one's.
func (s *Importer) RunScheduled(ctx context.Context) error {
	lag := s.Lag
	if lag <= 0 {
		lag = 2 * time.Hour
	}
	catchup := s.CatchupHours
	if catchup <= 0 {
		catchup = 24
	}
	newest := time.Now().UTC().Add(-lag).Truncate(time.Hour)
	for i := catchup - 1; i >= 0; i-- {
		hour := newest.Add(-time.Duration(i) * time.Hour)
		exists, err := s.Store.ImportExists(ctx, models.FilenameForHour(hour))
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.ImportHour(ctx, hour); err != nil {
			s.Logger.Warn("scheduled import failed",
				zap.String("filename", models.FilenameForHour(hour)),
				zap.Error(err))
		}
	}
	return nil
}

// RetryFailed re-imports every failed hour inside the retry window.
func (s *Importer) RetryFailed(ctx context.Context) error {
	window := s.RetryWindow
	if window <= 0 {
		window = 48 * time.Hour
	}
	failed, err := s.Store.ListFailedImportsSince(ctx, time.Now().UTC().Add(-window))
	if err != nil {
		return err
	}
	for _, imp := range failed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.Retry(ctx, imp.Filename); err != nil {
			s.Logger.Warn("retry failed",
				zap.String("filename", imp.Filename),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Importer) processArchive(ctx context.Context, reader *gharchive.ArchiveReader) (*hourStats, error) {
	stats := newHourStats()
	needle := []byte("dependabot")
	reviewNeedle := []byte("PullRequestReview")
	for {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		line, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read archive stream: %w", err)
		}
		// Cheap pre-filter: PR and comment events from Dependabot always
		// carry the login somewhere in the raw line. Review events may
		// not (the bot is only known from the stored pull request), so
		// they pass through on their event type instead.
		if !bytes.Contains(line, needle) && !bytes.Contains(line, reviewNeedle) {
			continue
		}
		var event gharchive.Event
		if err := json.Unmarshal(line, &event); err != nil {
			s.Logger.Debug("skipping malformed event line", zap.Error(err))
			continue
		}
		if err := s.handleEvent(ctx, &event, stats); err != nil {
			return stats, err
		}
	}
}

func (s *Importer) handleEvent(ctx context.Context, event *gharchive.Event, stats *hourStats) error {
	switch event.Type {
	case gharchive.TypePullRequest:
		return s.handlePullRequest(ctx, event, stats)
	case gharchive.TypeIssueComment:
		return s.handleIssueComment(ctx, event, stats)
	case gharchive.TypePullRequestReview,
		gharchive.TypePullRequestReviewComment,
		gharchive.TypePullRequestReviewThread:
		return s.handleReview(ctx, event, stats)
	default:
		return nil
	}
}

func (s *Importer) handlePullRequest(ctx context.Context, event *gharchive.Event, stats *hourStats) error {
	if event.Actor == nil || !dependabot.IsLogin(event.Actor.Login) {
		return nil
	}
	var payload gharchive.PullRequestPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.PullRequest == nil {
		return nil
	}
	if !prActions[payload.Action] {
		return nil
	}
	stats.dependabot++
	stats.pr++
	return s.upsertIssue(ctx, event, payload.PullRequest, stats)
}

func (s *Importer) handleIssueComment(ctx context.Context, event *gharchive.Event, stats *hourStats) error {
	var payload gharchive.IssueCommentPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.Issue == nil {
		return nil
	}
	if !payload.Issue.IsPullRequest() {
		return nil
	}
	if payload.Issue.User == nil || !dependabot.IsLogin(payload.Issue.User.Login) {
		return nil
	}
	stats.comment++
	return s.upsertIssue(ctx, event, &payload.Issue.PullRequest, stats)
}

func (s *Importer) handleReview(ctx context.Context, event *gharchive.Event, stats *hourStats) error {
	var payload gharchive.ReviewPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.PullRequest == nil {
		return nil
	}
	pr := payload.PullRequest
	isDependabot := pr.User != nil && dependabot.IsLogin(pr.User.Login)
	if !isDependabot && pr.Head != nil {
		isDependabot = strings.HasPrefix(pr.Head.Ref, "dependabot/")
	}
	if !isDependabot && event.Repo != nil {
		// Fall back to what we already imported for this pull request.
		stored, err := s.storedIssue(ctx, event.Repo.Name, pr)
		if err != nil {
			return err
		}
		isDependabot = stored != nil && dependabot.IsLogin(stored.User)
	}
	if !isDependabot {
		return nil
	}
	switch event.Type {
	case gharchive.TypePullRequestReview:
		stats.review++
	case gharchive.TypePullRequestReviewComment:
		stats.reviewComment++
	case gharchive.TypePullRequestReviewThread:
		stats.reviewThread++
	}
	return s.upsertIssue(ctx, event, pr, stats)
}

func (s *Importer) storedIssue(ctx context.Context, repoFullName string, pr *gharchive.PullRequest) (*models.Issue, error) {
	if uuid := pr.ID.String(); uuid != "" && uuid != "0" {
		if issue, err := s.Store.GetIssueByUUID(ctx, uuid); err != nil || issue != nil {
			return issue, err
		}
	}
	hostID, err := s.githubHostID(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := s.Store.FindRepository(ctx, hostID, repoFullName)
	if err != nil || repo == nil {
		return nil, err
	}
	return s.Store.GetIssue(ctx, repo.ID, pr.Number)
}

func (s *Importer) upsertIssue(ctx context.Context, event *gharchive.Event, pr *gharchive.PullRequest, stats *hourStats) error {
	if event.Repo == nil || event.Repo.Name == "" || pr.Number == 0 {
		return nil
	}
	hostID, err := s.githubHostID(ctx)
	if err != nil {
		return err
	}
	repo, err := s.Store.FindOrCreateRepository(ctx, hostID, event.Repo.Name)
	if err != nil {
		return err
	}

	existing, err := s.Store.GetIssue(ctx, repo.ID, pr.Number)
	if err != nil {
		return err
	}
	// Events arrive out of order; an older snapshot must not clobber a
	// newer row.
	if existing != nil && existing.UpdatedAt != nil && pr.UpdatedAt != nil &&
		!pr.UpdatedAt.After(*existing.UpdatedAt) {
		return nil
	}

	issue := existing
	if issue == nil {
		issue = &models.Issue{
			RepositoryID: repo.ID,
			HostID:       hostID,
			Number:       pr.Number,
		}
	}
	applyPullRequest(issue, pr)

	if existing == nil {
		if err := s.Store.CreateIssue(ctx, issue); err != nil {
			return err
		}
		stats.created++
	} else {
		if err := s.Store.SaveIssue(ctx, issue); err != nil {
			return err
		}
		stats.updated++
	}

	packageIDs, err := s.Metadata.Apply(ctx, issue, repo)
	if err != nil {
		return err
	}
	for _, id := range packageIDs {
		stats.packageIDs[id] = true
	}
	if s.Advisories != nil {
		links, err := s.Advisories.LinkIssue(ctx, issue)
		if err != nil {
			return err
		}
		stats.links += links
	}
	return nil
}

func applyPullRequest(issue *models.Issue, pr *gharchive.PullRequest) {
	if uuid := pr.ID.String(); uuid != "" && uuid != "0" {
		issue.UUID = uuid
	} else if issue.UUID == "" {
		issue.UUID = fmt.Sprintf("%d-%d", issue.RepositoryID, issue.Number)
	}
	issue.NodeID = pr.NodeID
	issue.State = pr.State
	issue.Title = pr.Title
	issue.Body = pr.Body
	if pr.User != nil {
		issue.User = pr.User.Login
	}
	issue.AuthorAssociation = pr.AuthorAssociation
	issue.Locked = pr.Locked
	issue.Draft = pr.Draft
	issue.CommentsCount = pr.Comments
	issue.PullRequest = true
	issue.CreatedAt = pr.CreatedAt
	issue.UpdatedAt = pr.UpdatedAt
	issue.ClosedAt = pr.ClosedAt
	issue.MergedAt = pr.MergedAt
	if pr.MergedBy != nil {
		issue.MergedBy = ptr(pr.MergedBy.Login)
	}
	if pr.ClosedBy != nil {
		issue.ClosedBy = ptr(pr.ClosedBy.Login)
	}
	if pr.CreatedAt != nil && pr.ClosedAt != nil {
		issue.TimeToClose = ptr(int64(pr.ClosedAt.Sub(*pr.CreatedAt) / time.Second))
	}
	if names := labelNames(pr.Labels); names != nil {
		issue.Labels = names
	}
	if logins := assigneeLogins(pr.Assignees); logins != nil {
		issue.Assignees = logins
	}
}

func labelNames(labels []gharchive.Label) datatypes.JSON {
	if len(labels) == 0 {
		return nil
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	encoded, err := json.Marshal(names)
	if err != nil {
		return nil
	}
	return encoded
}

func assigneeLogins(users []gharchive.User) datatypes.JSON {
	if len(users) == 0 {
		return nil
	}
	logins := make([]string, 0, len(users))
	for _, u := range users {
		logins = append(logins, u.Login)
	}
	encoded, err := json.Marshal(logins)
	if err != nil {
		return nil
	}
	return encoded
}

func (s *Importer) githubHostID(ctx context.Context) (uint64, error) {
	if s.hostID != 0 {
		return s.hostID, nil
	}
	host, err := s.Store.FindOrCreateHost(ctx, "GitHub", "https://github.com", "github")
	if err != nil {
		return 0, err
	}
	s.hostID = host.ID
	return host.ID, nil
}

func (s *Importer) recordImport(ctx context.Context, filename string, stats *hourStats, runErr error) error {
	imp, err := s.Store.GetImport(ctx, filename)
	if err != nil {
		return err
	}
	if imp == nil {
		imp = &models.Import{Filename: filename}
	}
	imp.DependabotCount = stats.dependabot
	imp.PRCount = stats.pr
	imp.CommentCount = stats.comment
	imp.ReviewCount = stats.review
	imp.ReviewCommentCount = stats.reviewComment
	imp.ReviewThreadCount = stats.reviewThread
	imp.CreatedCount = stats.created
	imp.UpdatedCount = stats.updated
	imp.ImportedAt = ptr(time.Now().UTC())
	imp.Success = ptr(runErr == nil)
	if runErr != nil {
		imp.ErrorMessage = ptr(truncateError(runErr.Error()))
	} else {
		imp.ErrorMessage = nil
	}
	if imp.ID == 0 {
		return s.Store.CreateImport(ctx, imp)
	}
	return s.Store.SaveImport(ctx, imp)
}

func (s *Importer) refreshCounters(ctx context.Context, stats *hourStats) error {
	for id := range stats.packageIDs {
		if err := s.Store.RefreshPackageCounts(ctx, id); err != nil {
			return err
		}
	}
	if stats.links > 0 && s.Advisories != nil {
		return s.Advisories.RefreshStats(ctx)
	}
	return nil
}

func fillResult(result *ImportResult, stats *hourStats) {
	result.DependabotCount = stats.dependabot
	result.PRCount = stats.pr
	result.CommentCount = stats.comment
	result.ReviewCount = stats.review
	result.ReviewCommentCount = stats.reviewComment
	result.ReviewThreadCount = stats.reviewThread
	result.CreatedCount = stats.created
	result.UpdatedCount = stats.updated
}

func truncateError(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	// Back up to a rune boundary so the stored text stays valid UTF-8.
	cut := maxErrorMessageLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
