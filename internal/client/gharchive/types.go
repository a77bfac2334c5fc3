package gharchive

import (
	"encoding/json"
	"time"
)

// Event kinds that participate in import.
const (
	TypePullRequest              = "PullRequestEvent"
	TypeIssueComment             = "IssueCommentEvent"
	TypePullRequestReview        = "PullRequestReviewEvent"
	TypePullRequestReviewComment = "PullRequestReviewCommentEvent"
	TypePullRequestReviewThread  = "PullRequestReviewThreadEvent"
)

// Event is the archive's event envelope. Payload stays raw until the
// router knows the kind.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     *Actor          `json:"actor"`
	Repo      *Repo           `json:"repo"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt *time.Time      `json:"created_at"`
}

type Actor struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type Repo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type User struct {
	Login string `json:"login"`
}

type Label struct {
	Name string `json:"name"`
}

type Ref struct {
	Ref string `json:"ref"`
}

// PullRequest covers both the old archive format (full PR objects) and
// the new one (a handful of fields); everything optional is a pointer.
type PullRequest struct {
	ID                json.Number `json:"id"`
	NodeID            *string     `json:"node_id"`
	Number            int         `json:"number"`
	State             *string     `json:"state"`
	Title             *string     `json:"title"`
	Body              *string     `json:"body"`
	User              *User       `json:"user"`
	Labels            []Label     `json:"labels"`
	Assignees         []User      `json:"assignees"`
	Locked            *bool       `json:"locked"`
	Draft             *bool       `json:"draft"`
	Comments          *int        `json:"comments"`
	AuthorAssociation *string     `json:"author_association"`
	CreatedAt         *time.Time  `json:"created_at"`
	UpdatedAt         *time.Time  `json:"updated_at"`
	ClosedAt          *time.Time  `json:"closed_at"`
	MergedAt          *time.Time  `json:"merged_at"`
	MergedBy          *User       `json:"merged_by"`
	ClosedBy          *User       `json:"closed_by"`
	Head              *Ref        `json:"head"`
}

// PullRequestPayload is the payload of PullRequestEvent.
type PullRequestPayload struct {
	Action      string       `json:"action"`
	PullRequest *PullRequest `json:"pull_request"`
}

// IssueCommentPayload is the payload of IssueCommentEvent. Issue shares
// the PullRequest shape; a non-empty PullRequestRef distinguishes PRs
// from plain issues.
type IssueCommentPayload struct {
	Action string       `json:"action"`
	Issue  *IssueDetail `json:"issue"`
}

type IssueDetail struct {
	PullRequest
	PullRequestRef json.RawMessage `json:"pull_request"`
}

func (d *IssueDetail) IsPullRequest() bool {
	return len(d.PullRequestRef) > 0 && string(d.PullRequestRef) != "null"
}

// ReviewPayload covers the three review-flavored event kinds; they all
// carry the pull request itself.
type ReviewPayload struct {
	Action      string       `json:"action"`
	PullRequest *PullRequest `json:"pull_request"`
}
