package objectstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Commit is an immutable node in the version history. Its ID is a content
// hash over the snapshot hash, parents, author, message and timestamp, so
// a stored commit can never change without changing identity.
type Commit struct {
	// ID is the commit's content hash.
	ID string `json:"id"`

	// SnapshotHash references the snapshot object this commit captures.
	SnapshotHash string `json:"snapshot_hash"`

	// Parents are the parent commit IDs. Zero for the root commit, one
	// for ordinary commits, two for merge commits.
	Parents []string `json:"parents,omitempty"`

	// Author identifies who or what produced the commit (a user, or a
	// reconciliation source).
	Author string `json:"author"`

	// Message is the commit message.
	Message string `json:"message"`

	// CreatedAt is the commit timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// newCommit assembles a commit and seals its ID.
func newCommit(snapshotHash string, parents []string, author, message string) *Commit {
	c := &Commit{
		SnapshotHash: snapshotHash,
		Parents:      parents,
		Author:       author,
		Message:      message,
		CreatedAt:    time.Now().UTC(),
	}
	c.ID = c.hash()
	return c
}

// hash computes the content hash over all identity-bearing fields.
func (c *Commit) hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "snapshot %s\n", c.SnapshotHash)
	fmt.Fprintf(h, "parents %s\n", strings.Join(c.Parents, " "))
	fmt.Fprintf(h, "author %s\n", c.Author)
	fmt.Fprintf(h, "time %d\n", c.CreatedAt.UnixNano())
	fmt.Fprintf(h, "\n%s", c.Message)
	return hex.EncodeToString(h.Sum(nil))
}

// verify recomputes the hash and reports whether the commit is intact.
func (c *Commit) verify() bool {
	return c.ID == c.hash()
}

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// CommitInfo is the read-model returned by History.
type CommitInfo struct {
	ID        string    `json:"id"`
	Parents   []string  `json:"parents,omitempty"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Commit) info() CommitInfo {
	return CommitInfo{
		ID:        c.ID,
		Parents:   c.Parents,
		Author:    c.Author,
		Message:   c.Message,
		CreatedAt: c.CreatedAt,
	}
}
