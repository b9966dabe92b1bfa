package store

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/firestore"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

const (
	MaxCommentLength    = 1000
	DefaultCommentLimit = 20
	maxCommentLimit     = 100
)

// ErrInvalidComment is returned for empty or oversized comments
var ErrInvalidComment = fmt.Errorf("%w: comment must be between 1 and %d characters", usersync.ErrInvalidInput, MaxCommentLength)

// Comments stores the public comment threads of each anime
type Comments struct {
	fs  *firestore.Client
	now func() time.Time
}

// NewComments creates a Comments store
func NewComments(fs *firestore.Client) *Comments {
	return &Comments{fs: fs, now: time.Now}
}

// Comments returns the comment store of this client
func (c *Client) Comments() *Comments {
	return NewComments(c.Firestore)
}

// NormalizeComment trims content and checks its length
func NormalizeComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n == 0 || n > MaxCommentLength {
		return "", ErrInvalidComment
	}
	return content, nil
}

func commentLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultCommentLimit
	case limit > maxCommentLimit:
		return maxCommentLimit
	default:
		return limit
	}
}

// List returns the newest comments of animeID. A non-empty cursor continues
// after that comment id. next is empty when there are no more comments.
func (c *Comments) List(ctx context.Context, animeID, limit int, cursor string) (comments []anime.Comment, next string, err error) {
	limit = commentLimit(limit)
	col := c.fs.Collection(commentsCollection)

	q := col.Where("animeId", "==", animeID).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit + 1)

	if cursor != "" {
		after, err := col.Doc(cursor).Get(ctx)
		if err != nil {
			return nil, "", translate(err, "comment cursor "+cursor)
		}
		q = q.StartAfter(after)
	}

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, "", fmt.Errorf("list comments of %d: %w", animeID, err)
	}

	more := len(docs) > limit
	if more {
		docs = docs[:limit]
	}
	comments, err = decodeAll(docs, func(cm *anime.Comment, id string) { cm.ID = id })
	if err != nil {
		return nil, "", err
	}
	if more {
		next = comments[len(comments)-1].ID
	}
	return comments, next, nil
}

// Post adds a comment by author to animeID
func (c *Comments) Post(ctx context.Context, author Identity, animeID int, content string) (anime.Comment, error) {
	if author.UID == "" {
		return anime.Comment{}, usersync.ErrAuthRequired
	}
	content, err := NormalizeComment(content)
	if err != nil {
		return anime.Comment{}, err
	}

	cm := anime.Comment{
		AnimeID:   animeID,
		UserID:    author.UID,
		UserName:  author.DisplayName(),
		UserPhoto: author.Picture,
		Content:   content,
		CreatedAt: c.now().UTC(),
	}
	ref, _, err := c.fs.Collection(commentsCollection).Add(ctx, cm)
	if err != nil {
		return anime.Comment{}, fmt.Errorf("post comment: %w", err)
	}
	cm.ID = ref.ID
	return cm, nil
}

// Delete removes a comment. Only its author may delete it.
func (c *Comments) Delete(ctx context.Context, uid, commentID string) error {
	if uid == "" {
		return usersync.ErrAuthRequired
	}
	ref := c.fs.Collection(commentsCollection).Doc(commentID)

	return c.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return translate(err, "comment "+commentID)
		}
		var cm anime.Comment
		if err := doc.DataTo(&cm); err != nil {
			return fmt.Errorf("decode comment %s: %w", commentID, err)
		}
		if cm.UserID != uid {
			return ErrForbidden
		}
		return tx.Delete(ref)
	})
}
