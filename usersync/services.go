package usersync

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
)

const (
	DefaultFavoriteCap = 6
	DefaultStudioCap   = 3
)

// Library manages users/{uid}/library
type Library struct {
	*Synced[anime.LibraryEntry]
	now func() time.Time
}

// NewLibrary wraps a synced library collection
func NewLibrary(s *Synced[anime.LibraryEntry]) *Library {
	return &Library{Synced: s, now: time.Now}
}

func docID(id int) string { return strconv.Itoa(id) }

// Entries returns the library, most recently updated first
func (l *Library) Entries() []anime.LibraryEntry {
	items, _ := l.Items()
	sort.SliceStable(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items
}

// Entry looks up one tracked anime in the last snapshot
func (l *Library) Entry(id int) (anime.LibraryEntry, bool) {
	items, _ := l.Items()
	for _, e := range items {
		if e.ID == id {
			return e, true
		}
	}
	return anime.LibraryEntry{}, false
}

// Add starts tracking an anime. Adding an anime already tracked replaces the
// entry.
func (l *Library) Add(ctx context.Context, s anime.Summary, status anime.Status) (anime.LibraryEntry, error) {
	src, uid, err := l.source()
	if err != nil {
		return anime.LibraryEntry{}, err
	}
	if status == "" {
		status = anime.StatusPlanToWatch
	}
	if !status.Valid() {
		return anime.LibraryEntry{}, ErrInvalidStatus
	}

	entry := anime.EntryFromSummary(s, status, l.now())
	if err := src.Put(ctx, uid, docID(s.ID), entry); err != nil {
		return anime.LibraryEntry{}, fmt.Errorf("failed to add anime %d: %w", s.ID, err)
	}
	return entry, nil
}

func (l *Library) patch(ctx context.Context, id int, fields map[string]any) error {
	src, uid, err := l.source()
	if err != nil {
		return err
	}
	fields["updatedAt"] = l.now()
	if err := src.Patch(ctx, uid, docID(id), fields); err != nil {
		return fmt.Errorf("failed to update anime %d: %w", id, err)
	}
	return nil
}

// UpdateProgress sets the watched episode count, clamped to the episode
// total. Reaching the last episode marks the entry completed.
func (l *Library) UpdateProgress(ctx context.Context, id, episode int) (int, error) {
	if _, _, err := l.source(); err != nil {
		return 0, err
	}
	entry, ok := l.Entry(id)
	if !ok {
		return 0, ErrNotInLibrary
	}

	ep := anime.ClampEpisode(episode, entry.TotalEp)
	fields := map[string]any{"currentEp": ep}
	if entry.TotalEp > 0 && ep == entry.TotalEp && entry.Status != anime.StatusCompleted {
		fields["status"] = string(anime.StatusCompleted)
	}
	return ep, l.patch(ctx, id, fields)
}

// SetStatus changes the watch status
func (l *Library) SetStatus(ctx context.Context, id int, status anime.Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	fields := map[string]any{"status": string(status)}
	if status == anime.StatusCompleted {
		if entry, ok := l.Entry(id); ok && entry.TotalEp > 0 {
			fields["currentEp"] = entry.TotalEp
		}
	}
	return l.patch(ctx, id, fields)
}

// SetScore sets the user score; 0 clears it
func (l *Library) SetScore(ctx context.Context, id, score int) error {
	if score < 0 || score > 10 {
		return ErrInvalidScore
	}
	return l.patch(ctx, id, map[string]any{"score": score})
}

// SetFavorite flags or unflags an entry
func (l *Library) SetFavorite(ctx context.Context, id int, favorite bool) error {
	return l.patch(ctx, id, map[string]any{"isFavorite": favorite})
}

// Remove stops tracking an anime
func (l *Library) Remove(ctx context.Context, id int) error {
	src, uid, err := l.source()
	if err != nil {
		return err
	}
	if err := src.Remove(ctx, uid, docID(id)); err != nil {
		return fmt.Errorf("failed to remove anime %d: %w", id, err)
	}
	return nil
}

// Capped is a toggle collection with a maximum size, used for favorite
// characters and followed studios
type Capped[T anime.Identified] struct {
	*Synced[T]
	name  string
	limit int
}

// NewCapped wraps a synced collection; name is used in error messages
func NewCapped[T anime.Identified](s *Synced[T], name string, limit int) *Capped[T] {
	return &Capped[T]{Synced: s, name: name, limit: limit}
}

// Cap returns the maximum size
func (c *Capped[T]) Cap() int { return c.limit }

// Contains reports whether key is in the last snapshot
func (c *Capped[T]) Contains(key string) bool {
	items, _ := c.Items()
	for _, it := range items {
		if it.Key() == key {
			return true
		}
	}
	return false
}

// Toggle removes item when present and adds it otherwise. Adding to a full
// collection fails with *CapExceededError before anything is written; removal
// always succeeds. added reports the new membership.
func (c *Capped[T]) Toggle(ctx context.Context, item T) (added bool, err error) {
	src, uid, err := c.source()
	if err != nil {
		return false, err
	}
	if err := c.WaitReady(ctx); err != nil {
		return false, err
	}

	items, _ := c.Items()
	key := item.Key()
	for _, it := range items {
		if it.Key() == key {
			if err := src.Remove(ctx, uid, key); err != nil {
				return true, fmt.Errorf("failed to remove from %s: %w", c.name, err)
			}
			return false, nil
		}
	}

	if len(items) >= c.limit {
		return false, &CapExceededError{Collection: c.name, Cap: c.limit}
	}
	if err := src.Put(ctx, uid, key, item); err != nil {
		return false, fmt.Errorf("failed to add to %s: %w", c.name, err)
	}
	return true, nil
}

// Notifications manages users/{uid}/notifications
type Notifications struct {
	*Synced[anime.Notification]
}

// NewNotifications wraps a synced notification collection
func NewNotifications(s *Synced[anime.Notification]) *Notifications {
	return &Notifications{Synced: s}
}

// List returns notifications newest first
func (n *Notifications) List() []anime.Notification {
	items, _ := n.Items()
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items
}

// UnreadCount counts unread notifications
func (n *Notifications) UnreadCount() int {
	items, _ := n.Items()
	c := 0
	for _, it := range items {
		if !it.Read {
			c++
		}
	}
	return c
}

// MarkRead sets the read flag of one notification
func (n *Notifications) MarkRead(ctx context.Context, id string) error {
	src, uid, err := n.source()
	if err != nil {
		return err
	}
	if err := src.Patch(ctx, uid, id, map[string]any{"read": true}); err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the last snapshot read and
// returns how many were updated
func (n *Notifications) MarkAllRead(ctx context.Context) (int, error) {
	if _, _, err := n.source(); err != nil {
		return 0, err
	}
	items, _ := n.Items()
	count := 0
	for _, it := range items {
		if it.Read {
			continue
		}
		if err := n.MarkRead(ctx, it.ID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
