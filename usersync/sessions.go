package usersync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
)

// Sources are the per-user subcollections a session subscribes to
type Sources struct {
	Library       Source[anime.LibraryEntry]
	Characters    Source[anime.FavoriteCharacter]
	Studios       Source[anime.FollowedStudio]
	Notifications Source[anime.Notification]
}

// SessionConfig tunes the session registry
type SessionConfig struct {
	FavoriteCap int
	StudioCap   int
	IdleTimeout time.Duration
}

// Session is the synced state of one signed-in user
type Session struct {
	UID           string
	Library       *Library
	Characters    *Capped[anime.FavoriteCharacter]
	Studios       *Capped[anime.FollowedStudio]
	Notifications *Notifications

	lastUsed time.Time
	refs     int
}

func (s *Session) close() {
	s.Library.Close()
	s.Characters.Close()
	s.Studios.Close()
	s.Notifications.Close()
}

// Sessions keeps one live Session per active user and closes the ones that
// stay idle
type Sessions struct {
	src    Sources
	cfg    SessionConfig
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	byUID map[string]*Session
}

// NewSessions creates an empty registry
func NewSessions(src Sources, cfg SessionConfig, logger zerolog.Logger) *Sessions {
	if cfg.FavoriteCap <= 0 {
		cfg.FavoriteCap = DefaultFavoriteCap
	}
	if cfg.StudioCap <= 0 {
		cfg.StudioCap = DefaultStudioCap
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	return &Sessions{
		src:    src,
		cfg:    cfg,
		logger: logger.With().Str("component", "usersync").Logger(),
		now:    time.Now,
		byUID:  make(map[string]*Session),
	}
}

// Acquire returns the session for uid, opening its subscriptions on first use.
// Call the returned release func when done.
func (s *Sessions) Acquire(uid string) (*Session, func(), error) {
	if uid == "" {
		return nil, nil, ErrAuthRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byUID[uid]
	if !ok {
		sess = s.open(uid)
		s.byUID[uid] = sess
		s.logger.Debug().Str("uid", uid).Msg("Opened user session")
	}
	sess.refs++
	sess.lastUsed = s.now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			sess.refs--
			sess.lastUsed = s.now()
			s.mu.Unlock()
		})
	}
	return sess, release, nil
}

func (s *Sessions) open(uid string) *Session {
	lib := NewSynced(s.src.Library, s.logger.With().Str("collection", "library").Logger())
	chars := NewSynced(s.src.Characters, s.logger.With().Str("collection", "favorite_characters").Logger())
	studios := NewSynced(s.src.Studios, s.logger.With().Str("collection", "followed_studios").Logger())
	notes := NewSynced(s.src.Notifications, s.logger.With().Str("collection", "notifications").Logger())

	lib.Bind(uid)
	chars.Bind(uid)
	studios.Bind(uid)
	notes.Bind(uid)

	return &Session{
		UID:           uid,
		Library:       NewLibrary(lib),
		Characters:    NewCapped(chars, "favorite characters", s.cfg.FavoriteCap),
		Studios:       NewCapped(studios, "followed studios", s.cfg.StudioCap),
		Notifications: NewNotifications(notes),
	}
}

// Drop closes the session of uid regardless of use, e.g. after account
// deletion
func (s *Sessions) Drop(uid string) {
	s.mu.Lock()
	sess, ok := s.byUID[uid]
	delete(s.byUID, uid)
	s.mu.Unlock()

	if ok {
		sess.close()
	}
}

// Sweep closes sessions that are unused and idle longer than the timeout, and
// returns how many were closed
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	var stale []*Session
	for uid, sess := range s.byUID {
		if sess.refs == 0 && sess.lastUsed.Before(cutoff) {
			stale = append(stale, sess)
			delete(s.byUID, uid)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.close()
		s.logger.Debug().Str("uid", sess.UID).Msg("Closed idle user session")
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is done
func (s *Sessions) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of open sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUID)
}

// Close closes every session
func (s *Sessions) Close() {
	s.mu.Lock()
	all := s.byUID
	s.byUID = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.close()
	}
}
