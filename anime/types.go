package anime

import (
	"strconv"
	"time"
)

// Identified is implemented by anything that can be de-duplicated by id
type Identified interface {
	Key() string
}

// Summary is the catalog view of an anime
type Summary struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Image    string   `json:"image"`
	Year     int      `json:"year,omitempty"`
	Score    *float64 `json:"score"`
	Genres   []string `json:"genres"`
	Synopsis string   `json:"synopsis,omitempty"`
	Episodes int      `json:"episodes,omitempty"`
	IsNew    bool     `json:"isNew"`
}

func (s Summary) Key() string { return strconv.Itoa(s.ID) }

// Character is the catalog view of a character
type Character struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	NameKanji string   `json:"nameKanji,omitempty"`
	Image     string   `json:"image"`
	Favorites int      `json:"favorites"`
	About     string   `json:"about,omitempty"`
	Voices    []Person `json:"voices,omitempty"`
}

func (c Character) Key() string { return strconv.Itoa(c.ID) }

// Person is the catalog view of a voice actor or staff member
type Person struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Language  string `json:"language,omitempty"`
	Favorites int    `json:"favorites"`
	About     string `json:"about,omitempty"`
}

func (p Person) Key() string { return strconv.Itoa(p.ID) }

// Studio is the catalog view of a producer
type Studio struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Favorites int    `json:"favorites"`
	Count     int    `json:"count"`
	About     string `json:"about,omitempty"`
}

func (s Studio) Key() string { return strconv.Itoa(s.ID) }

// Status is the watch state of a library entry
type Status string

const (
	StatusWatching    Status = "watching"
	StatusCompleted   Status = "completed"
	StatusPlanToWatch Status = "plan_to_watch"
	StatusDropped     Status = "dropped"
	StatusPaused      Status = "paused"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusWatching, StatusCompleted, StatusPlanToWatch, StatusDropped, StatusPaused:
		return true
	}
	return false
}

// Statuses lists every status in display order
var Statuses = []Status{StatusWatching, StatusCompleted, StatusPlanToWatch, StatusPaused, StatusDropped}

// LibraryEntry is a user's tracking record for one anime.
// The document id under users/{uid}/library is the anime id.
type LibraryEntry struct {
	ID         int       `json:"id" firestore:"id"`
	Title      string    `json:"title" firestore:"title"`
	Image      string    `json:"image" firestore:"image"`
	Status     Status    `json:"status" firestore:"status"`
	CurrentEp  int       `json:"currentEp" firestore:"currentEp"`
	TotalEp    int       `json:"totalEp" firestore:"totalEp"`
	Score      int       `json:"score" firestore:"score"`
	IsFavorite bool      `json:"isFavorite" firestore:"isFavorite"`
	Genres     []string  `json:"genres" firestore:"genres"`
	UpdatedAt  time.Time `json:"updatedAt" firestore:"updatedAt"`
}

func (e LibraryEntry) Key() string { return strconv.Itoa(e.ID) }

// FavoriteCharacter is a pinned character, capped per user
type FavoriteCharacter struct {
	ID      int       `json:"id" firestore:"id"`
	Name    string    `json:"name" firestore:"name"`
	Image   string    `json:"image" firestore:"image"`
	AddedAt time.Time `json:"addedAt" firestore:"addedAt"`
}

func (f FavoriteCharacter) Key() string { return strconv.Itoa(f.ID) }

// FollowedStudio is a followed studio, capped per user
type FollowedStudio struct {
	ID      int       `json:"id" firestore:"id"`
	Name    string    `json:"name" firestore:"name"`
	Image   string    `json:"image" firestore:"image"`
	AddedAt time.Time `json:"addedAt" firestore:"addedAt"`
}

func (f FollowedStudio) Key() string { return strconv.Itoa(f.ID) }

// Comment is a public comment on an anime page
type Comment struct {
	ID        string    `json:"id" firestore:"-"`
	AnimeID   int       `json:"animeId" firestore:"animeId"`
	UserID    string    `json:"userId" firestore:"userId"`
	UserName  string    `json:"userName" firestore:"userName"`
	UserPhoto string    `json:"userPhoto,omitempty" firestore:"userPhoto"`
	Content   string    `json:"content" firestore:"content"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

func (c Comment) Key() string { return c.ID }

// NotificationType classifies a notification
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationSystem  NotificationType = "system"
	NotificationDefault NotificationType = "default"
)

// Normalize maps unknown types to NotificationDefault
func (t NotificationType) Normalize() NotificationType {
	switch t {
	case NotificationLike, NotificationComment, NotificationSystem:
		return t
	}
	return NotificationDefault
}

// Notification is a per-user notification; only Read is mutable
type Notification struct {
	ID        string           `json:"id" firestore:"-"`
	Type      NotificationType `json:"type" firestore:"type"`
	Content   string           `json:"content" firestore:"content"`
	Link      string           `json:"link,omitempty" firestore:"link"`
	Read      bool             `json:"read" firestore:"read"`
	CreatedAt time.Time        `json:"createdAt" firestore:"createdAt"`
}

func (n Notification) Key() string { return n.ID }

// Stats are the aggregate counters shown on a profile
type Stats struct {
	Total           int     `json:"total" firestore:"total"`
	Watching        int     `json:"watching" firestore:"watching"`
	Completed       int     `json:"completed" firestore:"completed"`
	PlanToWatch     int     `json:"planToWatch" firestore:"planToWatch"`
	Paused          int     `json:"paused" firestore:"paused"`
	Dropped         int     `json:"dropped" firestore:"dropped"`
	Favorites       int     `json:"favorites" firestore:"favorites"`
	EpisodesWatched int     `json:"episodesWatched" firestore:"episodesWatched"`
	MeanScore       float64 `json:"meanScore" firestore:"meanScore"`
}

// UserProfile is the users/{uid} document
type UserProfile struct {
	UID         string    `json:"uid" firestore:"uid"`
	DisplayName string    `json:"displayName" firestore:"displayName"`
	SearchName  string    `json:"-" firestore:"searchName"`
	PhotoURL    string    `json:"photoURL,omitempty" firestore:"photoURL"`
	BannerURL   string    `json:"bannerURL,omitempty" firestore:"bannerURL"`
	Bio         string    `json:"bio,omitempty" firestore:"bio"`
	IsPrivate   bool      `json:"isPrivate" firestore:"isPrivate"`
	Stats       Stats     `json:"stats" firestore:"stats"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
}
