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
	MaxDisplayNameLength = 50
	MaxBioLength         = 500
	DefaultSearchLimit   = 10

	maxSearchLimit = 50
	// maxSearchPages bounds how many pages Search reads to skip private
	// profiles
	maxSearchPages = 5

	// prefixEnd sorts after every character a display name can start a
	// range query with
	prefixEnd = "\uf8ff"
)

var (
	ErrInvalidDisplayName = fmt.Errorf("%w: display name must be between 1 and %d characters", usersync.ErrInvalidInput, MaxDisplayNameLength)
	ErrInvalidBio         = fmt.Errorf("%w: bio must be at most %d characters", usersync.ErrInvalidInput, MaxBioLength)
)

// ProfileUpdate carries the profile fields to change. Nil fields are left as
// they are.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
	BannerURL   *string `json:"bannerURL"`
	Bio         *string `json:"bio"`
	IsPrivate   *bool   `json:"isPrivate"`
}

// Fields validates u and returns the document fields to merge
func (u ProfileUpdate) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if u.DisplayName != nil {
		name := strings.TrimSpace(*u.DisplayName)
		if n := utf8.RuneCountInString(name); n == 0 || n > MaxDisplayNameLength {
			return nil, ErrInvalidDisplayName
		}
		fields["displayName"] = name
		fields["searchName"] = SearchName(name)
	}
	if u.PhotoURL != nil {
		fields["photoURL"] = strings.TrimSpace(*u.PhotoURL)
	}
	if u.BannerURL != nil {
		fields["bannerURL"] = strings.TrimSpace(*u.BannerURL)
	}
	if u.Bio != nil {
		bio := strings.TrimSpace(*u.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return nil, ErrInvalidBio
		}
		fields["bio"] = bio
	}
	if u.IsPrivate != nil {
		fields["isPrivate"] = *u.IsPrivate
	}
	return fields, nil
}

// SearchName is the lower-cased form of a display name used for prefix search
func SearchName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Profiles stores user profile documents
type Profiles struct {
	fs      *firestore.Client
	library *Collection[anime.LibraryEntry]
	now     func() time.Time
}

// NewProfiles creates a Profiles store
func NewProfiles(fs *firestore.Client) *Profiles {
	return &Profiles{
		fs:      fs,
		library: NewCollection[anime.LibraryEntry](fs, LibraryCollection),
		now:     time.Now,
	}
}

// Profiles returns the profile store of this client
func (c *Client) Profiles() *Profiles {
	return NewProfiles(c.Firestore)
}

// Get returns the profile of uid
func (p *Profiles) Get(ctx context.Context, uid string) (*anime.UserProfile, error) {
	doc, err := userDoc(p.fs, uid).Get(ctx)
	if err != nil {
		return nil, translate(err, "profile "+uid)
	}
	var profile anime.UserProfile
	if err := doc.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", uid, err)
	}
	profile.UID = doc.Ref.ID
	return &profile, nil
}

// Ensure returns the profile of the signed-in user, creating it on first
// sign-in
func (p *Profiles) Ensure(ctx context.Context, id Identity) (*anime.UserProfile, error) {
	if id.UID == "" {
		return nil, usersync.ErrAuthRequired
	}
	profile, err := p.Get(ctx, id.UID)
	if err == nil {
		return profile, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	name := id.DisplayName()
	profile = &anime.UserProfile{
		UID:         id.UID,
		DisplayName: name,
		SearchName:  SearchName(name),
		PhotoURL:    id.Picture,
		CreatedAt:   p.now().UTC(),
	}
	if _, err := userDoc(p.fs, id.UID).Create(ctx, profile); err != nil {
		// lost a race with a concurrent first request
		if existing, getErr := p.Get(ctx, id.UID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create profile %s: %w", id.UID, err)
	}
	return profile, nil
}

// Update merges u into the profile of uid
func (p *Profiles) Update(ctx context.Context, uid string, u ProfileUpdate) error {
	if uid == "" {
		return usersync.ErrAuthRequired
	}
	fields, err := u.Fields()
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	_, err = userDoc(p.fs, uid).Set(ctx, fields, firestore.MergeAll)
	return translate(err, "update profile "+uid)
}

// SaveStats replaces the cached library stats on the profile of uid
func (p *Profiles) SaveStats(ctx context.Context, uid string, stats anime.Stats) error {
	_, err := userDoc(p.fs, uid).Update(ctx, []firestore.Update{{Path: "stats", Value: stats}})
	return translate(err, "save stats "+uid)
}

// Public returns the profile of uid as seen by viewerUID. Private profiles
// are only visible to their owner.
func (p *Profiles) Public(ctx context.Context, uid, viewerUID string) (*anime.UserProfile, error) {
	profile, err := p.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if profile.IsPrivate && uid != viewerUID {
		return nil, ErrPrivateProfile
	}
	return profile, nil
}

// Search returns up to limit public profiles whose display name starts with
// prefix. Private profiles are skipped without shortening the page.
func (p *Profiles) Search(ctx context.Context, prefix string, limit int) ([]anime.UserProfile, error) {
	prefix = SearchName(prefix)
	if prefix == "" {
		return []anime.UserProfile{}, nil
	}
	limit = searchLimit(limit)

	q := p.fs.Collection(usersCollection).
		Where("searchName", ">=", prefix).
		Where("searchName", "<=", prefix+prefixEnd).
		OrderBy("searchName", firestore.Asc).
		Limit(limit)

	out := make([]anime.UserProfile, 0, limit)
	var last *firestore.DocumentSnapshot
	for page := 0; page < maxSearchPages && len(out) < limit; page++ {
		pq := q
		if last != nil {
			pq = q.StartAfter(last)
		}
		docs, err := pq.Documents(ctx).GetAll()
		if err != nil {
			return nil, fmt.Errorf("search profiles %q: %w", prefix, err)
		}
		batch, err := decodeAll(docs, func(u *anime.UserProfile, id string) { u.UID = id })
		if err != nil {
			return nil, err
		}
		out = appendPublic(out, batch, limit)
		if len(docs) < limit {
			break
		}
		last = docs[len(docs)-1]
	}
	return out, nil
}

func searchLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > maxSearchLimit:
		return maxSearchLimit
	default:
		return limit
	}
}

// appendPublic appends the public profiles of batch to out, stopping at limit
func appendPublic(out, batch []anime.UserProfile, limit int) []anime.UserProfile {
	for _, u := range batch {
		if len(out) >= limit {
			break
		}
		if !u.IsPrivate {
			out = append(out, u)
		}
	}
	return out
}

// Library reads the library of uid once
func (p *Profiles) Library(ctx context.Context, uid string) ([]anime.LibraryEntry, error) {
	return p.library.List(ctx, uid)
}

// DeleteAccount removes the profile of uid, every document in its
// subcollections and the comments it wrote
func (p *Profiles) DeleteAccount(ctx context.Context, uid string) (int, error) {
	if uid == "" {
		return 0, usersync.ErrAuthRequired
	}
	user := userDoc(p.fs, uid)

	var refs []*firestore.DocumentRef
	for _, name := range userSubcollections {
		docs, err := user.Collection(name).Documents(ctx).GetAll()
		if err != nil {
			return 0, fmt.Errorf("list %s/%s: %w", uid, name, err)
		}
		for _, d := range docs {
			refs = append(refs, d.Ref)
		}
	}

	comments, err := p.fs.Collection(commentsCollection).Where("userId", "==", uid).Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("list comments of %s: %w", uid, err)
	}
	for _, d := range comments {
		refs = append(refs, d.Ref)
	}
	refs = append(refs, user)

	bw := p.fs.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("queue delete %s: %w", ref.Path, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", refs[i].Path, err)
		}
		deleted++
	}
	return deleted, nil
}
