package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

func TestNormalizeComment(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "trimmed", content: "  great episode \n", want: "great episode"},
		{name: "empty", content: "", wantErr: true},
		{name: "only whitespace", content: " \t\n ", wantErr: true},
		{name: "at limit", content: strings.Repeat("a", MaxCommentLength), want: strings.Repeat("a", MaxCommentLength)},
		{name: "over limit", content: strings.Repeat("a", MaxCommentLength+1), wantErr: true},
		{name: "multibyte at limit", content: strings.Repeat("é", MaxCommentLength), want: strings.Repeat("é", MaxCommentLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeComment(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidComment)
				assert.ErrorIs(t, err, usersync.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommentLimit(t *testing.T) {
	assert.Equal(t, DefaultCommentLimit, commentLimit(0))
	assert.Equal(t, DefaultCommentLimit, commentLimit(-5))
	assert.Equal(t, 7, commentLimit(7))
	assert.Equal(t, maxCommentLimit, commentLimit(1000))
}

func TestSearchLimit(t *testing.T) {
	assert.Equal(t, DefaultSearchLimit, searchLimit(0))
	assert.Equal(t, DefaultSearchLimit, searchLimit(-1))
	assert.Equal(t, 20, searchLimit(20))
	assert.Equal(t, maxSearchLimit, searchLimit(1<<30))
}

func TestAppendPublic(t *testing.T) {
	batch := []anime.UserProfile{
		{UID: "a"},
		{UID: "b", IsPrivate: true},
		{UID: "c"},
		{UID: "d", IsPrivate: true},
	}

	got := appendPublic(nil, batch, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].UID)
	assert.Equal(t, "c", got[1].UID)

	// a later page tops up an earlier one without passing the limit
	got = appendPublic(got, []anime.UserProfile{{UID: "e"}, {UID: "f", IsPrivate: true}, {UID: "g"}}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[2].UID)
}

func TestProfileUpdateFields(t *testing.T) {
	name := "  Spike Spiegel "
	bio := "bounty hunter"
	private := true

	fields, err := ProfileUpdate{DisplayName: &name, Bio: &bio, IsPrivate: &private}.Fields()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"displayName": "Spike Spiegel",
		"searchName":  "spike spiegel",
		"bio":         "bounty hunter",
		"isPrivate":   true,
	}, fields)

	empty, err := ProfileUpdate{}.Fields()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProfileUpdateFields_Invalid(t *testing.T) {
	blank := "   "
	long := strings.Repeat("x", MaxDisplayNameLength+1)
	longBio := strings.Repeat("x", MaxBioLength+1)

	_, err := ProfileUpdate{DisplayName: &blank}.Fields()
	assert.ErrorIs(t, err, ErrInvalidDisplayName)

	_, err = ProfileUpdate{DisplayName: &long}.Fields()
	assert.ErrorIs(t, err, ErrInvalidDisplayName)

	_, err = ProfileUpdate{Bio: &longBio}.Fields()
	assert.ErrorIs(t, err, ErrInvalidBio)
	assert.ErrorIs(t, err, usersync.ErrInvalidInput)
}

func TestIdentityDisplayName(t *testing.T) {
	assert.Equal(t, "Faye", Identity{Name: "Faye", Email: "faye@bebop.io"}.DisplayName())
	assert.Equal(t, "faye", Identity{Email: "faye@bebop.io"}.DisplayName())
	assert.Equal(t, "Anonymous", Identity{}.DisplayName())
}

func TestIdentityFromClaims(t *testing.T) {
	id := identityFromClaims("u1", map[string]interface{}{
		"name":    "Jet",
		"email":   "jet@bebop.io",
		"picture": "https://img/jet.png",
		"admin":   true,
	})
	assert.Equal(t, Identity{UID: "u1", Name: "Jet", Email: "jet@bebop.io", Picture: "https://img/jet.png"}, id)

	assert.Equal(t, Identity{UID: "u2"}, identityFromClaims("u2", map[string]interface{}{"name": 42}))
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "x"))

	err := translate(status.Error(codes.NotFound, "no doc"), "profile u1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))

	other := errors.New("boom")
	err = translate(other, "profile u1")
	assert.ErrorIs(t, err, other)
	assert.False(t, IsNotFound(err))

	assert.True(t, IsNotFound(status.Error(codes.NotFound, "raw")))
}

func TestToUpdates(t *testing.T) {
	updates := toUpdates(map[string]any{"score": 9, "updatedAt": "now"})
	require.Len(t, updates, 2)

	got := map[string]any{}
	for _, u := range updates {
		got[u.Path] = u.Value
	}
	assert.Equal(t, map[string]any{"score": 9, "updatedAt": "now"}, got)
}

func TestNewCollectionOptions(t *testing.T) {
	type doc struct{ ID string }

	c := NewCollection[doc](nil, "things",
		WithOrder[doc]("createdAt", firestore.Desc),
		WithDocID(func(d *doc, id string) { d.ID = id }))

	assert.Equal(t, "things", c.name)
	assert.Equal(t, "createdAt", c.orderBy)
	assert.Equal(t, firestore.Desc, c.dir)

	var d doc
	c.setID(&d, "abc")
	assert.Equal(t, "abc", d.ID)
}

func TestSearchName(t *testing.T) {
	for in, want := range map[string]string{
		"Edward":      "edward",
		"  MiXeD  ":   "mixed",
		"":            "",
		"Ein the Dog": "ein the dog",
	} {
		assert.Equal(t, want, SearchName(in), fmt.Sprintf("SearchName(%q)", in))
	}
}
