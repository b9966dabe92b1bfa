package jikan

import "context"

// Cache is a read-through response cache keyed by request path and parameters
type Cache interface {
	Fetch(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

// AnimeAPI covers the anime catalog endpoints
type AnimeAPI interface {
	TopAnime(ctx context.Context, filter TopFilter, page int) (*ListResponse[Anime], error)
	SeasonNow(ctx context.Context, page int) (*ListResponse[Anime], error)
	SearchAnime(ctx context.Context, q SearchQuery) (*ListResponse[Anime], error)
	AnimeFull(ctx context.Context, id int) (*Anime, error)
	AnimeRecommendations(ctx context.Context, id int) ([]Recommendation, error)
	Genres(ctx context.Context) ([]Genre, error)
}

// CharacterAPI covers the character endpoints
type CharacterAPI interface {
	TopCharacters(ctx context.Context, page int) (*ListResponse[Character], error)
	CharacterFull(ctx context.Context, id int) (*Character, error)
	CharacterVoices(ctx context.Context, id int) ([]VoiceActing, error)
}

// PeopleAPI covers the people and producer endpoints
type PeopleAPI interface {
	TopPeople(ctx context.Context, page int) (*ListResponse[Person], error)
	PersonFull(ctx context.Context, id int) (*Person, error)
	ProducerFull(ctx context.Context, id int) (*Producer, error)
}

// API combines every endpoint group
type API interface {
	AnimeAPI
	CharacterAPI
	PeopleAPI
}

// Ensure Client implements API
var _ API = (*Client)(nil)
