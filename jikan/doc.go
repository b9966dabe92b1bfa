// Package jikan provides a client for the Jikan REST API (an unofficial
// MyAnimeList metadata service).
//
// The API is public and read-only, but heavily rate limited. Every request
// goes through a single retry loop that backs off linearly on HTTP 429 and on
// transport failures, and surfaces a classified error once the attempt budget
// is spent.
//
// # Architecture
//
//   - Client: the API client (resty transport, retry loop, optional read-through cache)
//   - Types: raw API payloads (anime, characters, people, producers, pagination)
//   - API: interface definitions for testability
//   - Errors: sentinel and structured error types
//
// # Usage
//
//	logger := zerolog.New(os.Stderr)
//	client, err := jikan.NewClient(
//		"https://api.jikan.moe/v4",
//		logger,
//		jikan.WithMaxAttempts(3),
//		jikan.WithRetryInterval(time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	top, err := client.TopAnime(ctx, jikan.TopFilterNone, 1)
//
// # Error Handling
//
//   - ErrRateLimited: HTTP 429 on the final attempt
//   - ErrNetwork / *NetworkError: transport failure on the final attempt
//   - *HTTPError: any other non-2xx response, returned without retry
//
// HTTP errors carry classification helpers:
//
//	var httpErr *jikan.HTTPError
//	if errors.As(err, &httpErr) && httpErr.IsNotFound() {
//		// unknown id
//	}
package jikan
