// Package store implements the per-user collections, comments and profiles on
// Cloud Firestore, and Firebase ID token verification.
package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
	"github.com/Tarcizioo/portal-animes-V2-sub001/usersync"
)

const (
	usersCollection    = "users"
	commentsCollection = "comments"

	LibraryCollection       = "library"
	CharactersCollection    = "favorite_characters"
	StudiosCollection       = "followed_studios"
	NotificationsCollection = "notifications"
)

// userSubcollections are removed with the account
var userSubcollections = []string{LibraryCollection, CharactersCollection, StudiosCollection, NotificationsCollection}

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = usersync.ErrNotFound
	// ErrForbidden is returned when a user modifies a document they do not own
	ErrForbidden = errors.New("not allowed")
	// ErrPrivateProfile is returned when a private profile is requested by someone else
	ErrPrivateProfile = errors.New("profile is private")
)

// Config selects the Firebase project and credentials. With neither
// credential set, Application Default Credentials are used.
type Config struct {
	ProjectID         string
	CredentialsFile   string
	CredentialsBase64 string
}

// Client holds the Firestore and Auth clients of one Firebase app
type Client struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	logger    zerolog.Logger
}

// Open initializes the Firebase app
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	logger = logger.With().Str("component", "store").Logger()

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file %s: %w", cfg.CredentialsFile, err)
		}
		logger.Debug().Str("file", cfg.CredentialsFile).Msg("Using Firebase credentials file")
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.CredentialsBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(cfg.CredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 credentials: %w", err)
		}
		logger.Debug().Msg("Using base64 encoded Firebase credentials")
		opts = append(opts, option.WithCredentialsJSON(decoded))
	default:
		logger.Debug().Msg("Using Application Default Credentials")
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("app.Auth: %w", err)
	}

	logger.Info().Str("project", cfg.ProjectID).Msg("Connected to Firebase")
	return &Client{Firestore: fs, Auth: authClient, logger: logger}, nil
}

// Close closes the Firestore client
func (c *Client) Close() error {
	return c.Firestore.Close()
}

// Sources returns the per-user collections wired for usersync
func (c *Client) Sources() usersync.Sources {
	return usersync.Sources{
		Library: NewCollection[anime.LibraryEntry](c.Firestore, LibraryCollection,
			WithOrder[anime.LibraryEntry]("updatedAt", firestore.Desc)),
		Characters: NewCollection[anime.FavoriteCharacter](c.Firestore, CharactersCollection,
			WithOrder[anime.FavoriteCharacter]("addedAt", firestore.Asc)),
		Studios: NewCollection[anime.FollowedStudio](c.Firestore, StudiosCollection,
			WithOrder[anime.FollowedStudio]("addedAt", firestore.Asc)),
		Notifications: NewCollection[anime.Notification](c.Firestore, NotificationsCollection,
			WithOrder[anime.Notification]("createdAt", firestore.Desc),
			WithDocID(func(n *anime.Notification, id string) { n.ID = id })),
	}
}

func userDoc(fs *firestore.Client, uid string) *firestore.DocumentRef {
	return fs.Collection(usersCollection).Doc(uid)
}

// translate maps gRPC status codes onto the package errors
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
