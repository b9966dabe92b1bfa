package store

import (
	"context"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/auth"
)

// Identity is the signed-in user behind a verified ID token
type Identity struct {
	UID     string
	Name    string
	Email   string
	Picture string
}

// DisplayName returns the name to show for the user
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	return "Anonymous"
}

// Verifier checks Firebase ID tokens
type Verifier struct {
	auth *auth.Client
}

// NewVerifier creates a Verifier
func NewVerifier(client *auth.Client) *Verifier {
	return &Verifier{auth: client}
}

// Verifier returns a token verifier backed by this client
func (c *Client) Verifier() *Verifier {
	return NewVerifier(c.Auth)
}

// Verify validates idToken and returns the identity it carries
func (v *Verifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	token, err := v.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	return identityFromClaims(token.UID, token.Claims), nil
}

// DeleteUser removes the Firebase Auth account of uid
func (v *Verifier) DeleteUser(ctx context.Context, uid string) error {
	if err := v.auth.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return fmt.Errorf("delete auth user %s: %w", uid, err)
	}
	return nil
}

func identityFromClaims(uid string, claims map[string]interface{}) Identity {
	id := Identity{UID: uid}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if picture, ok := claims["picture"].(string); ok {
		id.Picture = picture
	}
	return id
}
