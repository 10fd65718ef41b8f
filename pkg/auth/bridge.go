// Package auth bridges an authentication provider to taskd's user profiles.
//
// The bridge exchanges credentials (or a federated assertion) for a session
// token and mirrors the provider identity into the user-profile collection.
// The one non-trivial invariant lives in UpsertProfile: an existing profile
// never loses its Role or CreatedAt to a re-authentication write.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/pkg/docstore"
	"github.com/fyrsmithlabs/taskd/pkg/model"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering an already-registered email.
	ErrEmailTaken = errors.New("email already registered")
)

// Identity is the record an authentication provider returns for a sign-in.
type Identity struct {
	ID          string
	Email       string
	Name        string
	Avatar      string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Provider is a federated sign-in collaborator, treated as opaque.
// It exchanges a provider-specific assertion for a verified identity.
type Provider interface {
	Exchange(ctx context.Context, assertion string) (Identity, error)
}

// credential is a stored password digest, looked up by email.
type credential struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	UserID string `json:"userId"`
	Digest string `json:"digest"`
}

// Bridge wraps the auth collaborator and the user-profile collection.
type Bridge struct {
	users  *docstore.Collection
	creds  *docstore.Collection
	tokens *TokenIssuer
	log    *logging.Logger
	now    func() time.Time
}

// NewBridge creates an auth bridge over the users and credentials collections.
func NewBridge(users, creds *docstore.Collection, tokens *TokenIssuer, log *logging.Logger) *Bridge {
	return &Bridge{
		users:  users,
		creds:  creds,
		tokens: tokens,
		log:    log.Named("auth"),
		now:    time.Now,
	}
}

// Register creates a new account with a password credential, upserts the
// profile, and returns the signed-in user with a session token.
func (b *Bridge) Register(ctx context.Context, email, password, name string) (*model.User, string, error) {
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	existing, err := b.creds.Find(ctx, docstore.Filter{Field: "email", Equals: email})
	if err != nil {
		return nil, "", fmt.Errorf("look up credential: %w", err)
	}
	if len(existing) > 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrEmailTaken, email)
	}

	now := b.now()
	user, err := b.UpsertProfile(ctx, model.User{
		ID:        "", // assigned below once the profile id is known
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, "", err
	}

	if _, err := b.creds.Create(ctx, credential{
		Email:  email,
		UserID: user.ID,
		Digest: digest(email, password),
	}); err != nil {
		return nil, "", fmt.Errorf("store credential: %w", err)
	}

	token, err := b.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}

	b.log.Info(ctx, "user registered", zap.String("user.id", user.ID))
	return user, token, nil
}

// Login exchanges a password for a session token.
func (b *Bridge) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	docs, err := b.creds.Find(ctx, docstore.Filter{Field: "email", Equals: email})
	if err != nil {
		return nil, "", fmt.Errorf("look up credential: %w", err)
	}
	if len(docs) == 0 {
		return nil, "", ErrInvalidCredentials
	}

	var cred credential
	if err := docs[0].Decode(&cred); err != nil {
		return nil, "", fmt.Errorf("decode credential: %w", err)
	}
	if cred.Digest != digest(email, password) {
		return nil, "", ErrInvalidCredentials
	}

	now := b.now()
	user, err := b.UpsertProfile(ctx, model.User{
		ID:        cred.UserID,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := b.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}

	b.log.Info(ctx, "user logged in", zap.String("user.id", user.ID))
	return user, token, nil
}

// SignInWithProvider runs a federated sign-in flow: exchange the assertion
// for an identity, mirror it into the profile collection, issue a token.
func (b *Bridge) SignInWithProvider(ctx context.Context, provider Provider, assertion string) (*model.User, string, error) {
	identity, err := provider.Exchange(ctx, assertion)
	if err != nil {
		return nil, "", fmt.Errorf("provider sign-in failed: %w", err)
	}

	user, err := b.UpsertProfile(ctx, mapIdentity(identity))
	if err != nil {
		return nil, "", err
	}

	token, err := b.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}

	b.log.Info(ctx, "federated sign-in", zap.String("user.id", user.ID))
	return user, token, nil
}

// UpdateProfile applies a profile-display patch to an existing user.
// Role and CreatedAt are not patchable; UpdatedAt is bumped.
func (b *Bridge) UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (*model.User, error) {
	fields := patch.Fields()
	fields["updatedAt"] = b.now()

	if err := b.users.Update(ctx, userID, fields); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	doc, err := b.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	var user model.User
	if err := doc.Decode(&user); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &user, nil
}

// UpsertProfile writes an incoming identity into the profile collection.
//
// If a profile already exists for the id, the write preserves the stored
// Role and CreatedAt; only profile-display fields and UpdatedAt change.
// Empty incoming display fields also keep their stored values so a sparse
// provider record does not blank out a profile. New profiles get RoleUser.
func (b *Bridge) UpsertProfile(ctx context.Context, incoming model.User) (*model.User, error) {
	now := b.now()

	if incoming.ID == "" {
		incoming.Role = model.RoleUser
		incoming.CreatedAt = now
		incoming.UpdatedAt = now
		id, err := b.users.Create(ctx, incoming)
		if err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		incoming.ID = id
		return &incoming, nil
	}

	doc, err := b.users.Get(ctx, incoming.ID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			if incoming.Role == "" {
				incoming.Role = model.RoleUser
			}
			if incoming.CreatedAt.IsZero() {
				incoming.CreatedAt = now
			}
			incoming.UpdatedAt = now
			if err := b.users.Set(ctx, incoming.ID, incoming); err != nil {
				return nil, fmt.Errorf("create profile: %w", err)
			}
			return &incoming, nil
		}
		return nil, err
	}

	var existing model.User
	if err := doc.Decode(&existing); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	merged := existing
	if incoming.Email != "" {
		merged.Email = incoming.Email
	}
	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	if incoming.Avatar != "" {
		merged.Avatar = incoming.Avatar
	}
	merged.UpdatedAt = now
	// Role and CreatedAt stay as stored, whatever the incoming write says.

	if err := b.users.Set(ctx, merged.ID, merged); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &merged, nil
}

// mapIdentity converts a provider identity into the local user shape.
func mapIdentity(identity Identity) model.User {
	return model.User{
		ID:        identity.ID,
		Email:     identity.Email,
		Name:      identity.Name,
		Avatar:    identity.Avatar,
		Role:      model.RoleUser,
		CreatedAt: identity.CreatedAt,
		UpdatedAt: identity.LastLoginAt,
	}
}

// digest derives a stable credential digest from email and password.
// The email acts as a per-account salt so equal passwords differ at rest.
func digest(email, password string) string {
	hash := sha256.Sum256([]byte(email + ":" + password))
	return hex.EncodeToString(hash[:])
}
