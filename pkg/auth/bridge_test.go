package auth

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/pkg/docstore"
	"github.com/fyrsmithlabs/taskd/pkg/model"
)

// startTestNATSServer starts an embedded NATS server with JetStream for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()

	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1, // Random port
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func newTestBridge(t *testing.T) (*Bridge, *docstore.Collection, *TokenIssuer) {
	t.Helper()

	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	logger := logging.NewTestLogger().Logger
	client, err := docstore.New(nc, logger)
	require.NoError(t, err)

	ctx := context.Background()
	users, err := client.Collection(ctx, "users")
	require.NoError(t, err)
	creds, err := client.Collection(ctx, "credentials")
	require.NoError(t, err)

	tokens, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	return NewBridge(users, creds, tokens, logger), users, tokens
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	bridge, _, tokens := newTestBridge(t)
	ctx := context.Background()

	registered, token, err := bridge.Register(ctx, "alice@example.com", "s3cret", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, registered.ID)
	assert.Equal(t, model.RoleUser, registered.Role, "new accounts start as plain users")
	assert.Equal(t, "Alice", registered.Name)
	assert.NotEmpty(t, token)

	loggedIn, token, err := bridge.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, loggedIn.ID)
	assert.Equal(t, "Alice", loggedIn.Name, "login does not blank the stored name")

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)
	assert.Equal(t, model.RoleUser, claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	ctx := context.Background()

	_, _, err := bridge.Register(ctx, "alice@example.com", "s3cret", "Alice")
	require.NoError(t, err)

	_, _, err = bridge.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	bridge, _, _ := newTestBridge(t)

	_, _, err := bridge.Login(context.Background(), "nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_EmailTaken(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	ctx := context.Background()

	_, _, err := bridge.Register(ctx, "alice@example.com", "s3cret", "Alice")
	require.NoError(t, err)

	_, _, err = bridge.Register(ctx, "alice@example.com", "other", "Impostor")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_EmptyCredentials(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	ctx := context.Background()

	_, _, err := bridge.Register(ctx, "", "s3cret", "Alice")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = bridge.Register(ctx, "alice@example.com", "", "Alice")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpsertProfile_PreservesRoleAndCreatedAt(t *testing.T) {
	bridge, users, _ := newTestBridge(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, users.Set(ctx, "admin-1", model.User{
		ID:        "admin-1",
		Email:     "root@example.com",
		Name:      "Root",
		Role:      model.RoleAdmin,
		CreatedAt: created,
	}))

	// A re-authentication write carries neither role nor history; the stored
	// values must survive it.
	merged, err := bridge.UpsertProfile(ctx, model.User{
		ID:    "admin-1",
		Email: "root@example.com",
		Name:  "Root Renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, merged.Role)
	assert.True(t, merged.CreatedAt.Equal(created))
	assert.Equal(t, "Root Renamed", merged.Name)

	// Even an incoming write that claims a lesser role cannot demote.
	merged, err = bridge.UpsertProfile(ctx, model.User{
		ID:   "admin-1",
		Role: model.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, merged.Role)
}

func TestUpsertProfile_EmptyDisplayFieldsKeepStored(t *testing.T) {
	bridge, users, _ := newTestBridge(t)
	ctx := context.Background()

	require.NoError(t, users.Set(ctx, "u1", model.User{
		ID:     "u1",
		Email:  "alice@example.com",
		Name:   "Alice",
		Avatar: "https://example.com/a.png",
		Role:   model.RoleUser,
	}))

	merged, err := bridge.UpsertProfile(ctx, model.User{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", merged.Email)
	assert.Equal(t, "Alice", merged.Name)
	assert.Equal(t, "https://example.com/a.png", merged.Avatar)
}

type fakeProvider struct {
	identity Identity
	err      error
}

func (p fakeProvider) Exchange(_ context.Context, _ string) (Identity, error) {
	return p.identity, p.err
}

func TestSignInWithProvider(t *testing.T) {
	bridge, users, tokens := newTestBridge(t)
	ctx := context.Background()

	provider := fakeProvider{identity: Identity{
		ID:     "ext-42",
		Email:  "fed@example.com",
		Name:   "Fed User",
		Avatar: "https://example.com/f.png",
	}}

	user, token, err := bridge.SignInWithProvider(ctx, provider, "assertion")
	require.NoError(t, err)
	assert.Equal(t, "ext-42", user.ID)
	assert.Equal(t, model.RoleUser, user.Role)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ext-42", claims.UserID)

	doc, err := users.Get(ctx, "ext-42")
	require.NoError(t, err)
	var stored model.User
	require.NoError(t, doc.Decode(&stored))
	assert.Equal(t, "Fed User", stored.Name)
}

func TestSignInWithProvider_ExchangeFailure(t *testing.T) {
	bridge, _, _ := newTestBridge(t)

	_, _, err := bridge.SignInWithProvider(context.Background(), fakeProvider{err: assert.AnError}, "bad")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestUpdateProfile(t *testing.T) {
	bridge, _, _ := newTestBridge(t)
	ctx := context.Background()

	registered, _, err := bridge.Register(ctx, "alice@example.com", "s3cret", "Alice")
	require.NoError(t, err)

	name := "Alice B."
	avatar := "https://example.com/new.png"
	updated, err := bridge.UpdateProfile(ctx, registered.ID, model.ProfilePatch{Name: &name, Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", updated.Name)
	assert.Equal(t, "https://example.com/new.png", updated.Avatar)
	assert.Equal(t, model.RoleUser, updated.Role, "role is not patchable")
}

func TestUpdateProfile_MissingUser(t *testing.T) {
	bridge, _, _ := newTestBridge(t)

	name := "x"
	_, err := bridge.UpdateProfile(context.Background(), "no-such-user", model.ProfilePatch{Name: &name})
	assert.Error(t, err)
}
