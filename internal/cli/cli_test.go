package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/creditgate/internal/config"
	"github.com/kailas-cloud/creditgate/internal/domain"
	memrepo "github.com/kailas-cloud/creditgate/internal/repository/memory"
)

// newTestApp builds an App over a fresh in-memory store shared by every
// command the test runs.
func newTestApp(t *testing.T) *App {
	t.Helper()
	var cfg config.Config
	cfg.Database.Driver = config.DriverMemory
	cfg.Auth.JWTSecret = "cli-test-secret-cli-test-secret!!"
	cfg.ApplyDefaults()

	app, err := NewApp(memrepo.New(), cfg, zap.NewNop())
	require.NoError(t, err)
	return app
}

// runCmd executes args against app and returns stdout.
func runCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd(func(context.Context, string) (*App, error) { return app, nil })
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env", "test"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_UserCreate(t *testing.T) {
	app := newTestApp(t)

	out, err := runCmd(t, app, "-o", "json", "user", "create", "Ops@Example.com", "Passw0rd", "--admin")
	require.NoError(t, err)

	var user userOutput
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "ops@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsVerified)
	assert.True(t, user.IsAdmin)
	require.NotNil(t, user.Credits)
	assert.Equal(t, int64(10), *user.Credits)
}

func TestCLI_UserCreate_WeakPassword(t *testing.T) {
	app := newTestApp(t)

	_, err := runCmd(t, app, "user", "create", "weak@example.com", "short")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "validation_failed", errorCode(err))
}

func TestCLI_UserList_Table(t *testing.T) {
	app := newTestApp(t)
	for _, email := range []string{"b@example.com", "a@example.com"} {
		_, err := runCmd(t, app, "user", "create", email, "Passw0rd")
		require.NoError(t, err)
	}

	out, err := runCmd(t, app, "user", "list")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "EMAIL")
	assert.Contains(t, string(lines[1]), "a@example.com")
	assert.Contains(t, string(lines[2]), "b@example.com")
}

func TestCLI_UserList_JSONPagination(t *testing.T) {
	app := newTestApp(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := runCmd(t, app, "user", "create", email, "Passw0rd")
		require.NoError(t, err)
	}

	out, err := runCmd(t, app, "-o", "json", "user", "list", "--page", "2", "--page-size", "2")
	require.NoError(t, err)

	var list userListOutput
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 2, list.Pages)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "c@example.com", list.Items[0].Email)
}

func TestCLI_CreditsSetAndGet(t *testing.T) {
	app := newTestApp(t)
	_, err := runCmd(t, app, "user", "create", "holder@example.com", "Passw0rd")
	require.NoError(t, err)

	_, err = runCmd(t, app, "credits", "set", "holder@example.com", "42")
	require.NoError(t, err)

	out, err := runCmd(t, app, "-o", "json", "credits", "get", "HOLDER@example.com")
	require.NoError(t, err)

	var credits creditsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &credits))
	require.NotNil(t, credits.Credits)
	assert.Equal(t, int64(42), *credits.Credits)
}

func TestCLI_CreditsSet_Errors(t *testing.T) {
	app := newTestApp(t)
	_, err := runCmd(t, app, "user", "create", "holder@example.com", "Passw0rd")
	require.NoError(t, err)

	_, err = runCmd(t, app, "credits", "set", "holder@example.com", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be an integer")

	_, err = runCmd(t, app, "credits", "set", "--", "holder@example.com", "-5")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = runCmd(t, app, "credits", "set", "nobody@example.com", "5")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCLI_UserSetAdminAndDelete(t *testing.T) {
	app := newTestApp(t)
	_, err := runCmd(t, app, "user", "create", "member@example.com", "Passw0rd")
	require.NoError(t, err)

	out, err := runCmd(t, app, "-o", "json", "user", "set-admin", "member@example.com")
	require.NoError(t, err)
	var user userOutput
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.True(t, user.IsAdmin)

	out, err = runCmd(t, app, "-o", "json", "user", "set-admin", "member@example.com", "--admin=false")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.False(t, user.IsAdmin)

	_, err = runCmd(t, app, "user", "delete", "member@example.com")
	require.NoError(t, err)

	_, err = runCmd(t, app, "credits", "get", "member@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCLI_Token(t *testing.T) {
	app := newTestApp(t)
	_, err := runCmd(t, app, "user", "create", "bot@example.com", "Passw0rd")
	require.NoError(t, err)

	out, err := runCmd(t, app, "token", "bot@example.com")
	require.NoError(t, err)

	p, err := app.Accounts.Authenticate(context.Background(), string(bytes.TrimSpace([]byte(out))))
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", p.Email())
}

func TestCLI_Migrate(t *testing.T) {
	out, err := runCmd(t, newTestApp(t), "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "up to date")
}

func TestCLI_InvalidOutputFormat(t *testing.T) {
	_, err := runCmd(t, newTestApp(t), "-o", "yaml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestCLI_MissingArgs(t *testing.T) {
	_, err := runCmd(t, newTestApp(t), "credits", "set", "only@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestCLI_OpenerError(t *testing.T) {
	boom := errors.New("store down")
	rootCmd := newRootCmd(func(context.Context, string) (*App, error) { return nil, boom })
	rootCmd.SetArgs([]string{"--env", "test", "credits", "get", "a@b.c"})
	rootCmd.SetOut(&bytes.Buffer{})

	err := rootCmd.Execute()
	assert.ErrorIs(t, err, boom)
}

func TestCLI_CommandTree(t *testing.T) {
	rootCmd := newRootCmd(OpenConfigured)
	for _, path := range [][]string{
		{"migrate"}, {"token"}, {"version"},
		{"user", "create"}, {"user", "list"}, {"user", "delete"}, {"user", "set-admin"},
		{"credits", "get"}, {"credits", "set"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
