package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dmitrijs2005/famledger/internal/client/client"
	"github.com/dmitrijs2005/famledger/internal/client/config"
	"github.com/dmitrijs2005/famledger/internal/client/storage"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/testutil"
	"github.com/stretchr/testify/require"
)

// fakeClient serves the account calls from maps and the record calls from
// an in-memory remote.
type fakeClient struct {
	*testutil.MemoryRemote

	users   map[string][2][]byte
	members map[string][]models.Member
	tokens  client.Tokens
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		MemoryRemote: testutil.NewMemoryRemote(),
		users:        map[string][2][]byte{},
		members:      map[string][]models.Member{},
	}
}

func (f *fakeClient) Close() error              { return nil }
func (f *fakeClient) SetTokens(t client.Tokens) { f.tokens = t }

func (f *fakeClient) Register(_ context.Context, userName string, salt, verifier []byte) (string, error) {
	if _, ok := f.users[userName]; ok {
		return "", common.ErrAlreadyExists
	}
	f.users[userName] = [2][]byte{salt, verifier}
	return "id-" + userName, nil
}

func (f *fakeClient) GetSalt(_ context.Context, userName string) ([]byte, error) {
	u, ok := f.users[userName]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u[0], nil
}

func (f *fakeClient) Login(_ context.Context, userName string, verifier []byte) (*client.Tokens, error) {
	if !bytes.Equal(f.users[userName][1], verifier) {
		return nil, common.ErrUnauthorized
	}
	f.tokens = client.Tokens{UserID: "id-" + userName, AccessToken: "A", RefreshToken: "R"}
	t := f.tokens
	return &t, nil
}

func (f *fakeClient) CreateHousehold(_ context.Context, name string) (*models.Household, error) {
	h := &models.Household{ID: "h1", Name: name, CreatedBy: f.tokens.UserID}
	f.members[h.ID] = []models.Member{{HouseholdID: h.ID, UserID: f.tokens.UserID, UserName: "alice", Role: models.RoleOwner}}
	return h, nil
}

func (f *fakeClient) ListHouseholds(context.Context) ([]models.Household, error) {
	return []models.Household{{ID: "h1", Name: "Home"}}, nil
}

func (f *fakeClient) AddMember(_ context.Context, householdID, userName, role string) (*models.Member, error) {
	m := models.Member{HouseholdID: householdID, UserID: "id-" + userName, UserName: userName, Role: role}
	f.members[householdID] = append(f.members[householdID], m)
	return &m, nil
}

func (f *fakeClient) ListMembers(_ context.Context, householdID string) ([]models.Member, error) {
	return f.members[householdID], nil
}

func (f *fakeClient) PresignReceipt(context.Context, string, string, string) (string, string, error) {
	return "", "", common.ErrNetwork
}

func (f *fakeClient) ReceiptURL(context.Context, string, string) (string, error) {
	return "", common.ErrNetwork
}

type harness struct {
	t      *testing.T
	remote *fakeClient
	dbPath string
	out    bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	old := getPassword
	getPassword = func(io.Writer) ([]byte, error) {
		return []byte("pw"), nil
	}
	t.Cleanup(func() { getPassword = old })

	return &harness{t: t, remote: newFakeClient(), dbPath: filepath.Join(t.TempDir(), "famledger.db")}
}

func (h *harness) factory(ctx context.Context, c *config.Config) (*App, error) {
	db, err := storage.Open(ctx, h.dbPath)
	if err != nil {
		return nil, err
	}
	return NewApp(c, h.remote, db, strings.NewReader(""), &h.out, logging.Nop()), nil
}

func (h *harness) run(args ...string) (string, error) {
	h.out.Reset()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	err := Execute(context.Background(), cfg, h.factory, args)
	return h.out.String(), err
}

func (h *harness) must(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "famledger %v", args)
	return out
}

var createdID = regexp.MustCompile(`Created expense (\S+)`)

func TestCommands_EndToEnd(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("add", "expense", `{"amount":1}`)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	require.Contains(t, h.must("register", "alice"), "Registered alice")
	require.Contains(t, h.must("login", "alice"), "Logged in as alice (online)")

	_, err = h.run("add", "expense", `{"amount":1}`)
	require.ErrorIs(t, err, common.ErrNotFound, "no household selected yet")

	require.Contains(t, h.must("household", "create", "Home"), "Created household Home (h1)")
	require.Contains(t, h.must("household", "list"), "*")

	out := h.must("add", "expense", `{"amount":5,"category":"food"}`)
	m := createdID.FindStringSubmatch(out)
	require.Len(t, m, 2)
	id := m[1]

	require.Regexp(t, `version:\s+1\n`, h.must("show", id))
	require.Contains(t, h.must("update", id, `{"amount":6,"category":"food"}`), "to version 2")

	_, err = h.run("update", id, `{"amount":7}`, "--version", "1")
	require.ErrorIs(t, err, common.ErrVersionConflict)

	_, err = h.run("add", "expense", `{not json`)
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	require.Contains(t, h.must("list", "--where", "category=food"), id)
	require.NotContains(t, h.must("list", "--where", "category=rent"), id)

	require.Contains(t, h.must("sync"), "synced 2")
	require.Equal(t, 2, h.remote.Writes())

	hist := h.must("history", id)
	require.Contains(t, hist, `{"amount":5,"category":"food"}`)

	require.Contains(t, h.must("revert", id, "1"), "now version 3")
	require.Contains(t, h.must("delete", id), "version 4")
	require.Contains(t, h.must("list", "--deleted"), "(deleted)")

	st := h.must("status")
	require.Contains(t, st, "pending changes:")
	require.Contains(t, st, "online:")

	require.Contains(t, h.must("conflicts"), "no conflicts")

	_, err = h.run("resolve", "nope", "remote")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = h.run("resolve", "nope", "both")
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	require.Contains(t, h.must("household", "add-member", "bob"), "Added bob as member")
	require.Contains(t, h.must("household", "members"), "bob")

	require.Contains(t, h.must("logout"), "Logged out")
	_, err = h.run("show", id)
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestCommands_ListFlags(t *testing.T) {
	f := &listFlags{where: []string{"amount=5", "note=lunch"}, since: "2026-01-02T03:04:05Z"}
	got, err := f.filters()
	require.NoError(t, err)
	require.Equal(t, float64(5), got.PayloadEquals["amount"])
	require.Equal(t, "lunch", got.PayloadEquals["note"])
	require.NotNil(t, got.UpdatedSince)

	_, err = (&listFlags{where: []string{"novalue"}}).filters()
	require.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = (&listFlags{since: "yesterday"}).filters()
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}
