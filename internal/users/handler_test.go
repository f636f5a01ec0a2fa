package users_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/backend"
	"github.com/trunkline-ops/trunkline/internal/shared"
	"github.com/trunkline-ops/trunkline/internal/users"
	_ "github.com/trunkline-ops/trunkline/testing"
)

// stubDirectory records the drafts it receives and plays back canned
// responses, standing in for the billing backend.
type stubDirectory struct {
	accounts    []backend.User
	created     *backend.UserDraft
	updated     *backend.UserDraft
	updatedID   int64
	deactivated []int64
	err         error
}

func (s *stubDirectory) ListUsers(ctx context.Context) ([]backend.User, error) {
	return s.accounts, s.err
}

func (s *stubDirectory) CreateUser(ctx context.Context, draft backend.UserDraft) (backend.User, error) {
	if s.err != nil {
		return backend.User{}, s.err
	}
	s.created = &draft
	return backend.User{ID: 10, Email: draft.Email, FirstName: draft.FirstName, LastName: draft.LastName, Role: draft.Role, IsActive: true}, nil
}

func (s *stubDirectory) UpdateUser(ctx context.Context, id int64, draft backend.UserDraft) (backend.User, error) {
	if s.err != nil {
		return backend.User{}, s.err
	}
	s.updated = &draft
	s.updatedID = id
	return backend.User{ID: id, Email: draft.Email, Role: draft.Role, IsActive: true}, nil
}

func (s *stubDirectory) DeactivateUser(ctx context.Context, id int64) error {
	if s.err != nil {
		return s.err
	}
	s.deactivated = append(s.deactivated, id)
	return nil
}

type usersFixture struct {
	router    http.Handler
	directory *stubDirectory
}

func newUsersFixture(t *testing.T) *usersFixture {
	t.Helper()
	directory := &stubDirectory{}
	handler := users.NewHandler(users.NewService(directory), nil)

	r := chi.NewRouter()
	r.Route("/api/users", handler.MountRoutes)

	return &usersFixture{router: r, directory: directory}
}

func (f *usersFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	admin := auth.Principal{ID: 1, Email: "admin@trunkline.dz", Role: auth.RoleAdmin}
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), admin))
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestListUsers(t *testing.T) {
	f := newUsersFixture(t)
	f.directory.accounts = []backend.User{
		{ID: 1, Email: "admin@trunkline.dz", Role: "admin", IsActive: true},
		{ID: 2, Email: "k.meziane@trunkline.dz", Role: "viewer", IsActive: false},
	}

	res := f.do(t, http.MethodGet, "/api/users/", "")
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Users []backend.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Len(t, payload.Users, 2)
	require.False(t, payload.Users[1].IsActive, "deactivated accounts stay listed")
}

func TestCreateUserNormalizesDraft(t *testing.T) {
	f := newUsersFixture(t)

	res := f.do(t, http.MethodPost, "/api/users/",
		`{"email":"  K.Meziane@Trunkline.DZ ","first_name":" Kahina ","last_name":"Meziane","role":"viewer"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	require.NotNil(t, f.directory.created)
	require.Equal(t, "k.meziane@trunkline.dz", f.directory.created.Email)
	require.Equal(t, "Kahina", f.directory.created.FirstName)
	require.Equal(t, "viewer", f.directory.created.Role)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	f := newUsersFixture(t)

	res := f.do(t, http.MethodPost, "/api/users/",
		`{"email":"x@trunkline.dz","first_name":"X","last_name":"Y","role":"superuser"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Nil(t, f.directory.created, "invalid drafts must never reach the backend")
}

func TestCreateUserValidatesPayload(t *testing.T) {
	f := newUsersFixture(t)

	res := f.do(t, http.MethodPost, "/api/users/", `{"email":"not-an-email","role":"viewer"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	var problem struct {
		Title  string         `json:"title"`
		Extras map[string]any `json:"extras"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &problem))
	require.Equal(t, "Validation Failed", problem.Title)
	require.NotEmpty(t, problem.Extras["fields"])
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newUsersFixture(t)
	f.directory.err = shared.ErrConflict

	res := f.do(t, http.MethodPost, "/api/users/",
		`{"email":"dup@trunkline.dz","first_name":"D","last_name":"P","role":"viewer"}`)
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestUpdateUser(t *testing.T) {
	f := newUsersFixture(t)

	res := f.do(t, http.MethodPut, "/api/users/7",
		`{"email":"k.meziane@trunkline.dz","first_name":"Kahina","last_name":"Meziane","role":"admin"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, int64(7), f.directory.updatedID)
	require.Equal(t, "admin", f.directory.updated.Role)
}

func TestUpdateUserBadID(t *testing.T) {
	f := newUsersFixture(t)

	res := f.do(t, http.MethodPut, "/api/users/abc",
		`{"email":"k@trunkline.dz","first_name":"K","last_name":"M","role":"admin"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestDeactivateUser(t *testing.T) {
	f := newUsersFixture(t)

	res := f.do(t, http.MethodDelete, "/api/users/3", "")
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, []int64{3}, f.directory.deactivated)
}

func TestDeactivateUnknownUser(t *testing.T) {
	f := newUsersFixture(t)
	f.directory.err = shared.ErrNotFound

	res := f.do(t, http.MethodDelete, "/api/users/99", "")
	require.Equal(t, http.StatusNotFound, res.Code)
}
