package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kailas-cloud/creditgate/internal/auth"
	"github.com/kailas-cloud/creditgate/internal/domain"
	"github.com/kailas-cloud/creditgate/internal/domain/account"
	memrepo "github.com/kailas-cloud/creditgate/internal/repository/memory"
	accountuc "github.com/kailas-cloud/creditgate/internal/usecase/account"
	adminuc "github.com/kailas-cloud/creditgate/internal/usecase/admin"
	computeuc "github.com/kailas-cloud/creditgate/internal/usecase/compute"
	healthuc "github.com/kailas-cloud/creditgate/internal/usecase/health"
	meteringuc "github.com/kailas-cloud/creditgate/internal/usecase/metering"
)

const testPassword = "Passw0rd!"

type discardNotifier struct{ last string }

func (n *discardNotifier) SendPasswordReset(_ context.Context, _, token string) error {
	n.last = token
	return nil
}

type testEnv struct {
	repo     *memrepo.Repo
	notifier *discardNotifier
	handler  http.Handler
}

func newTestEnv(t *testing.T, defaultCredits int64) *testEnv {
	t.Helper()
	repo := memrepo.New()
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   "test-secret",
		Issuer:   "creditgate-test",
		Audience: "creditgate:access",
		TTL:      time.Hour,
		ResetTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	notifier := &discardNotifier{}
	accounts := accountuc.New(repo, auth.NewHasher(bcrypt.MinCost), tokens, notifier)
	metering := meteringuc.New(repo, defaultCredits)
	srv := NewServer(
		accounts,
		metering,
		computeuc.New(metering),
		adminuc.New(repo),
		healthuc.New(repo),
		nil,
	)
	r := chi.NewRouter()
	Mount(r, srv, accounts)
	return &testEnv{repo: repo, notifier: notifier, handler: r}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// signup registers email and returns its id and an access token.
func (e *testEnv) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	rr := e.do(t, "POST", "/auth/register", "", RegisterRequest{Email: email, Password: testPassword})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: got %d: %s", email, rr.Code, rr.Body)
	}
	var user UserResponse
	decodeBody(t, rr, &user)

	rr = e.do(t, "POST", "/auth/jwt/login", "", LoginRequest{Username: email, Password: testPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: got %d: %s", email, rr.Code, rr.Body)
	}
	var login LoginResponse
	decodeBody(t, rr, &login)
	return user.ID, login.AccessToken
}

func (e *testEnv) promote(t *testing.T, id string) {
	t.Helper()
	yes := true
	if _, err := e.repo.PatchPrincipal(context.Background(), id, account.Patch{Admin: &yes}); err != nil {
		t.Fatalf("promote: %v", err)
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t, 10)

	rr := env.do(t, "POST", "/auth/register", "", RegisterRequest{Email: "a@b.c", Password: "weak"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	resp := decodeError(t, rr)
	if resp.Code != ErrorResponseCodeValidationFailed || resp.Field != "password" {
		t.Errorf("response = %+v", resp)
	}
}

func TestRegister_Duplicate_409(t *testing.T) {
	env := newTestEnv(t, 10)
	env.signup(t, "dup@example.com")

	rr := env.do(t, "POST", "/auth/register", "", RegisterRequest{Email: "DUP@example.com", Password: testPassword})
	if rr.Code != http.StatusConflict {
		t.Errorf("got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestRegister_MalformedBody_400(t *testing.T) {
	env := newTestEnv(t, 10)
	req := httptest.NewRequest("POST", "/auth/register", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestLogin_Form(t *testing.T) {
	env := newTestEnv(t, 10)
	env.signup(t, "form@example.com")

	form := url.Values{"username": {"form@example.com"}, "password": {testPassword}}
	req := httptest.NewRequest("POST", "/auth/jwt/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var login LoginResponse
	decodeBody(t, rr, &login)
	if login.AccessToken == "" || login.TokenType != "bearer" || login.ExpiresIn <= 0 {
		t.Errorf("login response = %+v", login)
	}
}

func TestLogin_WrongPassword_400(t *testing.T) {
	env := newTestEnv(t, 10)
	env.signup(t, "wrong@example.com")

	rr := env.do(t, "POST", "/auth/jwt/login", "", LoginRequest{Username: "wrong@example.com", Password: "Nope1234"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeInvalidCredentials {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestGetMe_MaterializesDefaultBalance(t *testing.T) {
	env := newTestEnv(t, 7)
	id, token := env.signup(t, "me@example.com")

	if _, err := env.repo.Get(context.Background(), id); err == nil {
		t.Fatal("balance must not exist before first access")
	}

	rr := env.do(t, "GET", "/users/me", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var me UserResponse
	decodeBody(t, rr, &me)
	if me.ID != id || me.Credits == nil || *me.Credits != 7 {
		t.Errorf("me = %+v", me)
	}
}

func TestPatchMe_Forbidden(t *testing.T) {
	env := newTestEnv(t, 10)
	_, token := env.signup(t, "patch@example.com")

	rr := env.do(t, "PATCH", "/users/me", token, map[string]any{"is_admin": true})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if resp := decodeError(t, rr); !strings.Contains(resp.Message, "/users/me/password") {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, 10)
	_, token := env.signup(t, "change@example.com")

	rr := env.do(t, "PATCH", "/users/me/password", token, ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "N3wPassword",
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}

	rr = env.do(t, "POST", "/auth/jwt/login", "", LoginRequest{Username: "change@example.com", Password: "N3wPassword"})
	if rr.Code != http.StatusOK {
		t.Errorf("login with new password: got %d", rr.Code)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t, 10)
	env.signup(t, "reset@example.com")

	rr := env.do(t, "POST", "/auth/forgot-password", "", ForgotPasswordRequest{Email: "unknown@example.com"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unknown email: got %d", rr.Code)
	}
	if env.notifier.last != "" {
		t.Fatal("no token must be sent for unknown email")
	}

	rr = env.do(t, "POST", "/auth/forgot-password", "", ForgotPasswordRequest{Email: "reset@example.com"})
	if rr.Code != http.StatusAccepted || env.notifier.last == "" {
		t.Fatalf("known email: got %d, token sent: %v", rr.Code, env.notifier.last != "")
	}

	rr = env.do(t, "POST", "/auth/reset-password", "", ResetPasswordRequest{Token: env.notifier.last, Password: "R3setPassword"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("reset: got %d: %s", rr.Code, rr.Body)
	}

	rr = env.do(t, "POST", "/auth/reset-password", "", ResetPasswordRequest{Token: env.notifier.last, Password: "An0therOne"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("reused token: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSum_ChargesOneCredit(t *testing.T) {
	env := newTestEnv(t, 2)
	_, token := env.signup(t, "sum@example.com")

	a, b := 40, 2
	rr := env.do(t, "POST", "/api/sum", token, SumRequest{A: &a, B: &b})
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var resp SumResponse
	decodeBody(t, rr, &resp)
	if resp.Result != 42 || resp.CreditsRemaining != 1 {
		t.Errorf("sum = %+v", resp)
	}
}

func TestSum_InsufficientCredits_402(t *testing.T) {
	env := newTestEnv(t, 1)
	_, token := env.signup(t, "poor@example.com")

	a, b := 1, 1
	if rr := env.do(t, "POST", "/api/sum", token, SumRequest{A: &a, B: &b}); rr.Code != http.StatusOK {
		t.Fatalf("first call: got %d", rr.Code)
	}
	rr := env.do(t, "POST", "/api/sum", token, SumRequest{A: &a, B: &b})
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusPaymentRequired)
	}
	resp := decodeError(t, rr)
	if resp.Code != ErrorResponseCodeInsufficientCredits || !strings.Contains(resp.Message, "top up") {
		t.Errorf("response = %+v", resp)
	}
}

func TestSum_Validation(t *testing.T) {
	env := newTestEnv(t, 5)
	id, token := env.signup(t, "range@example.com")

	big, zero := 1024, 0
	tests := []struct {
		name  string
		req   SumRequest
		field string
	}{
		{"missing a", SumRequest{B: &zero}, "a"},
		{"missing b", SumRequest{A: &zero}, "b"},
		{"out of range", SumRequest{A: &big, B: &zero}, "a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/sum", token, tc.req)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
			}
			if resp := decodeError(t, rr); resp.Field != tc.field {
				t.Errorf("field = %q, want %q", resp.Field, tc.field)
			}
		})
	}

	if _, err := env.repo.Get(context.Background(), id); err == nil {
		t.Error("rejected input must not touch the ledger")
	}
}

func TestAdminRoutes_NonAdminForbidden(t *testing.T) {
	env := newTestEnv(t, 10)
	id, token := env.signup(t, "user@example.com")

	credits := int64(99)
	requests := []struct {
		method, path string
		body         any
	}{
		{"GET", "/users", nil},
		{"GET", "/users/" + id, nil},
		{"PATCH", "/users/" + id, UpdateUserRequest{}},
		{"DELETE", "/users/" + id, nil},
		{"PATCH", "/users/" + id + "/credits", SetCreditsRequest{Credits: &credits}},
		{"PATCH", "/users/" + id + "/credits", SetCreditsRequest{}},
	}
	for _, tc := range requests {
		rr := env.do(t, tc.method, tc.path, token, tc.body)
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s %s: got %d, want %d", tc.method, tc.path, rr.Code, http.StatusForbidden)
		}
	}

	if _, err := env.repo.Get(context.Background(), id); err == nil {
		t.Error("forbidden credit update must not create a balance")
	}
}

func TestAdmin_SetCreditsThenOwnerSees(t *testing.T) {
	env := newTestEnv(t, 10)
	adminID, adminToken := env.signup(t, "admin@example.com")
	env.promote(t, adminID)
	userID, userToken := env.signup(t, "holder@example.com")

	credits := int64(42)
	rr := env.do(t, "PATCH", "/users/"+userID+"/credits", adminToken, SetCreditsRequest{Credits: &credits})
	if rr.Code != http.StatusOK {
		t.Fatalf("set credits: got %d: %s", rr.Code, rr.Body)
	}
	var cr CreditsResponse
	decodeBody(t, rr, &cr)
	if cr.UserID != userID || cr.Credits != 42 {
		t.Errorf("credits response = %+v", cr)
	}

	rr = env.do(t, "GET", "/users/me", userToken, nil)
	var me UserResponse
	decodeBody(t, rr, &me)
	if me.Credits == nil || *me.Credits != 42 {
		t.Errorf("owner credits = %v, want 42", me.Credits)
	}
}

func TestAdmin_SetCreditsErrors(t *testing.T) {
	env := newTestEnv(t, 10)
	adminID, adminToken := env.signup(t, "admin@example.com")
	env.promote(t, adminID)

	negative := int64(-1)
	rr := env.do(t, "PATCH", "/users/"+adminID+"/credits", adminToken, SetCreditsRequest{Credits: &negative})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	rr = env.do(t, "PATCH", "/users/"+adminID+"/credits", adminToken, SetCreditsRequest{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing credits: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	five := int64(5)
	for _, id := range []string{"not-a-uuid", "00000000-0000-4000-8000-000000000000"} {
		rr = env.do(t, "PATCH", "/users/"+id+"/credits", adminToken, SetCreditsRequest{Credits: &five})
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want %d", id, rr.Code, http.StatusNotFound)
		}
	}
}

func TestAdmin_DeleteUser(t *testing.T) {
	env := newTestEnv(t, 10)
	adminID, adminToken := env.signup(t, "admin@example.com")
	env.promote(t, adminID)
	userID, _ := env.signup(t, "gone@example.com")

	if rr := env.do(t, "DELETE", "/users/"+adminID, adminToken, nil); rr.Code != http.StatusForbidden {
		t.Errorf("self delete: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	for i := 0; i < 2; i++ {
		if rr := env.do(t, "DELETE", "/users/"+userID, adminToken, nil); rr.Code != http.StatusNoContent {
			t.Errorf("delete #%d: got %d, want %d", i+1, rr.Code, http.StatusNoContent)
		}
	}
	if rr := env.do(t, "GET", "/users/"+userID, adminToken, nil); rr.Code != http.StatusNotFound {
		t.Errorf("get deleted: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestAdmin_ListUsersPagination(t *testing.T) {
	env := newTestEnv(t, 10)
	adminID, adminToken := env.signup(t, "admin@example.com")
	env.promote(t, adminID)
	for i := 0; i < 4; i++ {
		env.signup(t, fmt.Sprintf("user%d@example.com", i))
	}

	rr := env.do(t, "GET", "/users?page=2&page_size=2", adminToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var list UserListResponse
	decodeBody(t, rr, &list)
	if list.Total != 5 || list.Pages != 3 || list.Page != 2 || len(list.Items) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if list.Items[0].Email != "user1@example.com" || list.Items[0].Credits != nil {
		t.Errorf("first item = %+v", list.Items[0])
	}

	if rr := env.do(t, "GET", "/users?page=abc", adminToken, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad page: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if rr := env.do(t, "GET", "/users?page_size=1000", adminToken, nil); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("oversized page: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestAdmin_UpdateUser(t *testing.T) {
	env := newTestEnv(t, 10)
	adminID, adminToken := env.signup(t, "admin@example.com")
	env.promote(t, adminID)
	userID, userToken := env.signup(t, "flags@example.com")

	yes, no := true, false
	rr := env.do(t, "PATCH", "/users/"+userID, adminToken, UpdateUserRequest{IsVerified: &yes, IsActive: &no})
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var user UserResponse
	decodeBody(t, rr, &user)
	if !user.IsVerified || user.IsActive {
		t.Errorf("user = %+v", user)
	}

	if rr := env.do(t, "GET", "/users/me", userToken, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("deactivated principal: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	if rr := env.do(t, "PATCH", "/users/"+adminID, adminToken, UpdateUserRequest{IsAdmin: &no}); rr.Code != http.StatusForbidden {
		t.Errorf("self demotion: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, 10)
	rr := env.do(t, "GET", "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp HealthResponse
	decodeBody(t, rr, &resp)
	if resp.Status != string(healthuc.Healthy) {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestUnknownRoute_JSON404(t *testing.T) {
	env := newTestEnv(t, 10)
	rr := env.do(t, "GET", "/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeNotFound {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestHandleDomainError_Mapping(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, nil, nil)
	tests := []struct {
		err  error
		want int
		code ErrorResponseCode
	}{
		{domain.NewValidationError("x", "bad"), http.StatusUnprocessableEntity, ErrorResponseCodeValidationFailed},
		{fmt.Errorf("charge: %w", domain.ErrInsufficientCredits), http.StatusPaymentRequired, ErrorResponseCodeInsufficientCredits},
		{domain.ErrForbidden, http.StatusForbidden, ErrorResponseCodeForbidden},
		{fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound, ErrorResponseCodeNotFound},
		{domain.ErrAlreadyExists, http.StatusConflict, ErrorResponseCodeAlreadyExists},
		{domain.ErrUnauthorized, http.StatusUnauthorized, ErrorResponseCodeUnauthorized},
		{domain.ErrInvalidCredentials, http.StatusBadRequest, ErrorResponseCodeInvalidCredentials},
		{domain.ErrInvalidToken, http.StatusBadRequest, ErrorResponseCodeInvalidToken},
		{fmt.Errorf("spend: %w", domain.ErrStorageUnavailable), http.StatusServiceUnavailable, ErrorResponseCodeStorageUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError, ErrorResponseCodeInternalError},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		s.handleDomainError(rr, httptest.NewRequest("GET", "/", http.NoBody), tc.err)
		if rr.Code != tc.want {
			t.Errorf("%v: status %d, want %d", tc.err, rr.Code, tc.want)
		}
		if resp := decodeError(t, rr); resp.Code != tc.code {
			t.Errorf("%v: code %s, want %s", tc.err, resp.Code, tc.code)
		}
	}
}

func TestSafeDomainMessage_HidesInternals(t *testing.T) {
	err := fmt.Errorf("select from principals where id=secret: %w", domain.ErrNotFound)
	if got := safeDomainMessage(err); got != "not found" {
		t.Errorf("got %q", got)
	}
	if got := safeDomainMessage(fmt.Errorf("dial tcp 10.0.0.1")); got != "internal error" {
		t.Errorf("got %q", got)
	}
}
