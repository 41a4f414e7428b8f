package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/premiumpay/premium-pay-api/internal/middleware"
	"github.com/premiumpay/premium-pay-api/internal/models"
	"github.com/premiumpay/premium-pay-api/internal/repository/repotest"
	"github.com/premiumpay/premium-pay-api/internal/services"
	"github.com/premiumpay/premium-pay-api/internal/storage"
	"github.com/premiumpay/premium-pay-api/internal/utils"
	appvalidator "github.com/premiumpay/premium-pay-api/internal/validator"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const agent = "test-agent/1.0"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.PasswordCost = bcrypt.MinCost
	appvalidator.ConfigureGin()
	os.Exit(m.Run())
}

type server struct {
	router *gin.Engine
	svc    *services.AccountService
}

func newServer(t *testing.T) *server {
	t.Helper()
	tokens, err := utils.NewTokenService("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	images, err := storage.NewLocalStorage(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	svc := services.NewAccountService(tokens, images, log)
	for _, kind := range services.Kinds() {
		svc.Register(kind, repotest.NewStore())
	}

	r := gin.New()
	RegisterRoutes(r, NewHandler(svc), middleware.NewAuth(tokens, svc))
	return &server{router: r, svc: svc}
}

func (s *server) do(req *http.Request, token string) *httptest.ResponseRecorder {
	req.Header.Set("User-Agent", agent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// seedSuper creates a super admin directly through the service and logs in
// over HTTP, returning the bearer token.
func (s *server) seedSuper(t *testing.T) string {
	t.Helper()
	creds, err := s.svc.Create(context.Background(), services.KindSuper, services.AccountInput{
		FullName:    "Root",
		PhoneNumber: "+998900000001",
		Email:       "root@x.com",
	}, pngFile(t))
	if err != nil {
		t.Fatalf("seed super: %v", err)
	}
	return s.login(t, "/api/super/login", creds.LoginName, creds.LoginPassword)
}

func (s *server) login(t *testing.T, path, name, password string) string {
	t.Helper()
	w := s.do(newLoginRequest(path, name, password), "")
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d, body = %s", path, w.Code, w.Body)
	}
	var body struct {
		Token string         `json:"token"`
		Data  models.Profile `json:"data"`
	}
	decode(t, w, &body)
	return body.Token
}

func newLoginRequest(path, name, password string) *http.Request {
	payload, _ := json.Marshal(map[string]string{"loginName": name, "loginPassword": password})
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func pngFile(t *testing.T) *multipart.FileHeader {
	t.Helper()
	req := formRequest(t, http.MethodPost, "/", nil, pngBytes(t))
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}
	return req.MultipartForm.File["imageUrl"][0]
}

func formRequest(t *testing.T, method, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		part, err := w.CreateFormFile("imageUrl", "avatar.png")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(image)
	}
	w.Close()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func adminFields() map[string]string {
	return map[string]string{
		"fullName":    "Dilshod Admin",
		"phoneNumber": "+998901234567",
		"email":       "dilshod@x.com",
	}
}

func userFields() map[string]string {
	return map[string]string{
		"fullName":             "Aziz Karimov",
		"phoneNumber":          "+998931112233",
		"email":                "aziz@x.com",
		"birthDate":            "1995-04-12",
		"gender":               "Мужской",
		"address[region]":      "Tashkent",
		"address[city]":        "Tashkent",
		"address[homeAddress]": "Amir Temur 1",
		"description":          "regular customer",
	}
}

func TestSuperCreatesAdminWhoCanLogIn(t *testing.T) {
	s := newServer(t)
	superToken := s.seedSuper(t)

	w := s.do(formRequest(t, http.MethodPost, "/api/admin/create", adminFields(), pngBytes(t)), superToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body)
	}
	var creds services.Credentials
	decode(t, w, &creds)
	if len(creds.LoginName) != utils.LoginNameLength || len(creds.LoginPassword) != utils.LoginPasswordLength {
		t.Fatalf("credentials = %+v", creds)
	}

	w = s.do(newLoginRequest("/api/admin/login", creds.LoginName, creds.LoginPassword), "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin login status = %d, body = %s", w.Code, w.Body)
	}
	var body struct {
		Message string         `json:"message"`
		Token   string         `json:"token"`
		Data    models.Profile `json:"data"`
	}
	decode(t, w, &body)
	if body.Message != "Here is your token" || body.Token == "" {
		t.Errorf("login body = %+v", body)
	}
	if body.Data.Role != models.RoleAdmin || body.Data.FullName != "Dilshod Admin" {
		t.Errorf("profile = %+v", body.Data)
	}
	if strings.Contains(w.Body.String(), "loginPassword") {
		t.Error("login response must not echo the password hash")
	}
}

func TestAdminManagesUsers(t *testing.T) {
	s := newServer(t)
	superToken := s.seedSuper(t)

	w := s.do(formRequest(t, http.MethodPost, "/api/admin/create", adminFields(), pngBytes(t)), superToken)
	var adminCreds services.Credentials
	decode(t, w, &adminCreds)
	adminToken := s.login(t, "/api/admin/login", adminCreds.LoginName, adminCreds.LoginPassword)

	w = s.do(formRequest(t, http.MethodPost, "/api/user/create", userFields(), pngBytes(t)), adminToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("create user status = %d, body = %s", w.Code, w.Body)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/user/all", nil), adminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var users []models.Account
	decode(t, w, &users)
	if len(users) != 1 {
		t.Fatalf("len(users) = %d, want 1", len(users))
	}
	user := users[0]
	if user.Address == nil || user.Address.HomeAddress != "Amir Temur 1" {
		t.Errorf("address = %+v", user.Address)
	}
	if user.BirthDate == nil || user.BirthDate.Year() != 1995 {
		t.Errorf("birthDate = %v", user.BirthDate)
	}
	id := user.ID.Hex()

	w = s.do(formRequest(t, http.MethodPut, "/api/user/update/"+id, map[string]string{"fullName": "Aziz K."}, nil), adminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body)
	}
	var updated struct {
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	decode(t, w, &updated)
	if updated.Message != "Successfully updated" || updated.Data["userID"] != id {
		t.Errorf("update body = %+v", updated)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/user/get/"+id, nil), adminToken)
	var got models.Account
	decode(t, w, &got)
	if got.FullName != "Aziz K." || got.Email != "aziz@x.com" {
		t.Errorf("after partial update = %+v", got)
	}

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/user/delete/"+id, nil), adminToken)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "User deleted") {
		t.Fatalf("delete status = %d, body = %s", w.Code, w.Body)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/user/get/"+id, nil), adminToken)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestUpdateAcceptsJSON(t *testing.T) {
	s := newServer(t)
	superToken := s.seedSuper(t)

	w := s.do(formRequest(t, http.MethodPost, "/api/admin/create", adminFields(), pngBytes(t)), superToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/admin/all", nil), superToken)
	var admins []models.Account
	decode(t, w, &admins)
	id := admins[0].ID.Hex()

	req := httptest.NewRequest(http.MethodPut, "/api/admin/update/"+id, strings.NewReader(`{"email":"new@x.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req, superToken)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/admin/get/"+id, nil), superToken)
	var got models.Account
	decode(t, w, &got)
	if got.Email != "new@x.com" || got.FullName != "Dilshod Admin" {
		t.Errorf("after update = %+v", got)
	}
}

func TestRoleGate(t *testing.T) {
	s := newServer(t)
	superToken := s.seedSuper(t)

	w := s.do(formRequest(t, http.MethodPost, "/api/user/create", userFields(), pngBytes(t)), superToken)
	var creds services.Credentials
	decode(t, w, &creds)
	userToken := s.login(t, "/api/user/login", creds.LoginName, creds.LoginPassword)

	for _, path := range []string{"/api/admin/all", "/api/user/all", "/api/super/all"} {
		w := s.do(httptest.NewRequest(http.MethodGet, path, nil), userToken)
		if w.Code != http.StatusForbidden {
			t.Errorf("user GET %s status = %d, want 403", path, w.Code)
		}
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/admin/all", nil), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
}

func TestCreateRejectsDuplicatePhone(t *testing.T) {
	s := newServer(t)
	superToken := s.seedSuper(t)

	first := s.do(formRequest(t, http.MethodPost, "/api/admin/create", adminFields(), pngBytes(t)), superToken)
	if first.Code != http.StatusCreated {
		t.Fatalf("first create status = %d", first.Code)
	}

	fields := adminFields()
	fields["email"] = "other@x.com"
	w := s.do(formRequest(t, http.MethodPost, "/api/admin/create", fields, pngBytes(t)), superToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate status = %d, want 400", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != "An admin with the given phone number already exists" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestCreateValidation(t *testing.T) {
	s := newServer(t)
	superToken := s.seedSuper(t)

	tests := []struct {
		name   string
		fields map[string]string
		image  []byte
		key    string
	}{
		{"bad phone", map[string]string{"fullName": "A", "phoneNumber": "12345", "email": "a@x.com"}, pngBytes(t), "phoneNumber"},
		{"bad email", map[string]string{"fullName": "A", "phoneNumber": "+998901234567", "email": "nope"}, pngBytes(t), "email"},
		{"missing image", adminFields(), nil, "imageUrl"},
		{"not an image", adminFields(), []byte("plain text, not a picture"), "imageUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(formRequest(t, http.MethodPost, "/api/admin/create", tt.fields, tt.image), superToken)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body)
			}
			var body map[string]string
			decode(t, w, &body)
			if body[tt.key] == "" {
				t.Errorf("body = %v, want key %q", body, tt.key)
			}
		})
	}
}

func TestCreateRejectsBadBirthDate(t *testing.T) {
	s := newServer(t)
	superToken := s.seedSuper(t)

	fields := userFields()
	fields["birthDate"] = "12/04/1995"
	w := s.do(formRequest(t, http.MethodPost, "/api/user/create", fields, pngBytes(t)), superToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["birthDate"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestLoginFailures(t *testing.T) {
	s := newServer(t)
	s.seedSuper(t)

	w := s.do(newLoginRequest("/api/admin/login", "NOBODY2345", "wrongpassword12"), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown login status = %d, want 401", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != "Invalid login credentials!" {
		t.Errorf("error = %q", body["error"])
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"loginName":""}`))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", w.Code)
	}
}

func TestLoginAnyFindsEveryKind(t *testing.T) {
	s := newServer(t)
	superToken := s.seedSuper(t)

	w := s.do(formRequest(t, http.MethodPost, "/api/admin/create", adminFields(), pngBytes(t)), superToken)
	var creds services.Credentials
	decode(t, w, &creds)

	w = s.do(newLoginRequest("/api/login", creds.LoginName, creds.LoginPassword), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var body struct {
		Data models.Profile `json:"data"`
	}
	decode(t, w, &body)
	if body.Data.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", body.Data.Role)
	}
}

func TestNewLoginSupersedesOldToken(t *testing.T) {
	s := newServer(t)
	creds, err := s.svc.Create(context.Background(), services.KindSuper, services.AccountInput{
		FullName: "Root", PhoneNumber: "+998900000001", Email: "root@x.com",
	}, pngFile(t))
	if err != nil {
		t.Fatal(err)
	}
	first := s.login(t, "/api/super/login", creds.LoginName, creds.LoginPassword)
	second := s.login(t, "/api/super/login", creds.LoginName, creds.LoginPassword)

	if w := s.do(httptest.NewRequest(http.MethodGet, "/api/super/all", nil), first); w.Code != http.StatusForbidden {
		t.Errorf("old token status = %d, want 403", w.Code)
	}
	if w := s.do(httptest.NewRequest(http.MethodGet, "/api/super/all", nil), second); w.Code != http.StatusOK {
		t.Errorf("new token status = %d, want 200", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/", nil), "")
	if w.Code != http.StatusOK || w.Body.String() != "premium pay" {
		t.Errorf("GET / = %d %q", w.Code, w.Body)
	}
}
