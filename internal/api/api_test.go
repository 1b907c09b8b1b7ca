package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fleetsign/fleetsign/internal/audit"
	"github.com/fleetsign/fleetsign/internal/auth"
	"github.com/fleetsign/fleetsign/internal/blobstore"
	"github.com/fleetsign/fleetsign/internal/config"
	"github.com/fleetsign/fleetsign/internal/events"
	"github.com/fleetsign/fleetsign/internal/ingest"
	"github.com/fleetsign/fleetsign/internal/logbuffer"
	"github.com/fleetsign/fleetsign/internal/models"
	"github.com/fleetsign/fleetsign/internal/playlist"
	"github.com/fleetsign/fleetsign/internal/presence"
	"github.com/fleetsign/fleetsign/internal/resolver"
)

var testSecret = []byte("test-secret")

func testAPI(t *testing.T) (http.Handler, *gorm.DB, *playlist.MemoryStore, string) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&models.User{}, &models.Advertiser{}, &models.Driver{}, &models.TerminalPresence{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := events.NewBus()
	store := playlist.NewMemoryStore()
	authoring := playlist.NewAuthoring(store, bus, zerolog.Nop())

	mediaRoot := t.TempDir()
	cfg := &config.Config{MediaRoot: mediaRoot, BaseURL: "http://admin.example.com"}
	ingestSvc, err := ingest.NewService(cfg, bus, zerolog.Nop())
	if err != nil {
		t.Fatalf("ingest service: %v", err)
	}

	presenceSvc := presence.NewService(presence.NewGormStore(database), nil, bus, zerolog.Nop())

	logs := logbuffer.New(64)
	logs.Add(logbuffer.LogEntry{Timestamp: time.Now(), Level: "info", Message: "server started"})

	auditSvc := audit.NewService(database, bus, zerolog.Nop())

	apiSvc := New(database, testSecret, authoring, store, ingestSvc, presenceSvc, bus, logs, auditSvc, zerolog.Nop())
	router := chi.NewRouter()
	apiSvc.Routes(router)

	return router, database, store, mediaRoot
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.Issue(testSecret, auth.Claims{UserID: "admin", Role: string(models.RoleAdmin)}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func terminalToken(t *testing.T) string {
	t.Helper()
	token, err := auth.Issue(testSecret, auth.Claims{UserID: "term", Role: string(models.RoleTerminal), TerminalID: "tablet-1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewBuffer(encoded)
	} else {
		payload = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestLoginAndPlaylistRoundTrip(t *testing.T) {
	handler, database, _, _ := testAPI(t)

	hashed, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := models.User{ID: uuid.NewString(), Email: "admin@example.com", Password: hashed, Role: models.RoleAdmin}
	if err := database.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	rr := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "hunter2",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rr.Code, rr.Body.String())
	}
	var login struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || login.Role != "admin" {
		t.Fatalf("login response = %+v", login)
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/v1/playlist/entries", login.Token, map[string]string{
		"source_kind": "remote-link", "locator": "https://cdn.example.com/a.mp4", "display_name": "Spot A",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("append status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/v1/playlist", login.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var snapshot struct {
		Entries  []playlist.MediaEntry `json:"entries"`
		Revision int64                 `json:"revision"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode playlist: %v", err)
	}
	if len(snapshot.Entries) != 1 || snapshot.Revision != 1 {
		t.Fatalf("playlist = %+v", snapshot)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler, database, _, _ := testAPI(t)

	hashed, _ := auth.HashPassword("correct")
	user := models.User{ID: uuid.NewString(), Email: "a@example.com", Password: hashed, Role: models.RoleAdmin}
	if err := database.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	rr := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "a@example.com", "password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "x",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d, want 401", rr.Code)
	}
}

func TestPlaylistMutationsRequireAdmin(t *testing.T) {
	handler, _, _, _ := testAPI(t)

	rr := doJSON(t, handler, http.MethodPost, "/api/v1/playlist/entries", terminalToken(t), map[string]string{
		"source_kind": "remote-link", "locator": "https://cdn.example.com/a.mp4",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("terminal append status = %d, want 403", rr.Code)
	}

	// Reads stay open to terminals.
	rr = doJSON(t, handler, http.MethodGet, "/api/v1/playlist", terminalToken(t), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("terminal read status = %d, want 200", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/v1/playlist", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous read status = %d, want 401", rr.Code)
	}
}

func TestPlaylistSwapAndRemove(t *testing.T) {
	handler, _, store, _ := testAPI(t)
	token := adminToken(t)

	for _, locator := range []string{"https://cdn.example.com/a.mp4", "https://cdn.example.com/b.mp4"} {
		rr := doJSON(t, handler, http.MethodPost, "/api/v1/playlist/entries", token, map[string]string{
			"source_kind": "remote-link", "locator": locator,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("append status = %d", rr.Code)
		}
	}

	rr := doJSON(t, handler, http.MethodPost, "/api/v1/playlist/entries/0/swap-next", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("swap status = %d body=%s", rr.Code, rr.Body.String())
	}

	// Swapping the last entry with its successor is out of range.
	rr = doJSON(t, handler, http.MethodPost, "/api/v1/playlist/entries/1/swap-next", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid swap status = %d, want 400", rr.Code)
	}

	snapshot, _ := store.Load(context.Background())
	target := snapshot.Entries[0].ID

	rr = doJSON(t, handler, http.MethodDelete, "/api/v1/playlist/entries/"+target, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodDelete, "/api/v1/playlist/entries/"+target, token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second remove status = %d, want 404", rr.Code)
	}
}

func TestMediaUploadStreamsToTerminals(t *testing.T) {
	handler, _, _, mediaRoot := testAPI(t)
	token := adminToken(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "Clip.MP4")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("payload")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.WriteField("display_name", "Clip"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/playlist/media", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body=%s", rr.Code, rr.Body.String())
	}

	var entry playlist.MediaEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.SourceKind != playlist.SourceRemoteLink {
		t.Fatalf("source kind = %q, want %q", entry.SourceKind, playlist.SourceRemoteLink)
	}
	const locatorPrefix = "http://admin.example.com/media/"
	if !strings.HasPrefix(entry.Locator, locatorPrefix) {
		t.Fatalf("locator = %q", entry.Locator)
	}
	if !strings.HasSuffix(entry.Locator, ".mp4") {
		t.Fatalf("extension not normalized: %q", entry.Locator)
	}

	key := strings.TrimPrefix(entry.Locator, locatorPrefix)
	stored, err := os.ReadFile(filepath.Join(mediaRoot, key))
	if err != nil {
		t.Fatalf("read stored object: %v", err)
	}
	if string(stored) != "payload" {
		t.Fatalf("stored content = %q", stored)
	}

	// A terminal holds no local copy of the upload; the entry must
	// resolve as a plain streamable URL against an empty blobstore.
	res := resolver.New(blobstore.New(t.TempDir(), zerolog.Nop()), zerolog.Nop())
	handle, err := res.Resolve(context.Background(), entry, 0)
	if err != nil {
		t.Fatalf("resolve uploaded entry: %v", err)
	}
	if handle.URI() != entry.Locator {
		t.Fatalf("resolved uri = %q, want %q", handle.URI(), entry.Locator)
	}
	handle.Release()

	// Removing the entry cleans up the stored object.
	rr = doJSON(t, handler, http.MethodDelete, "/api/v1/playlist/entries/"+entry.ID, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove status = %d", rr.Code)
	}
	if _, err := os.Stat(filepath.Join(mediaRoot, key)); !os.IsNotExist(err) {
		t.Fatalf("stored object not cleaned up: %v", err)
	}
}

func TestAdvertiserCRUD(t *testing.T) {
	handler, _, _, _ := testAPI(t)
	token := adminToken(t)

	rr := doJSON(t, handler, http.MethodPost, "/api/v1/advertisers/", token, map[string]any{
		"name": "Acme", "email": "ads@acme.example.com", "plan": "monthly",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rr.Code, rr.Body.String())
	}
	var created models.Advertiser
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || !created.Active {
		t.Fatalf("created = %+v", created)
	}

	rr = doJSON(t, handler, http.MethodPut, "/api/v1/advertisers/"+created.ID, token, map[string]any{
		"plan": "annual",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d", rr.Code)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/v1/advertisers/"+created.ID, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var fetched models.Advertiser
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetched: %v", err)
	}
	if fetched.Plan != "annual" || fetched.Name != "Acme" {
		t.Fatalf("fetched = %+v", fetched)
	}

	rr = doJSON(t, handler, http.MethodDelete, "/api/v1/advertisers/"+created.ID, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doJSON(t, handler, http.MethodGet, "/api/v1/advertisers/"+created.ID, token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestDashboardStats(t *testing.T) {
	handler, database, store, _ := testAPI(t)
	token := adminToken(t)

	if err := database.Create(&models.Advertiser{ID: uuid.NewString(), Name: "Acme"}).Error; err != nil {
		t.Fatalf("seed advertiser: %v", err)
	}
	if err := database.Create(&models.Driver{ID: uuid.NewString(), Name: "Sam"}).Error; err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	if _, err := store.Replace(context.Background(), []playlist.MediaEntry{
		{ID: "a", SourceKind: playlist.SourceRemoteLink, Locator: "https://cdn.example.com/a.mp4"},
	}); err != nil {
		t.Fatalf("seed playlist: %v", err)
	}

	rr := doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/stats", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status = %d body=%s", rr.Code, rr.Body.String())
	}
	var stats struct {
		Advertisers    int64 `json:"advertisers"`
		Drivers        int64 `json:"drivers"`
		PlaylistLength int   `json:"playlist_length"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Advertisers != 1 || stats.Drivers != 1 || stats.PlaylistLength != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestLogsList(t *testing.T) {
	handler, _, _, _ := testAPI(t)
	token := adminToken(t)

	rr := doJSON(t, handler, http.MethodGet, "/api/v1/logs", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logs status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Entries []logbuffer.LogEntry `json:"entries"`
		Stats   logbuffer.Stats      `json:"stats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Message != "server started" {
		t.Fatalf("entries = %+v", body.Entries)
	}
	if body.Stats.LevelCount["info"] != 1 {
		t.Fatalf("stats = %+v", body.Stats)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/v1/logs?level=error", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("filtered logs status = %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode filtered logs: %v", err)
	}
	if len(body.Entries) != 0 {
		t.Fatalf("filtered entries = %+v", body.Entries)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/v1/logs?limit=oops", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", rr.Code)
	}
}

func TestAuditList(t *testing.T) {
	handler, database, _, _ := testAPI(t)
	token := adminToken(t)

	auditSvc := audit.NewService(database, nil, zerolog.Nop())
	ctx := context.Background()
	if err := auditSvc.Log(ctx, &models.AuditLog{Action: models.AuditActionEntryAppend, Details: map[string]any{"entry_id": "e1"}}); err != nil {
		t.Fatalf("seed audit: %v", err)
	}
	if err := auditSvc.Log(ctx, &models.AuditLog{Action: models.AuditActionEntryRemove, Details: map[string]any{"entry_id": "e1"}}); err != nil {
		t.Fatalf("seed audit: %v", err)
	}

	rr := doJSON(t, handler, http.MethodGet, "/api/v1/audit", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("audit status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Entries []models.AuditLog `json:"entries"`
		Total   int64             `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if body.Total != 2 || len(body.Entries) != 2 {
		t.Fatalf("audit body = %+v", body)
	}

	rr = doJSON(t, handler, http.MethodGet, "/api/v1/audit?action=playlist.entry.append", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("filtered audit status = %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode filtered audit: %v", err)
	}
	if body.Total != 1 || body.Entries[0].Action != models.AuditActionEntryAppend {
		t.Fatalf("filtered audit body = %+v", body)
	}
}

func TestTerminalLoginLogoutTracksPresence(t *testing.T) {
	handler, database, _, _ := testAPI(t)

	hashed, _ := auth.HashPassword("secret")
	user := models.User{ID: uuid.NewString(), Email: "tablet-1@fleet.example.com", Password: hashed, Role: models.RoleTerminal}
	if err := database.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	rr := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "tablet-1@fleet.example.com", "password": "secret", "terminal_id": "tablet-1",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rr.Code, rr.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	var row models.TerminalPresence
	if err := database.First(&row, "terminal_id = ?", "tablet-1").Error; err != nil {
		t.Fatalf("presence row after login: %v", err)
	}
	if row.Status != string(presence.StatusOnline) {
		t.Fatalf("status after login = %q", row.Status)
	}

	rr = doJSON(t, handler, http.MethodPost, "/api/v1/auth/logout", login.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rr.Code)
	}
	if err := database.First(&row, "terminal_id = ?", "tablet-1").Error; err != nil {
		t.Fatalf("presence row after logout: %v", err)
	}
	if row.Status != string(presence.StatusOffline) {
		t.Fatalf("status after logout = %q", row.Status)
	}
}
