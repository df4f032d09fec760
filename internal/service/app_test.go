package service

import (
	"errors"
	"testing"

	"github.com/pybroo/pybroo/internal/catalog"
	"github.com/pybroo/pybroo/internal/config"
	"github.com/pybroo/pybroo/internal/models"
	"github.com/pybroo/pybroo/internal/session"
	"github.com/pybroo/pybroo/internal/store"
	"github.com/pybroo/pybroo/pkg/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:    "test-secret-key-for-app-tests",
			TokenTTLDays: 7,
		},
	}
}

func newTestApp(t *testing.T) (*App, *store.Store, func()) {
	t.Helper()

	db, cleanup := testutil.SetupTest(t)
	st := store.New(db)
	app, err := NewApp(st, testConfig(), nil)
	if err != nil {
		cleanup()
		t.Fatalf("NewApp failed: %v", err)
	}
	return app, st, cleanup
}

func uploadDraft(title string) catalog.ResourceDraft {
	return catalog.ResourceDraft{
		Title:        title,
		Description:  "A full-featured server economy plugin with shops and auctions.",
		CategoryID:   "minecraft",
		DownloadLink: "https://example.com/file.zip",
	}
}

func login(t *testing.T, app *App, username string) {
	t.Helper()
	if _, err := app.Login(session.LoginInput{Username: username, Password: "pw"}); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
}

func TestApp_MutationsRequireSession(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	if _, err := app.Upload(uploadDraft("Economy Plugin")); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated for upload, got %v", err)
	}
	if _, err := app.Request(catalog.RequestDraft{
		Title:       "Stats Dashboard",
		Description: "A live statistics dashboard for server operators.",
		CategoryID:  "wordpress",
	}); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated for request, got %v", err)
	}
	if _, err := app.Upgrade(2, "TXN-0042-2024"); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated for upgrade, got %v", err)
	}
}

func TestApp_LoginIssuesValidToken(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	result, err := app.Login(session.LoginInput{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a session token")
	}
	if result.User.PasswordHash != "" {
		t.Fatal("auth result must not leak the password hash")
	}

	claims, err := app.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected token for alice, got %q", claims.Username)
	}
}

func TestApp_DownloadConsumesQuotaExactlyOncePerApproval(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	login(t, app, "alice")
	resource, err := app.Upload(uploadDraft("Economy Plugin"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	// Level 1 allows exactly three downloads.
	for i := 1; i <= 3; i++ {
		result, err := app.Download(resource.ID)
		if err != nil {
			t.Fatalf("download %d: %v", i, err)
		}
		if !result.Decision.Approved {
			t.Fatalf("expected approval on download %d, got %+v", i, result.Decision)
		}
		if result.User.Downloads != i {
			t.Fatalf("expected counter %d after %d approvals, got %d", i, i, result.User.Downloads)
		}
	}

	result, err := app.Download(resource.ID)
	if err != nil {
		t.Fatalf("fourth download: %v", err)
	}
	if result.Decision.Approved || result.Decision.Reason != catalog.ReasonQuotaExceeded {
		t.Fatalf("expected quota_exceeded on fourth download, got %+v", result.Decision)
	}
	if user := app.CurrentUser(); user.Downloads != 3 {
		t.Fatalf("denied download must not touch the counter, got %d", user.Downloads)
	}
}

func TestApp_DownloadDeniedForAnonymous(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	login(t, app, "alice")
	resource, err := app.Upload(uploadDraft("Economy Plugin"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := app.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// The catalog is session-scoped, so the resource is gone after logout.
	if _, err := app.Download(resource.ID); !errors.Is(err, catalog.ErrUnknownResource) {
		t.Fatalf("expected unknown resource after logout, got %v", err)
	}
}

func TestApp_DownloadUnknownResource(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	login(t, app, "alice")
	if _, err := app.Download(42); !errors.Is(err, catalog.ErrUnknownResource) {
		t.Fatalf("expected unknown resource, got %v", err)
	}
}

func TestApp_UpgradeLiftsQuotaCeiling(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	login(t, app, "alice")
	resource, err := app.Upload(uploadDraft("Economy Plugin"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := app.Download(resource.ID); err != nil {
			t.Fatalf("download %d: %v", i, err)
		}
	}
	result, err := app.Download(resource.ID)
	if err != nil {
		t.Fatalf("download at ceiling: %v", err)
	}
	if result.Decision.Reason != catalog.ReasonQuotaExceeded {
		t.Fatalf("expected quota_exceeded, got %+v", result.Decision)
	}

	user, err := app.Upgrade(2, "TXN-0042-2024")
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if user.Downloads != 3 || user.MaxDownloads != 20 {
		t.Fatalf("expected preserved counter under new ceiling, got %d/%d", user.Downloads, user.MaxDownloads)
	}

	result, err = app.Download(resource.ID)
	if err != nil {
		t.Fatalf("download after upgrade: %v", err)
	}
	if !result.Decision.Approved {
		t.Fatalf("expected approval after upgrade, got %+v", result.Decision)
	}
	if result.User.Downloads != 4 {
		t.Fatalf("expected counter 4 after upgrade download, got %d", result.User.Downloads)
	}
}

func TestApp_LogoutDropsAllSessionState(t *testing.T) {
	app, st, cleanup := newTestApp(t)
	defer cleanup()

	login(t, app, "alice")
	if _, err := app.Upload(uploadDraft("Economy Plugin")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := app.Request(catalog.RequestDraft{
		Title:       "Stats Dashboard",
		Description: "A live statistics dashboard for server operators.",
		CategoryID:  "wordpress",
	}); err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := app.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if app.CurrentUser() != nil {
		t.Fatal("expected anonymous session after logout")
	}
	if page := app.QueryCatalog(models.CatalogQuery{}); page.TotalCount != 0 {
		t.Fatalf("expected empty catalog after logout, got %d resources", page.TotalCount)
	}
	if reqs := app.Requests(); len(reqs) != 0 {
		t.Fatalf("expected no requests after logout, got %d", len(reqs))
	}

	// A fresh engine over the same store must also come up empty.
	restarted, err := NewApp(st, testConfig(), nil)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if restarted.CurrentUser() != nil || restarted.QueryCatalog(models.CatalogQuery{}).TotalCount != 0 {
		t.Fatal("logout must clear persisted state as well")
	}
}

func TestApp_StateSurvivesRestart(t *testing.T) {
	app, st, cleanup := newTestApp(t)
	defer cleanup()

	login(t, app, "alice")
	resource, err := app.Upload(uploadDraft("Economy Plugin"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := app.Download(resource.ID); err != nil {
		t.Fatalf("download: %v", err)
	}

	restarted, err := NewApp(st, testConfig(), nil)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}

	user := restarted.CurrentUser()
	if user == nil || user.Username != "alice" || user.Downloads != 1 {
		t.Fatalf("expected restored session with one download, got %+v", user)
	}
	page := restarted.QueryCatalog(models.CatalogQuery{})
	if page.TotalCount != 1 || page.Page[0].ID != resource.ID {
		t.Fatalf("expected restored catalog, got %+v", page)
	}
}

func TestApp_StatsReflectUploads(t *testing.T) {
	app, _, cleanup := newTestApp(t)
	defer cleanup()

	login(t, app, "alice")
	if _, err := app.Upload(uploadDraft("Economy Plugin")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	draft := uploadDraft("Backup Manager")
	draft.CategoryID = "wordpress"
	if _, err := app.Upload(draft); err != nil {
		t.Fatalf("upload: %v", err)
	}

	var minecraft, wordpress int
	for _, cc := range app.CategoryCounts() {
		switch cc.Category.ID {
		case "minecraft":
			minecraft = cc.Count
		case "wordpress":
			wordpress = cc.Count
		}
	}
	if minecraft != 1 || wordpress != 1 {
		t.Fatalf("unexpected category counts: minecraft=%d wordpress=%d", minecraft, wordpress)
	}

	top := app.TopContributors(8)
	if len(top) != 1 || top[0].Username != "alice" || top[0].Uploads != 2 {
		t.Fatalf("unexpected contributors: %+v", top)
	}

	recent := app.TopResources(1)
	if len(recent) != 1 || recent[0].Title != "Backup Manager" {
		t.Fatalf("expected most recent upload first, got %+v", recent)
	}
}
