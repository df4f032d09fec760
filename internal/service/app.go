package service

import (
	"sync"
	"time"

	"github.com/pybroo/pybroo/internal/catalog"
	"github.com/pybroo/pybroo/internal/config"
	"github.com/pybroo/pybroo/internal/models"
	"github.com/pybroo/pybroo/internal/session"
	"github.com/pybroo/pybroo/internal/store"
)

// App is the application orchestrator. It composes the store, the session
// manager and the catalog, loads persisted state at startup, and routes
// every UI event to the owning component. The engine is an event-driven
// single-writer system: one mutex serializes all mutations, and each
// component persists before swapping its in-memory state, so persistence
// for a mutation always happens-after the mutation and before the next
// event can observe it.
type App struct {
	mu       sync.Mutex
	sessions *session.Manager
	catalog  *catalog.Catalog
}

func NewApp(st *store.Store, cfg *config.Config, now func() time.Time) (*App, error) {
	sessions := session.NewManager(st, cfg, now)
	if err := sessions.LoadPersisted(); err != nil {
		return nil, err
	}

	cat := catalog.New(st, now)
	if err := cat.LoadPersisted(); err != nil {
		return nil, err
	}

	return &App{sessions: sessions, catalog: cat}, nil
}

// AuthResult bundles the signed-in user with their session token.
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (a *App) Login(in session.LoginInput) (*AuthResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, err := a.sessions.Login(in)
	if err != nil {
		return nil, err
	}
	token, err := a.sessions.IssueToken(user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Public(), Token: token}, nil
}

func (a *App) Register(in session.RegisterInput) (*AuthResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, err := a.sessions.Register(in)
	if err != nil {
		return nil, err
	}
	token, err := a.sessions.IssueToken(user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user.Public(), Token: token}, nil
}

// Logout ends the session and drops the session-scoped catalog collections
// along with all three persisted keys.
func (a *App) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.catalog.Reset(); err != nil {
		return err
	}
	return a.sessions.Logout()
}

// CurrentUser returns the signed-in user without secrets, or nil.
func (a *App) CurrentUser() *models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions.Current().Public()
}

// ValidateToken verifies a session token for the HTTP middleware.
func (a *App) ValidateToken(token string) (*session.Claims, error) {
	return a.sessions.ValidateToken(token)
}

// Upload adds a resource authored by the signed-in user.
func (a *App) Upload(draft catalog.ResourceDraft) (models.Resource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user := a.sessions.Current()
	if user == nil {
		return models.Resource{}, session.ErrNotAuthenticated
	}
	return a.catalog.AddResource(draft, user.Username)
}

// Request files a resource request for the signed-in user.
func (a *App) Request(draft catalog.RequestDraft) (models.Request, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user := a.sessions.Current()
	if user == nil {
		return models.Request{}, session.ErrNotAuthenticated
	}
	return a.catalog.AddRequest(draft, user.Username)
}

// Upgrade moves the signed-in user to a higher tier.
func (a *App) Upgrade(targetLevel int, utr string) (*models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, err := a.sessions.Upgrade(targetLevel, utr)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// DownloadResult reports the gate's decision plus, on approval, the target
// resource and the user's updated counters.
type DownloadResult struct {
	Decision catalog.Decision `json:"decision"`
	Resource *models.Resource `json:"resource,omitempty"`
	User     *models.User     `json:"user,omitempty"`
}

// Download authorizes a download of the given resource and, on approval,
// consumes exactly one unit of quota. Approval and consumption happen
// under the same lock: a denied attempt never touches the counter and an
// approved one can neither skip nor double the increment.
func (a *App) Download(resourceID int64) (*DownloadResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	resource, err := a.catalog.ResourceByID(resourceID)
	if err != nil {
		return nil, err
	}

	user := a.sessions.Current()
	decision := catalog.Authorize(user, &resource)
	if !decision.Approved {
		return &DownloadResult{Decision: decision}, nil
	}

	updated, err := a.sessions.RecordDownload()
	if err != nil {
		return nil, err
	}
	return &DownloadResult{
		Decision: decision,
		Resource: &resource,
		User:     updated.Public(),
	}, nil
}

// QueryCatalog computes a filtered, sorted, paged view of the resources.
func (a *App) QueryCatalog(q models.CatalogQuery) models.CatalogPage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return catalog.Query(a.catalog.Resources(), q)
}

func (a *App) Requests() []models.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.catalog.Requests()
}

func (a *App) CategoryCounts() []models.CategoryCount {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.catalog.CategoryCounts()
}

func (a *App) TopContributors(n int) []models.Contributor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.catalog.TopContributors(n)
}

func (a *App) TopResources(n int) []models.Resource {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.catalog.TopResources(n)
}
