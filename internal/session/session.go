package session

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pybroo/pybroo/internal/config"
	"github.com/pybroo/pybroo/internal/models"
	"github.com/pybroo/pybroo/internal/store"
	"github.com/pybroo/pybroo/pkg/logger"
	"github.com/pybroo/pybroo/pkg/sanitize"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
	minUTRLen      = 10

	maxUsernameLen = 64
	maxEmailLen    = 254
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidUpgrade   = errors.New("invalid level upgrade")
)

// Manager owns the current user record and every entitlement transition on
// it: login, register, logout, level upgrades and download consumption.
// It is an explicit session context, never ambient global state. Callers
// are expected to serialize access; the orchestrator runs all mutations on
// a single event path.
type Manager struct {
	store *store.Store
	cfg   *config.Config
	now   func() time.Time
	user  *models.User
}

func NewManager(st *store.Store, cfg *config.Config, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: st, cfg: cfg, now: now}
}

// LoadPersisted restores the user record saved by a previous run. A corrupt
// stored value is logged and treated as absent, never as fatal.
func (m *Manager) LoadPersisted() error {
	var u models.User
	found, err := m.store.Load(store.KeyUser, &u)
	if err != nil {
		if errors.Is(err, store.ErrCorruptState) {
			logger.Warn().Err(err).Msg("Discarding corrupt persisted user record")
			return nil
		}
		return err
	}
	if found {
		m.user = &u
	}
	return nil
}

// Current returns a copy of the signed-in user, or nil when anonymous.
func (m *Manager) Current() *models.User {
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) Authenticated() bool {
	return m.user != nil
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Login starts a session for the given identity. Credential verification is
// deliberately absent: given non-empty fields the call always succeeds and
// produces a fresh level-1 entitlement record.
func (m *Manager) Login(in LoginInput) (*models.User, error) {
	username := sanitize.Text(in.Username, maxUsernameLen)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	user := m.newLevelOneUser(username)
	if err := m.setUser(user); err != nil {
		return nil, err
	}

	logger.Audit("login", username, nil)
	return m.Current(), nil
}

// Register creates an account and starts a session. The password is hashed
// into the stored record so the persisted shape is complete; nothing ever
// verifies it against a later login.
func (m *Manager) Register(in RegisterInput) (*models.User, error) {
	username := sanitize.Text(in.Username, maxUsernameLen)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if len(username) < minUsernameLen {
		return nil, fmt.Errorf("%w: username must be at least %d characters", ErrValidation, minUsernameLen)
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !isValidEmail(email) {
		return nil, fmt.Errorf("%w: email is invalid", ErrValidation)
	}

	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if in.Password != in.ConfirmPassword {
		return nil, fmt.Errorf("%w: passwords do not match", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := m.newLevelOneUser(username)
	user.Email = strings.ToLower(email)
	user.PasswordHash = string(hash)
	joined := m.now()
	user.JoinDate = &joined

	if err := m.setUser(user); err != nil {
		return nil, err
	}

	logger.Audit("register", username, nil)
	return m.Current(), nil
}

// Logout ends the session and removes the persisted user record. Dropping
// the catalog's session-scoped collections is the orchestrator's job.
func (m *Manager) Logout() error {
	if err := m.store.Clear(store.KeyUser); err != nil {
		return err
	}
	username := ""
	if m.user != nil {
		username = m.user.Username
	}
	m.user = nil

	logger.Audit("logout", username, nil)
	return nil
}

// Upgrade moves the user to a strictly higher tier. The download counter is
// preserved across the transition; only the ceiling changes. Paid tiers
// require a payment reference (UTR) of at least ten characters. The
// reference is accepted as-is; real payment verification is out of scope.
func (m *Manager) Upgrade(targetLevel int, utr string) (*models.User, error) {
	if m.user == nil {
		return nil, ErrNotAuthenticated
	}

	level, ok := models.LevelByID(targetLevel)
	if !ok {
		return nil, fmt.Errorf("%w: unknown level %d", ErrValidation, targetLevel)
	}
	if level.ID <= m.user.Level {
		return nil, fmt.Errorf("%w: level %d is not above current level %d", ErrInvalidUpgrade, level.ID, m.user.Level)
	}

	if !level.Free() {
		if len(strings.TrimSpace(utr)) < minUTRLen {
			return nil, fmt.Errorf("%w: UTR number must be at least %d characters", ErrValidation, minUTRLen)
		}
	}

	updated := *m.user
	updated.Level = level.ID
	updated.MaxDownloads = level.MaxDownloads
	upgraded := m.now()
	updated.UpgradeDate = &upgraded

	if err := m.setUser(&updated); err != nil {
		return nil, err
	}

	logger.Audit("level_upgrade", updated.Username, map[string]string{
		"level": fmt.Sprintf("%d", level.ID),
	})
	return m.Current(), nil
}

// RecordDownload increments the consumption counter by exactly one. It does
// not check the ceiling: the authorization gate decides, this only consumes.
// The orchestrator invokes it once per approved download.
func (m *Manager) RecordDownload() (*models.User, error) {
	if m.user == nil {
		return nil, ErrNotAuthenticated
	}

	updated := *m.user
	updated.Downloads++

	if err := m.setUser(&updated); err != nil {
		return nil, err
	}
	return m.Current(), nil
}

// setUser persists then swaps, so a storage failure leaves the in-memory
// record untouched and no mutation is ever half-applied.
func (m *Manager) setUser(u *models.User) error {
	if err := m.store.Save(store.KeyUser, u); err != nil {
		return err
	}
	m.user = u
	return nil
}

func (m *Manager) newLevelOneUser(username string) *models.User {
	base := models.Levels[0]
	return &models.User{
		Username:     username,
		Level:        base.ID,
		Downloads:    0,
		MaxDownloads: base.MaxDownloads,
	}
}

func isValidEmail(email string) bool {
	if len(email) > maxEmailLen {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && strings.EqualFold(strings.TrimSpace(addr.Address), strings.TrimSpace(email))
}
