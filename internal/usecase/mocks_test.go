package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/repository"
)

func timeNow() time.Time { return time.Now().UTC() }

// fakeDirectory serves roles and grants from in-memory maps.
type fakeDirectory struct {
	mu     sync.Mutex
	roles  map[string][]domain.Role
	grants map[string][]domain.PermissionCode

	grantErr map[string]error
	listErr  error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		roles:    make(map[string][]domain.Role),
		grants:   make(map[string][]domain.PermissionCode),
		grantErr: make(map[string]error),
	}
}

func (f *fakeDirectory) ListRolesForUser(_ context.Context, userID string) ([]domain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Role(nil), f.roles[userID]...), nil
}

func (f *fakeDirectory) ListGrantsForRole(_ context.Context, roleID string) ([]domain.PermissionCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.grantErr[roleID]; ok {
		return nil, err
	}
	grants, ok := f.grants[roleID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]domain.PermissionCode(nil), grants...), nil
}

var _ port.RoleDirectory = (*fakeDirectory)(nil)

// fakeIdentity scripts the identity provider collaborator.
type fakeIdentity struct {
	mu           sync.Mutex
	signInCalls  int
	refreshCalls int
	signOutCalls int

	signIn  func(call int) (*port.SignInResult, error)
	refresh func(call int) (*port.RefreshResult, error)
	signOut func() error
}

func (f *fakeIdentity) SignIn(_ context.Context, _ port.Credentials) (*port.SignInResult, error) {
	f.mu.Lock()
	f.signInCalls++
	call := f.signInCalls
	fn := f.signIn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(call)
}

func (f *fakeIdentity) Refresh(_ context.Context, _ string) (*port.RefreshResult, error) {
	f.mu.Lock()
	f.refreshCalls++
	call := f.refreshCalls
	fn := f.refresh
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(call)
}

func (f *fakeIdentity) SignOut(_ context.Context, _ string) error {
	f.mu.Lock()
	f.signOutCalls++
	fn := f.signOut
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn()
}

func (f *fakeIdentity) calls() (signIn, refresh, signOut int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls, f.refreshCalls, f.signOutCalls
}

var _ port.IdentityProvider = (*fakeIdentity)(nil)

// recordingBroadcaster captures published events and optionally fails.
type recordingBroadcaster struct {
	mu       sync.Mutex
	events   []domain.SessionEvent
	err      error
	handlers []func(domain.SessionEvent)
}

func (b *recordingBroadcaster) Publish(_ context.Context, event domain.SessionEvent) error {
	b.mu.Lock()
	if b.err != nil {
		err := b.err
		b.mu.Unlock()
		return err
	}
	b.events = append(b.events, event)
	handlers := append(make([]func(domain.SessionEvent), 0, len(b.handlers)), b.handlers...)
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}

func (b *recordingBroadcaster) Subscribe(_ context.Context, handler func(domain.SessionEvent)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	return nil
}

func (b *recordingBroadcaster) published() []domain.SessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.SessionEvent(nil), b.events...)
}

var _ port.Broadcaster = (*recordingBroadcaster)(nil)

// fakeRoleRepo backs RoleService tests with in-memory state.
type fakeRoleRepo struct {
	mu          sync.Mutex
	byID        map[string]domain.Role
	byCode      map[string]string
	assignments map[string]map[string]bool
	grants      map[string][]domain.PermissionCode
	userRoles   map[string][]domain.Role
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		byID:        make(map[string]domain.Role),
		byCode:      make(map[string]string),
		assignments: make(map[string]map[string]bool),
		grants:      make(map[string][]domain.PermissionCode),
		userRoles:   make(map[string][]domain.Role),
	}
}

func (r *fakeRoleRepo) seed(role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[role.ID] = role
	r.byCode[role.Code] = role.ID
}

func (r *fakeRoleRepo) Create(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCode[role.Code]; exists {
		return repository.ErrConflict
	}
	r.byID[role.ID] = role
	r.byCode[role.Code] = role.ID
	return nil
}

func (r *fakeRoleRepo) GetByID(_ context.Context, id string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

func (r *fakeRoleRepo) GetByCode(_ context.Context, code string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	role := r.byID[id]
	return &role, nil
}

func (r *fakeRoleRepo) List(_ context.Context) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Role, 0, len(r.byID))
	for _, role := range r.byID {
		out = append(out, role)
	}
	return out, nil
}

func (r *fakeRoleRepo) Update(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[role.ID]; !ok {
		return repository.ErrNotFound
	}
	r.byID[role.ID] = role
	return nil
}

func (r *fakeRoleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byCode, role.Code)
	return nil
}

func (r *fakeRoleRepo) AssignToUser(_ context.Context, userID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assignments[userID] == nil {
		r.assignments[userID] = make(map[string]bool)
	}
	r.assignments[userID][roleID] = true
	return nil
}

func (r *fakeRoleRepo) RevokeFromUser(_ context.Context, userID, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.assignments[userID][roleID] {
		return repository.ErrNotFound
	}
	delete(r.assignments[userID], roleID)
	return nil
}

func (r *fakeRoleRepo) ListRolesForUser(_ context.Context, userID string) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Role(nil), r.userRoles[userID]...), nil
}

func (r *fakeRoleRepo) AddGrants(_ context.Context, roleID string, codes []domain.PermissionCode) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := make(map[domain.PermissionCode]bool, len(r.grants[roleID]))
	for _, code := range r.grants[roleID] {
		existing[code] = true
	}
	added := 0
	for _, code := range codes {
		if !existing[code] {
			r.grants[roleID] = append(r.grants[roleID], code)
			added++
		}
	}
	return added, nil
}

func (r *fakeRoleRepo) RemoveGrants(_ context.Context, roleID string, codes []domain.PermissionCode) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remove := make(map[domain.PermissionCode]bool, len(codes))
	for _, code := range codes {
		remove[code] = true
	}
	kept := r.grants[roleID][:0]
	removed := 0
	for _, code := range r.grants[roleID] {
		if remove[code] {
			removed++
			continue
		}
		kept = append(kept, code)
	}
	r.grants[roleID] = kept
	return removed, nil
}

func (r *fakeRoleRepo) ListGrantsForRole(_ context.Context, roleID string) ([]domain.PermissionCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grants, ok := r.grants[roleID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]domain.PermissionCode(nil), grants...), nil
}

var _ port.RoleRepository = (*fakeRoleRepo)(nil)

// fakeUserRepo stores accounts in memory.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return repository.ErrConflict
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == identifier || (user.Email != nil && *user.Email == identifier) {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

var _ port.UserRepository = (*fakeUserRepo)(nil)

// fakeTokenRepo stores refresh tokens keyed by hash.
type fakeTokenRepo struct {
	mu     sync.Mutex
	byID   map[string]domain.RefreshToken
	byHash map[string]string
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{
		byID:   make(map[string]domain.RefreshToken),
		byHash: make(map[string]string),
	}
}

func (r *fakeTokenRepo) CreateRefreshToken(_ context.Context, token domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[token.ID] = token
	r.byHash[token.TokenHash] = token.ID
	return nil
}

func (r *fakeTokenRepo) GetRefreshTokenByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	token := r.byID[id]
	return &token, nil
}

func (r *fakeTokenRepo) RevokeRefreshToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if token.RevokedAt == nil {
		now := timeNow()
		token.RevokedAt = &now
		r.byID[id] = token
	}
	return nil
}

var _ port.TokenRepository = (*fakeTokenRepo)(nil)

// nopEvents swallows domain events.
type nopEvents struct{}

func (nopEvents) PublishRolesAssigned(context.Context, domain.RolesAssignedEvent) error { return nil }
func (nopEvents) PublishRolesRevoked(context.Context, domain.RolesRevokedEvent) error   { return nil }
func (nopEvents) PublishGrantsChanged(context.Context, domain.GrantsChangedEvent) error { return nil }
func (nopEvents) PublishUserCreated(context.Context, domain.UserCreatedEvent) error     { return nil }
func (nopEvents) PublishSessionEnded(context.Context, domain.SessionEndedEvent) error   { return nil }

var _ port.EventPublisher = (*nopEvents)(nil)

// recordingEvents captures published session lifecycle events.
type recordingEvents struct {
	nopEvents

	mu           sync.Mutex
	sessionEnded []domain.SessionEndedEvent
}

func (r *recordingEvents) PublishSessionEnded(_ context.Context, event domain.SessionEndedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionEnded = append(r.sessionEnded, event)
	return nil
}

func (r *recordingEvents) ended() []domain.SessionEndedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SessionEndedEvent(nil), r.sessionEnded...)
}

var _ port.EventPublisher = (*recordingEvents)(nil)
