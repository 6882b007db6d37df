package session

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
	"go.uber.org/zap"
)

// Backend is the slice of the REST API the Store drives.
type Backend interface {
	Login(ctx context.Context, creds LoginCredentials) error
	Register(ctx context.Context, data RegisterData) error
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*UserProfile, error)
	UpdateProfile(ctx context.Context, update ProfileUpdate) (*UserProfile, error)
}

// Option configures a Store.
type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) {
		if p != nil {
			s.persister = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithEvents(e events.Emitter) Option {
	return func(s *Store) { s.events = e }
}

// Store is the single source of truth for whether the current user is
// authenticated. It is safe for concurrent use.
type Store struct {
	backend   Backend
	persister Persister
	logger    *zap.Logger
	metrics   *metrics.Metrics
	events    events.Emitter

	mu        sync.RWMutex
	state     State
	seq       uint64
	listeners map[uint64]func(State)
	nextID    uint64

	// persistMu orders writes to the persister; persisted is the seq of the
	// last snapshot written.
	persistMu sync.Mutex
	persisted uint64
}

// NewStore returns a Store in PhaseUnknown with no profile.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		persister: nopPersister{},
		logger:    zap.NewNop(),
		listeners: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates with the backend and loads the profile. Errors are
// returned untouched. A rejected login keeps whatever session was there
// before; a login whose profile fetch fails clears the store.
func (s *Store) Login(ctx context.Context, creds LoginCredentials) (*UserProfile, error) {
	var prior Phase
	s.update(ctx, func(st *State) {
		prior = st.Phase
		st.IsLoading = true
		st.Phase = PhaseAuthenticating
	})

	profile, accepted, err := s.login(ctx, creds)
	if err != nil {
		if accepted {
			s.Clear(ctx)
		} else {
			s.update(ctx, func(st *State) {
				st.IsLoading = false
				st.Phase = prior
				if !st.IsAuthenticated {
					st.Phase = PhaseAnonymous
				}
			})
		}
		s.metrics.Inc(metrics.LoginFailure)
		ev := events.New(events.TypeSessionLoginFailed, false)
		ev.Username = creds.Username
		ev.Error = err.Error()
		s.emit(ctx, ev)
		return nil, err
	}

	s.authenticated(ctx, profile)
	s.metrics.Inc(metrics.LoginSuccess)
	ev := events.New(events.TypeSessionLogin, true)
	ev.Username = profile.Username
	s.emit(ctx, ev)
	s.logger.Info("nextcrm: login succeeded", zap.String("username", profile.Username))
	return profile.Clone(), nil
}

// login reports accepted once the backend took the credentials, even when
// the profile fetch that follows fails.
func (s *Store) login(ctx context.Context, creds LoginCredentials) (profile *UserProfile, accepted bool, err error) {
	if err := s.backend.Login(ctx, creds); err != nil {
		return nil, false, err
	}
	profile, err = s.backend.Profile(ctx)
	if err != nil {
		return nil, true, err
	}
	if profile == nil {
		return nil, true, errors.New("session: backend returned no profile")
	}
	return profile, true, nil
}

// Register creates the account and then logs in with the same credentials.
// A registration failure is returned without attempting login.
func (s *Store) Register(ctx context.Context, data RegisterData) (*UserProfile, error) {
	s.update(ctx, func(st *State) { st.IsLoading = true })

	if err := s.backend.Register(ctx, data); err != nil {
		s.update(ctx, func(st *State) { st.IsLoading = false })
		s.metrics.Inc(metrics.RegisterFailure)
		ev := events.New(events.TypeSessionRegister, false)
		ev.Username = data.Username
		ev.Error = err.Error()
		s.emit(ctx, ev)
		return nil, err
	}

	s.metrics.Inc(metrics.RegisterSuccess)
	ev := events.New(events.TypeSessionRegister, true)
	ev.Username = data.Username
	s.emit(ctx, ev)

	return s.Login(ctx, LoginCredentials{Username: data.Username, Password: data.Password})
}

// Logout tells the backend and always clears local state. A backend failure
// is logged, never returned.
func (s *Store) Logout(ctx context.Context) {
	username := s.username()
	err := s.backend.Logout(ctx)
	if err != nil {
		s.metrics.Inc(metrics.LogoutBackendFailure)
		s.logger.Warn("nextcrm: logout request failed", zap.Error(err))
	}

	s.replace(ctx, anonymous())
	s.metrics.Inc(metrics.Logout)
	ev := events.New(events.TypeSessionLogout, err == nil)
	ev.Username = username
	if err != nil {
		ev.Error = err.Error()
	}
	s.emit(ctx, ev)
}

// CheckAuth asks the backend who the current user is. It never fails: an
// error of any kind leaves the store anonymous.
func (s *Store) CheckAuth(ctx context.Context) State {
	s.update(ctx, func(st *State) {
		st.IsLoading = true
		st.Phase = PhaseAuthenticating
	})

	profile, err := s.backend.Profile(ctx)
	if err != nil || profile == nil {
		s.replace(ctx, anonymous())
		s.metrics.Inc(metrics.SessionCheckFailure)
		ev := events.New(events.TypeSessionChecked, false)
		if err != nil {
			ev.Error = err.Error()
			s.logger.Debug("nextcrm: session check failed", zap.Error(err))
		}
		s.emit(ctx, ev)
		return s.State()
	}

	s.authenticated(ctx, profile)
	s.metrics.Inc(metrics.SessionCheckSuccess)
	ev := events.New(events.TypeSessionChecked, true)
	ev.Username = profile.Username
	s.emit(ctx, ev)
	return s.State()
}

// UpdateProfile applies a partial update. On failure the stored profile is
// left as it was.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) (*UserProfile, error) {
	profile, err := s.backend.UpdateProfile(ctx, update)
	if err != nil {
		s.metrics.Inc(metrics.ProfileUpdateFailure)
		ev := events.New(events.TypeProfileUpdated, false)
		ev.Username = s.username()
		ev.Error = err.Error()
		s.emit(ctx, ev)
		return nil, err
	}
	if profile == nil {
		return nil, errors.New("session: backend returned no profile")
	}

	s.update(ctx, func(st *State) { st.Profile = profile.Clone() })
	s.metrics.Inc(metrics.ProfileUpdateSuccess)
	ev := events.New(events.TypeProfileUpdated, true)
	ev.Username = profile.Username
	s.emit(ctx, ev)
	return profile.Clone(), nil
}

// Clear drops local state without calling the backend. The gateway calls it
// on its way to the login view.
func (s *Store) Clear(ctx context.Context) {
	username := s.username()
	s.replace(ctx, anonymous())
	ev := events.New(events.TypeSessionCleared, true)
	ev.Username = username
	s.emit(ctx, ev)
}

// Restore loads the persisted snapshot. The restored state is unvalidated
// until CheckAuth or Login confirms it. A corrupt snapshot is discarded.
func (s *Store) Restore(ctx context.Context) error {
	snap, err := s.persister.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrSnapshotCorrupt) {
			s.logger.Warn("nextcrm: discarding corrupt session snapshot", zap.Error(err))
			if cerr := s.persister.Clear(ctx); cerr != nil {
				s.logger.Warn("nextcrm: clear session snapshot failed", zap.Error(cerr))
			}
		}
		return err
	}
	if snap == nil {
		return nil
	}

	st := State{
		Profile:         snap.User.Clone(),
		IsAuthenticated: snap.IsAuthenticated && snap.User != nil,
		Phase:           PhaseUnknown,
	}
	s.mu.Lock()
	s.state = st
	listeners := s.snapshotListeners()
	s.mu.Unlock()
	notify(listeners, st.clone())
	return nil
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Trusted reports whether the backend confirmed the session in this process.
func (s *Store) Trusted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated && s.state.Validated
}

// Profile returns a copy of the stored profile, or nil.
func (s *Store) Profile() *UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Profile.Clone()
}

// Subscribe calls fn with a copy of the state after every change. The
// returned function removes the listener.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) authenticated(ctx context.Context, profile *UserProfile) {
	s.replace(ctx, State{
		Profile:         profile.Clone(),
		IsAuthenticated: true,
		Phase:           PhaseAuthenticated,
		Validated:       true,
	})
}

func (s *Store) username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Profile == nil {
		return ""
	}
	return s.state.Profile.Username
}

func (s *Store) replace(ctx context.Context, next State) {
	s.update(ctx, func(st *State) { *st = next })
}

// update applies fn under the lock, persists the snapshot when its subset
// changed, then notifies listeners.
func (s *Store) update(ctx context.Context, fn func(*State)) {
	s.mu.Lock()
	before := snapshotOf(s.state)
	fn(&s.state)
	after := snapshotOf(s.state)
	changed := !sameSnapshot(before, after)
	if changed {
		s.seq++
	}
	seq := s.seq
	st := s.state.clone()
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if changed {
		s.persist(ctx, after, seq)
	}
	notify(listeners, st)
}

// persist writes snap unless a newer snapshot has already been written.
func (s *Store) persist(ctx context.Context, snap Snapshot, seq uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if seq <= s.persisted {
		return
	}
	s.persisted = seq

	var err error
	if !snap.IsAuthenticated && snap.User == nil {
		err = s.persister.Clear(ctx)
	} else {
		err = s.persister.Save(ctx, snap)
	}
	if err != nil {
		s.logger.Warn("nextcrm: persist session snapshot failed", zap.Error(err))
	}
}

func (s *Store) snapshotListeners() []func(State) {
	out := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(State), st State) {
	for _, fn := range listeners {
		fn(st.clone())
	}
}

func (s *Store) emit(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, ev)
}

func snapshotOf(st State) Snapshot {
	return Snapshot{User: st.Profile, IsAuthenticated: st.IsAuthenticated}
}

// sameSnapshot compares profiles by identity; the store replaces profiles
// and never mutates them in place.
func sameSnapshot(a, b Snapshot) bool {
	return a.IsAuthenticated == b.IsAuthenticated && a.User == b.User
}
