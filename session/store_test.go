package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/nextcrm/internal/events"
	"github.com/MrEthical07/nextcrm/internal/metrics"
)

type fakeBackend struct {
	mu          sync.Mutex
	loginErr    error
	registerErr error
	logoutErr   error
	profileErr  error
	updateErr   error
	profile     *UserProfile
	calls       []string
}

func (b *fakeBackend) record(name string) {
	b.mu.Lock()
	b.calls = append(b.calls, name)
	b.mu.Unlock()
}

func (b *fakeBackend) Login(_ context.Context, creds LoginCredentials) error {
	b.record("login:" + creds.Username)
	return b.loginErr
}

func (b *fakeBackend) Register(_ context.Context, data RegisterData) error {
	b.record("register:" + data.Username)
	return b.registerErr
}

func (b *fakeBackend) Logout(context.Context) error {
	b.record("logout")
	return b.logoutErr
}

func (b *fakeBackend) Profile(context.Context) (*UserProfile, error) {
	b.record("profile")
	if b.profileErr != nil {
		return nil, b.profileErr
	}
	return b.profile.Clone(), nil
}

func (b *fakeBackend) UpdateProfile(_ context.Context, u ProfileUpdate) (*UserProfile, error) {
	b.record("update")
	if b.updateErr != nil {
		return nil, b.updateErr
	}
	p := b.profile.Clone()
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	return p, nil
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func trader() *UserProfile {
	return &UserProfile{ID: 1, Username: "trader1", Email: "trader1@nextcrm.test", FirstName: "Ana", LastName: "Ruiz"}
}

func TestLoginPopulatesSession(t *testing.T) {
	backend := &fakeBackend{profile: trader()}
	m := metrics.New(metrics.Config{Enabled: true})
	p := NewMemoryPersister()
	s := NewStore(backend, WithPersister(p), WithMetrics(m))

	profile, err := s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "Secret123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if profile.Username != "trader1" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	st := s.State()
	if !st.IsAuthenticated || st.IsLoading || st.Phase != PhaseAuthenticated || !st.Validated {
		t.Fatalf("unexpected state %+v", st)
	}
	if !s.Trusted() {
		t.Fatal("expected trusted session after login")
	}
	if m.Value(metrics.LoginSuccess) != 1 {
		t.Fatalf("expected one login success, got %d", m.Value(metrics.LoginSuccess))
	}

	snap, err := p.Load(context.Background())
	if err != nil || snap == nil || !snap.IsAuthenticated || snap.User.Username != "trader1" {
		t.Fatalf("expected persisted snapshot, got %+v err=%v", snap, err)
	}
}

func TestLoginFailureResetsLoading(t *testing.T) {
	want := errors.New("Invalid credentials")
	backend := &fakeBackend{loginErr: want, profile: trader()}
	s := NewStore(backend)

	_, err := s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "nope"})
	if !errors.Is(err, want) {
		t.Fatalf("expected backend error returned untouched, got %v", err)
	}
	st := s.State()
	if st.IsLoading || st.IsAuthenticated || st.Phase != PhaseAnonymous {
		t.Fatalf("unexpected state %+v", st)
	}
	if calls := backend.Calls(); len(calls) != 1 {
		t.Fatalf("expected no profile fetch after failed login, got %v", calls)
	}
}

func TestRejectedReloginKeepsPriorSession(t *testing.T) {
	backend := &fakeBackend{profile: trader()}
	s := NewStore(backend)
	if _, err := s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "Secret123"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	backend.loginErr = errors.New("Invalid credentials")
	if _, err := s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "nope"}); err == nil {
		t.Fatal("expected second login to fail")
	}
	st := s.State()
	if st.IsLoading || !st.IsAuthenticated || st.Phase != PhaseAuthenticated || st.Profile == nil {
		t.Fatalf("rejected login must leave the prior session intact, got %+v", st)
	}
	if !s.Trusted() {
		t.Fatal("prior confirmed session should stay trusted")
	}
}

func TestLoginWithFailedProfileClearsSession(t *testing.T) {
	backend := &fakeBackend{profile: trader()}
	p := NewMemoryPersister()
	s := NewStore(backend, WithPersister(p))
	if _, err := s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "Secret123"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	backend.profileErr = errors.New("profile unavailable")
	if _, err := s.Login(context.Background(), LoginCredentials{Username: "trader2", Password: "Secret123"}); err == nil {
		t.Fatal("expected login to fail when the profile cannot be loaded")
	}
	st := s.State()
	if st.IsLoading || st.IsAuthenticated || st.Profile != nil || st.Phase != PhaseAnonymous {
		t.Fatalf("expected anonymous state, got %+v", st)
	}
	if s.Trusted() {
		t.Fatal("cleared store must not be trusted")
	}
	if snap, _ := p.Load(context.Background()); snap != nil {
		t.Fatalf("expected persisted snapshot cleared, got %+v", snap)
	}
}

func TestRegisterFailureSkipsLogin(t *testing.T) {
	backend := &fakeBackend{registerErr: errors.New("A user with that username already exists."), profile: trader()}
	s := NewStore(backend)

	if _, err := s.Register(context.Background(), RegisterData{Username: "trader1", Password: "Secret123"}); err == nil {
		t.Fatal("expected register error")
	}
	if calls := backend.Calls(); len(calls) != 1 || calls[0] != "register:trader1" {
		t.Fatalf("expected only register call, got %v", calls)
	}
	if s.State().IsLoading {
		t.Fatal("loading flag must be reset")
	}
}

func TestRegisterLogsIn(t *testing.T) {
	backend := &fakeBackend{profile: trader()}
	s := NewStore(backend)

	profile, err := s.Register(context.Background(), RegisterData{Username: "trader1", Password: "Secret123", GDPRConsent: true})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile == nil || !s.IsAuthenticated() {
		t.Fatal("expected authenticated session after register")
	}
	want := []string{"register:trader1", "login:trader1", "profile"}
	if got := backend.Calls(); len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	backend := &fakeBackend{profile: trader(), logoutErr: errors.New("network down")}
	p := NewMemoryPersister()
	s := NewStore(backend, WithPersister(p))
	if _, err := s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "Secret123"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	s.Logout(context.Background())

	st := s.State()
	if st.IsAuthenticated || st.Profile != nil || st.IsLoading || st.Phase != PhaseAnonymous {
		t.Fatalf("unexpected state after logout %+v", st)
	}
	if len(p.Raw()) != 0 {
		t.Fatal("expected snapshot cleared on logout")
	}
}

func TestCheckAuthNeverFails(t *testing.T) {
	backend := &fakeBackend{profileErr: errors.New("401 Unauthorized")}
	s := NewStore(backend)

	st := s.CheckAuth(context.Background())
	if st.IsAuthenticated || st.Profile != nil || st.IsLoading || st.Phase != PhaseAnonymous {
		t.Fatalf("unexpected state %+v", st)
	}

	backend.profileErr = nil
	backend.profile = trader()
	st = s.CheckAuth(context.Background())
	if !st.IsAuthenticated || st.Profile == nil || st.Phase != PhaseAuthenticated {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestUpdateProfileKeepsPriorOnFailure(t *testing.T) {
	backend := &fakeBackend{profile: trader()}
	s := NewStore(backend)
	if _, err := s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "Secret123"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	phone := "+34 600 000 000"
	updated, err := s.UpdateProfile(context.Background(), ProfileUpdate{Phone: &phone})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != phone || s.Profile().Phone != phone {
		t.Fatal("expected stored profile to be replaced")
	}

	backend.updateErr = errors.New("Enter a valid email address.")
	name := "Bea"
	if _, err := s.UpdateProfile(context.Background(), ProfileUpdate{FirstName: &name}); err == nil {
		t.Fatal("expected update error")
	}
	if got := s.Profile(); got.FirstName != "Ana" || got.Phone != phone {
		t.Fatalf("prior profile must survive failure, got %+v", got)
	}
}

func TestRestoreIsUntrustedUntilChecked(t *testing.T) {
	p := NewMemoryPersister()
	if err := p.Save(context.Background(), Snapshot{User: trader(), IsAuthenticated: true}); err != nil {
		t.Fatalf("save: %v", err)
	}
	backend := &fakeBackend{profileErr: errors.New("401")}
	s := NewStore(backend, WithPersister(p))

	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	st := s.State()
	if !st.IsAuthenticated || st.Validated || st.IsLoading || st.Phase != PhaseUnknown {
		t.Fatalf("unexpected restored state %+v", st)
	}
	if s.Trusted() {
		t.Fatal("restored snapshot must not be trusted")
	}

	s.CheckAuth(context.Background())
	if s.IsAuthenticated() {
		t.Fatal("failed check must clear restored session")
	}
	if snap, _ := p.Load(context.Background()); snap != nil {
		t.Fatalf("expected snapshot cleared, got %+v", snap)
	}
}

func TestRestoreDiscardsCorruptSnapshot(t *testing.T) {
	p := NewMemoryPersister()
	p.SetRaw([]byte{9, '{'})
	s := NewStore(&fakeBackend{}, WithPersister(p))

	if err := s.Restore(context.Background()); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Fatalf("expected corrupt snapshot error, got %v", err)
	}
	if len(p.Raw()) != 0 {
		t.Fatal("corrupt snapshot must be removed")
	}
	if s.IsAuthenticated() {
		t.Fatal("store must stay anonymous")
	}
}

func TestClearAndSubscribe(t *testing.T) {
	backend := &fakeBackend{profile: trader()}
	sink := events.NewChannelSink(16)
	s := NewStore(backend, WithEvents(sink))

	var mu sync.Mutex
	var phases []Phase
	cancel := s.Subscribe(func(st State) {
		mu.Lock()
		phases = append(phases, st.Phase)
		mu.Unlock()
	})

	if _, err := s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "Secret123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	s.Clear(context.Background())
	cancel()
	s.Clear(context.Background())

	mu.Lock()
	defer mu.Unlock()
	want := []Phase{PhaseAuthenticating, PhaseAuthenticated, PhaseAnonymous}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phases = %v, want %v", phases, want)
		}
	}

	first := <-sink.Events()
	if first.EventType != events.TypeSessionLogin || first.Username != "trader1" {
		t.Fatalf("unexpected first event %+v", first)
	}
}

func TestPersistSkipsStaleSnapshot(t *testing.T) {
	p := NewMemoryPersister()
	s := NewStore(&fakeBackend{}, WithPersister(p))

	s.persist(context.Background(), Snapshot{User: trader(), IsAuthenticated: true}, 2)
	s.persist(context.Background(), Snapshot{}, 1)

	snap, err := p.Load(context.Background())
	if err != nil || snap == nil || !snap.IsAuthenticated {
		t.Fatalf("older snapshot must not overwrite a newer one, got %+v err=%v", snap, err)
	}
}

func TestPersistedSnapshotFollowsMemoryUnderConcurrency(t *testing.T) {
	backend := &fakeBackend{profile: trader()}
	p := NewMemoryPersister()
	s := NewStore(backend, WithPersister(p))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.Login(context.Background(), LoginCredentials{Username: "trader1", Password: "Secret123"})
				return
			}
			s.Clear(context.Background())
		}(i)
	}
	wg.Wait()

	snap, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	authenticated := s.IsAuthenticated()
	if authenticated != (snap != nil && snap.IsAuthenticated) {
		t.Fatalf("memory authenticated=%v but persisted %+v", authenticated, snap)
	}
}
