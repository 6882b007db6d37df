package session

import "time"

// Phase is the position of a Store in its state machine.
type Phase uint8

const (
	PhaseUnknown Phase = iota
	PhaseAuthenticating
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// UserProfile is the backend's view of the signed-in user.
type UserProfile struct {
	ID              int64      `json:"id,omitempty"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Phone           string     `json:"phone,omitempty"`
	Company         string     `json:"company,omitempty"`
	Position        string     `json:"position,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
	DateJoined      *time.Time `json:"date_joined,omitempty"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
	GDPRConsent     bool       `json:"gdpr_consent"`
	GDPRConsentDate *time.Time `json:"gdpr_consent_date,omitempty"`
	IsMFAEnabled    bool       `json:"is_mfa_enabled"`
}

// FullName joins first and last name, falling back to the username.
func (p *UserProfile) FullName() string {
	if p == nil {
		return ""
	}
	name := p.FirstName
	if p.LastName != "" {
		if name != "" {
			name += " "
		}
		name += p.LastName
	}
	if name == "" {
		return p.Username
	}
	return name
}

// Clone returns a deep copy of p.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.DateJoined = cloneTime(p.DateJoined)
	out.LastLogin = cloneTime(p.LastLogin)
	out.GDPRConsentDate = cloneTime(p.GDPRConsentDate)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterData struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Phone           string `json:"phone,omitempty"`
	Company         string `json:"company,omitempty"`
	Position        string `json:"position,omitempty"`
	GDPRConsent     bool   `json:"gdpr_consent"`
}

// ProfileUpdate is a partial profile update; nil fields are left unchanged.
type ProfileUpdate struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Company   *string `json:"company,omitempty"`
	Position  *string `json:"position,omitempty"`
	Timezone  *string `json:"timezone,omitempty"`
}

// State is a copy of a Store's state.
type State struct {
	Profile         *UserProfile
	IsAuthenticated bool
	IsLoading       bool
	Phase           Phase
	// Validated is true once the backend has confirmed the session in this
	// process. A restored snapshot starts unvalidated.
	Validated bool
}

func (s State) clone() State {
	s.Profile = s.Profile.Clone()
	return s
}

func anonymous() State {
	return State{Phase: PhaseAnonymous, Validated: true}
}

// Snapshot is the persisted subset of State.
type Snapshot struct {
	User            *UserProfile `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}
