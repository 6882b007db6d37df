package nextcrm

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/nextcrm/gateway"
)

// Auth endpoints.
const (
	PathLogin          = "/api/auth/login/"
	PathLogout         = "/api/auth/logout/"
	PathRegister       = "/api/auth/register/"
	PathProfile        = "/api/auth/profile/"
	PathTokenRefresh   = "/api/auth/token/refresh/"
	PathPasswordChange = "/api/auth/password/change/"
	PathGDPRConsent    = "/api/auth/gdpr/consent/"
	PathGDPRExport     = "/api/auth/gdpr/export/"
	PathDeleteAccount  = "/api/auth/account/delete/"
)

type authResponse struct {
	Message string       `json:"message"`
	User    *UserProfile `json:"user"`
}

// Login posts credentials. On success the backend sets the session cookies
// in the Client's jar. A 401 here means bad credentials, so the call is sent
// as already retried and never starts a refresh.
func (c *Client) Login(ctx context.Context, creds LoginCredentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return ErrMissingCredentials
	}
	var out authResponse
	return c.call(gateway.WithRetried(ctx), http.MethodPost, PathLogin, nil, creds, &out)
}

// Register creates an account. It does not sign in; Session().Register does
// both.
func (c *Client) Register(ctx context.Context, data RegisterData) error {
	if data.Password != data.PasswordConfirm {
		return ErrPasswordConfirm
	}
	var out authResponse
	return c.call(gateway.WithRetried(ctx), http.MethodPost, PathRegister, nil, data, &out)
}

// Logout asks the backend to drop the session cookies. Session().Logout
// clears local state regardless of the result.
func (c *Client) Logout(ctx context.Context) error {
	var out MessageResponse
	return c.call(ctx, http.MethodPost, PathLogout, nil, nil, &out)
}

// RefreshToken exchanges the refresh cookie for a new access cookie. The
// gateway does this on its own when a call gets a 401; direct calls are for
// tools that want to renew ahead of expiry.
func (c *Client) RefreshToken(ctx context.Context) error {
	var out MessageResponse
	return c.call(ctx, http.MethodPost, c.config.Gateway.RefreshPath, nil, nil, &out)
}

// Profile returns the signed-in user. It is the session probe.
func (c *Client) Profile(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := c.call(ctx, http.MethodGet, c.config.Gateway.ProbePath, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*UserProfile, error) {
	var out UserProfile
	if err := c.call(ctx, http.MethodPut, PathProfile, nil, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChangePassword(ctx context.Context, req PasswordChange) (string, error) {
	if req.NewPassword != req.NewPasswordConfirm {
		return "", ErrPasswordConfirm
	}
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, PathPasswordChange, nil, req, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// GDPRConsents lists the consent records of the signed-in user.
func (c *Client) GDPRConsents(ctx context.Context) ([]GDPRConsent, error) {
	var out []GDPRConsent
	if err := c.call(ctx, http.MethodGet, PathGDPRConsent, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordGDPRConsent stores one consent decision and returns the saved record.
func (c *Client) RecordGDPRConsent(ctx context.Context, consentType string, given bool) (*GDPRConsent, error) {
	in := GDPRConsent{ConsentType: consentType, ConsentGiven: given}
	var out GDPRConsent
	if err := c.call(ctx, http.MethodPost, PathGDPRConsent, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExportUserData(ctx context.Context) (*UserDataExport, error) {
	var out UserDataExport
	if err := c.call(ctx, http.MethodGet, PathGDPRExport, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAccount removes the account. The backend clears the cookies and the
// local session is cleared with them.
func (c *Client) DeleteAccount(ctx context.Context) (string, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodDelete, PathDeleteAccount, nil, nil, &out); err != nil {
		return "", err
	}
	c.gw.ClearSessionCookies()
	c.session.Clear(ctx)
	return out.Message, nil
}
