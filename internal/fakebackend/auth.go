package fakebackend

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/nextcrm/jwt"
	"github.com/MrEthical07/nextcrm/password"
	"go.uber.org/zap"
)

// authed rejects requests without a live access cookie the way
// IsAuthenticated does in the real backend.
func (b *Backend) authed(next func(http.ResponseWriter, *http.Request, *user)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(AccessCookie)
		if err != nil || ck.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}
		u, ok := b.userForAccess(ck.Value)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next(w, r, u)
	}
}

func (b *Backend) userForAccess(token string) (*user, bool) {
	claims, err := b.tokens.Parse(token, jwt.TokenAccess)
	if err != nil {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	uid, live := b.liveAccess[claims.ID]
	if !live || uid != claims.UserID {
		return nil, false
	}
	u, ok := b.users[uid]
	return u, ok
}

func (b *Backend) issue(kind jwt.TokenType, uid int64) (string, error) {
	tok, err := b.tokens.Issue(kind, uid)
	if err != nil {
		return "", err
	}
	claims, err := jwt.Inspect(tok)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	if kind == jwt.TokenAccess {
		b.liveAccess[claims.ID] = uid
	} else {
		b.liveRefresh[claims.ID] = uid
	}
	b.mu.Unlock()
	return tok, nil
}

func (b *Backend) setCookie(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	b.mu.Lock()
	uid, ok := b.byUsername[strings.ToLower(body.Username)]
	var u *user
	if ok {
		u = b.users[uid]
	}
	b.mu.Unlock()

	if u == nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", "")
		return
	}
	match, err := b.hasher.Verify(body.Password, u.passwordHash)
	if err != nil || !match {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", "")
		return
	}

	access, err := b.issue(jwt.TokenAccess, u.id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed", "")
		return
	}
	refresh, err := b.issue(jwt.TokenRefresh, u.id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed", "")
		return
	}

	b.mu.Lock()
	u.profile["last_login"] = time.Now().UTC().Format(time.RFC3339)
	summary := map[string]any{
		"id":         u.id,
		"username":   u.username,
		"email":      u.profile["email"],
		"first_name": u.profile["first_name"],
		"last_name":  u.profile["last_name"],
	}
	b.mu.Unlock()

	b.setCookie(w, r, AccessCookie, access, b.cfg.AccessTTL)
	b.setCookie(w, r, RefreshCookie, refresh, b.cfg.RefreshTTL)
	b.logger.Info("fakebackend: login", zap.String("username", u.username))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    summary,
	})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		FirstName       string `json:"first_name"`
		LastName        string `json:"last_name"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
		Phone           string `json:"phone"`
		Company         string `json:"company"`
		Position        string `json:"position"`
		GDPRConsent     bool   `json:"gdpr_consent"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	errs := map[string][]string{}
	if strings.TrimSpace(body.Username) == "" {
		errs["username"] = []string{"This field is required."}
	}
	if strings.TrimSpace(body.Email) == "" {
		errs["email"] = []string{"This field is required."}
	}
	if body.Password != body.PasswordConfirm {
		errs["non_field_errors"] = []string{"Passwords don't match"}
	}
	if err := b.hasher.Check(body.Password); err != nil {
		var pe *password.PolicyError
		if errors.As(err, &pe) {
			errs["password"] = pe.Messages
		}
	}
	if !body.GDPRConsent {
		errs["gdpr_consent"] = []string{"GDPR consent is required"}
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	hash, err := b.hasher.Hash(body.Password)
	if err != nil {
		writeFieldErrors(w, map[string][]string{"password": {err.Error()}})
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	b.mu.Lock()
	id, err := b.addUserLocked(body.Username, hash, map[string]any{
		"email":             body.Email,
		"first_name":        body.FirstName,
		"last_name":         body.LastName,
		"phone":             body.Phone,
		"company":           body.Company,
		"position":          body.Position,
		"gdpr_consent":      true,
		"gdpr_consent_date": now,
	})
	if err == nil {
		b.users[id].consents = append(b.users[id].consents, map[string]any{
			"consent_type":  "data_processing",
			"consent_given": true,
			"consent_date":  now,
		})
	}
	b.mu.Unlock()
	if err != nil {
		writeFieldErrors(w, map[string][]string{"username": {"A user with that username already exists."}})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user": map[string]any{
			"id":       id,
			"username": body.Username,
			"email":    body.Email,
		},
	})
}

// handleRefresh follows the real view: the circuit breaker is checked
// first, both failure kinds count toward it and clear the cookies, and a
// success resets it.
func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	if d := time.Duration(b.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	ip := clientIP(r)
	if b.breakerOpen(ip) {
		writeError(w, http.StatusTooManyRequests, "Too many failed refresh attempts. Please login again.", CircuitBreakerCode)
		return
	}

	ck, err := r.Cookie(RefreshCookie)
	if err != nil || ck.Value == "" {
		b.recordRefreshFailure(ip)
		clearCookies(w)
		writeError(w, http.StatusUnauthorized, "Refresh token not found", "NO_REFRESH_TOKEN")
		return
	}

	uid, ok := b.liveRefreshUser(ck.Value)
	if !ok {
		b.recordRefreshFailure(ip)
		clearCookies(w)
		writeError(w, http.StatusUnauthorized, "Invalid refresh token", "INVALID_REFRESH_TOKEN")
		return
	}

	access, err := b.issue(jwt.TokenAccess, uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issue failed", "")
		return
	}
	b.mu.Lock()
	delete(b.breakers, ip)
	b.mu.Unlock()
	b.refreshOK.Add(1)

	b.setCookie(w, r, AccessCookie, access, b.cfg.AccessTTL)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed successfully"})
}

func (b *Backend) liveRefreshUser(token string) (int64, bool) {
	claims, err := b.tokens.Parse(token, jwt.TokenRefresh)
	if err != nil {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	uid, ok := b.liveRefresh[claims.ID]
	if !ok || uid != claims.UserID {
		return 0, false
	}
	_, exists := b.users[uid]
	return uid, exists
}

func (b *Backend) breakerOpen(ip string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	for _, key := range []string{"*", ip} {
		br, ok := b.breakers[key]
		if !ok {
			continue
		}
		if now.After(br.until) {
			delete(b.breakers, key)
			continue
		}
		if br.failures >= b.cfg.BreakerThreshold {
			br.until = now.Add(b.cfg.BreakerCooldown)
			return true
		}
	}
	return false
}

func (b *Backend) recordRefreshFailure(ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	br, ok := b.breakers[ip]
	if !ok {
		br = &breaker{}
		b.breakers[ip] = br
	}
	br.failures++
	br.until = time.Now().Add(b.cfg.BreakerCooldown)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request, u *user) {
	if ck, err := r.Cookie(RefreshCookie); err == nil {
		if claims, err := jwt.Inspect(ck.Value); err == nil {
			b.mu.Lock()
			delete(b.liveRefresh, claims.ID)
			b.mu.Unlock()
		}
	}
	if ck, err := r.Cookie(AccessCookie); err == nil {
		if claims, err := jwt.Inspect(ck.Value); err == nil {
			b.mu.Lock()
			delete(b.liveAccess, claims.ID)
			b.mu.Unlock()
		}
	}
	clearCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (b *Backend) handleProfile(w http.ResponseWriter, _ *http.Request, u *user) {
	b.mu.Lock()
	profile := copyObject(u.profile)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, profile)
}

var profileWritable = []string{"email", "first_name", "last_name", "phone", "company", "position", "timezone"}

func (b *Backend) handleProfileUpdate(w http.ResponseWriter, r *http.Request, u *user) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if email, ok := body["email"].(string); ok && !strings.Contains(email, "@") {
		writeFieldErrors(w, map[string][]string{"email": {"Enter a valid email address."}})
		return
	}

	b.mu.Lock()
	for _, k := range profileWritable {
		if v, ok := body[k]; ok {
			u.profile[k] = v
		}
	}
	profile := copyObject(u.profile)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, profile)
}

func (b *Backend) handlePasswordChange(w http.ResponseWriter, r *http.Request, u *user) {
	var body struct {
		CurrentPassword    string `json:"current_password"`
		NewPassword        string `json:"new_password"`
		NewPasswordConfirm string `json:"new_password_confirm"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	b.mu.Lock()
	current := u.passwordHash
	b.mu.Unlock()

	if ok, err := b.hasher.Verify(body.CurrentPassword, current); err != nil || !ok {
		writeFieldErrors(w, map[string][]string{"current_password": {"Current password is incorrect"}})
		return
	}
	if body.NewPassword != body.NewPasswordConfirm {
		writeFieldErrors(w, map[string][]string{"non_field_errors": {"New passwords don't match"}})
		return
	}
	hash, err := b.hasher.Hash(body.NewPassword)
	if err != nil {
		var pe *password.PolicyError
		if errors.As(err, &pe) {
			writeFieldErrors(w, map[string][]string{"new_password": pe.Messages})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	b.mu.Lock()
	u.passwordHash = hash
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

var consentTypes = map[string]bool{
	"data_processing": true,
	"marketing":       true,
	"analytics":       true,
	"cookies":         true,
}

func (b *Backend) handleConsentList(w http.ResponseWriter, _ *http.Request, u *user) {
	b.mu.Lock()
	out := make([]map[string]any, 0, len(u.consents))
	for _, c := range u.consents {
		out = append(out, copyObject(c))
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleConsentCreate(w http.ResponseWriter, r *http.Request, u *user) {
	var body struct {
		ConsentType  string `json:"consent_type"`
		ConsentGiven bool   `json:"consent_given"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if !consentTypes[body.ConsentType] {
		writeFieldErrors(w, map[string][]string{
			"consent_type": {`"` + body.ConsentType + `" is not a valid choice.`},
		})
		return
	}
	rec := map[string]any{
		"consent_type":  body.ConsentType,
		"consent_given": body.ConsentGiven,
		"consent_date":  time.Now().UTC().Format(time.RFC3339),
	}
	b.mu.Lock()
	u.consents = append(u.consents, rec)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, rec)
}

func (b *Backend) handleExport(w http.ResponseWriter, _ *http.Request, u *user) {
	b.mu.Lock()
	p := u.profile
	export := map[string]any{
		"personal_info": map[string]any{
			"username":    u.username,
			"email":       p["email"],
			"first_name":  p["first_name"],
			"last_name":   p["last_name"],
			"date_joined": p["date_joined"],
			"last_login":  p["last_login"],
		},
		"profile": map[string]any{
			"phone":             p["phone"],
			"company":           p["company"],
			"position":          p["position"],
			"timezone":          p["timezone"],
			"gdpr_consent":      p["gdpr_consent"],
			"gdpr_consent_date": p["gdpr_consent_date"],
		},
		"gdpr_records": append([]map[string]any{}, u.consents...),
		"audit_logs":   []any{},
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, export)
}

func (b *Backend) handleDeleteAccount(w http.ResponseWriter, _ *http.Request, u *user) {
	b.mu.Lock()
	delete(b.users, u.id)
	delete(b.byUsername, strings.ToLower(u.username))
	for jti, uid := range b.liveAccess {
		if uid == u.id {
			delete(b.liveAccess, jti)
		}
	}
	for jti, uid := range b.liveRefresh {
		if uid == u.id {
			delete(b.liveRefresh, jti)
		}
	}
	b.mu.Unlock()
	clearCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}

func copyObject(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
