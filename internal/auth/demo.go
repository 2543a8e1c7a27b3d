package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DemoCookieName = "demo_session"
	demoSessionTTL = 7 * 24 * time.Hour
)

// ErrUnknownPreset is returned for a preset name outside buyer, seller and
// admin.
var ErrUnknownPreset = errors.New("unknown demo preset")

// DemoPresets are the accounts offered on the demo login screen.
var DemoPresets = map[string]User{
	"buyer": {
		ID:        "demo_user_buyer",
		Email:     "buyer@example.com",
		FirstName: "Demo",
		LastName:  "Buyer",
		ImageURL:  "/demo/avatars/buyer.svg",
		Role:      RoleBuyer,
	},
	"seller": {
		ID:        "demo_user_seller",
		Email:     "seller@example.com",
		FirstName: "Demo",
		LastName:  "Seller",
		ImageURL:  "/demo/avatars/seller.svg",
		Role:      RoleSeller,
	},
	"admin": {
		ID:        "demo_user_admin",
		Email:     "admin@example.com",
		FirstName: "Admin",
		LastName:  "User",
		ImageURL:  "/demo/avatars/admin.svg",
		Role:      RoleAdmin,
	},
}

// DemoSessions keeps the whole session in a cookie. There is no server side
// state and no signature; it is only ever enabled in demo mode.
type DemoSessions struct {
	// Secure sets the Secure attribute on the cookie.
	Secure bool
}

// CurrentUser implements Authenticator.
func (d *DemoSessions) CurrentUser(r *http.Request) (*User, error) {
	cookie, err := r.Cookie(DemoCookieName)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, errors.WithSecondaryError(ErrUnauthenticated, err)
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == "" {
		return nil, errors.WithSecondaryError(ErrUnauthenticated, errors.New("malformed demo session"))
	}
	return &u, nil
}

// LoginPreset starts a session as one of DemoPresets.
func (d *DemoSessions) LoginPreset(w http.ResponseWriter, preset string) (*User, error) {
	u, ok := DemoPresets[preset]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPreset, "%q", preset)
	}
	return d.Login(w, u)
}

// Login starts a session as u, filling the defaults a custom demo user may
// omit.
func (d *DemoSessions) Login(w http.ResponseWriter, u User) (*User, error) {
	if u.ID == "" || u.Email == "" {
		return nil, errors.New("demo user id and email are required")
	}
	if u.FirstName == "" {
		u.FirstName = "User"
	}
	if u.Role == "" {
		u.Role = RoleBuyer
	}
	if u.ImageURL == "" {
		u.ImageURL = DefaultAvatar
	}

	raw, err := json.Marshal(u)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode demo session")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     DemoCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   int(demoSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   d.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return &u, nil
}

// Logout clears the session cookie.
func (d *DemoSessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     DemoCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   d.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// LookupDemoUser returns the preset with the given id, or a generic demo
// user for unknown ids.
func LookupDemoUser(id string) User {
	for _, u := range DemoPresets {
		if u.ID == id {
			return u
		}
	}
	return User{
		ID:        id,
		Email:     "user@example.com",
		FirstName: "Demo",
		LastName:  "User",
		ImageURL:  DefaultAvatar,
		Role:      RoleBuyer,
	}
}
