package auth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/fairlens/fairlens/pkg/net"
)

const (
	deviceScopes = "" // no scopes requested (read-only public access)
	grantType    = "urn:ietf:params:oauth:grant-type:device_code"

	minIntervalSeconds     = 5
	slowDownBackoffSeconds = 5
)

// Endpoint vars so tests can point the flow at a local server.
var (
	deviceCodeURL = "https://github.com/login/device/code"
	accessCodeURL = "https://github.com/login/oauth/access_token"
)

var (
	ErrCodeExpired  = errors.New("device code expired")
	ErrAccessDenied = errors.New("access denied by user")
)

// DeviceCode is the GitHub device-flow challenge: the code the user
// enters in a browser plus the polling parameters for this attempt.
type DeviceCode struct {
	DeviceCode      string `json:"device_code,omitempty"`
	UserCode        string `json:"user_code,omitempty"`
	VerificationURL string `json:"verification_uri,omitempty"`
	ExpiresInSec    int    `json:"expires_in,omitempty"`
	Interval        int    `json:"interval,omitempty"`
}

type AccessTokenResponse struct {
	AccessToken      string `json:"access_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	Scope            string `json:"scope,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// GetDeviceCode starts the GitHub device flow for the OAuth app.
func GetDeviceCode(clientID string) (*DeviceCode, error) {
	if clientID == "" {
		return nil, errors.New("clientID is required")
	}

	form := url.Values{
		"client_id": {clientID},
		"scope":     {deviceScopes},
	}

	var dc DeviceCode
	if err := net.PostFormJSON(deviceCodeURL, form, &dc); err != nil {
		return nil, fmt.Errorf("failed to get device code: %w", err)
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, errors.New("incomplete device code response")
	}

	return &dc, nil
}

// GetToken exchanges an authorized device code for an access token,
// polling at the server-requested interval while the authorization is
// still pending. Returns [ErrCodeExpired] or [ErrAccessDenied] when the
// flow cannot complete.
func GetToken(clientID string, code *DeviceCode) (*AccessTokenResponse, error) {
	if clientID == "" {
		return nil, errors.New("clientID is required")
	}
	if code == nil {
		return nil, errors.New("device code is nil")
	}

	expiresAt := time.Now().UTC().Add(time.Duration(code.ExpiresInSec) * time.Second)
	interval := code.Interval
	if interval < 1 {
		interval = minIntervalSeconds
	}

	form := url.Values{
		"client_id":   {clientID},
		"device_code": {code.DeviceCode},
		"grant_type":  {grantType},
	}

	for {
		if time.Now().UTC().After(expiresAt) {
			return nil, ErrCodeExpired
		}

		var t AccessTokenResponse
		if err := net.PostFormJSON(accessCodeURL, form, &t); err != nil {
			return nil, fmt.Errorf("failed to request token: %w", err)
		}

		switch t.Error {
		case "":
			if t.AccessToken == "" {
				return nil, errors.New("access token is empty")
			}
			return &t, nil
		case "authorization_pending":
			// user has not finished in the browser yet
		case "slow_down":
			interval += slowDownBackoffSeconds
		case "expired_token":
			return nil, ErrCodeExpired
		case "access_denied":
			return nil, ErrAccessDenied
		default:
			return nil, fmt.Errorf("device flow error: %s (%s)", t.Error, t.ErrorDescription)
		}

		time.Sleep(time.Duration(interval) * time.Second)
	}
}
