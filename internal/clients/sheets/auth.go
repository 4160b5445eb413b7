package sheets

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/foliosync/foliosync/internal/models"
)

// tokenExpirySlack refreshes tokens slightly before they lapse so in-flight
// requests never carry an expired one
const tokenExpirySlack = time.Minute

// ServiceAccount holds the Google service account identity used to mint
// short-lived access tokens
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`

	key *rsa.PrivateKey
}

// LoadServiceAccount parses inline service account JSON and verifies the
// signing key up front so credential defects surface at startup
func LoadServiceAccount(data []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, fmt.Errorf("service account JSON missing client_email or private_key")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}
	sa.key = key

	return &sa, nil
}

// LoadServiceAccountFile reads and parses a service account JSON file
func LoadServiceAccountFile(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return LoadServiceAccount(data)
}

// signAssertion mints the RS256 JWT exchanged for an access token
func (sa *ServiceAccount) signAssertion(audience string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   sa.ClientEmail,
		"scope": ReadOnlyScope,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if sa.PrivateKeyID != "" {
		token.Header["kid"] = sa.PrivateKeyID
	}

	signed, err := token.SignedString(sa.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}

// tokenSource caches one access token and refreshes it under a mutex so
// concurrent requests never race the token endpoint
type tokenSource struct {
	creds      *ServiceAccount
	tokenURL   string
	httpClient *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newTokenSource(creds *ServiceAccount, tokenURL string, httpClient *http.Client) *tokenSource {
	return &tokenSource{
		creds:      creds,
		tokenURL:   tokenURL,
		httpClient: httpClient,
	}
}

// Token returns a valid access token, minting a new one when the cached
// token is missing or about to expire
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Until(ts.expiry) > tokenExpirySlack {
		return ts.token, nil
	}
	if ts.creds == nil {
		return "", ErrNotConfigured
	}

	assertion, err := ts.creds.signAssertion(ts.tokenURL, time.Now())
	if err != nil {
		return "", models.NewAuthError(models.SourceSheet, "token assertion", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := &APIError{StatusCode: resp.StatusCode, Message: apiErrorMessage(body), Endpoint: "token"}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", err
		}
		return "", models.NewAuthError(models.SourceSheet, "token exchange rejected", err)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", models.NewAuthError(models.SourceSheet, "token response carried no access token", nil)
	}

	ts.token = parsed.AccessToken
	ts.expiry = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)

	return ts.token, nil
}
