package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	sk "github.com/secretkeeper/secretkeeper"
)

type FacebookOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the URL to fetch user info from.  Defaults to the
	// Graph API.  Can be overridden for testing.
	UserInfoURL string
}

func NewFacebookOAuth2(clientId string, clientSecret string, callbackUrl string, handleIdentity HandleIdentityFunc) *FacebookOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CALLBACK_URL"))
	}

	out := FacebookOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl, handleIdentity),
		UserInfoURL: "https://graph.facebook.com/me",
	}
	out.BaseOAuth2.oauthConfig.Endpoint = facebook.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"email", "public_profile",
	}

	out.mux.HandleFunc("/callback/", out.handleCallback)

	return &out
}

func (f *FacebookOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !checkStateCookie(w, r) {
		return
	}

	code := r.FormValue("code")
	token, err := f.exchange(r.Context(), code)
	if err != nil {
		slog.Info("facebook code exchange failed", "err", err)
		http.Redirect(w, r, f.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}

	userInfo, err := f.getUserData(token)
	if err != nil {
		slog.Info("error fetching facebook user info", "err", err)
		http.Redirect(w, r, f.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}

	subjectID, _ := userInfo["id"].(string)
	if subjectID == "" {
		slog.Info("facebook user info had no subject id")
		http.Redirect(w, r, f.AuthFailureUrl, http.StatusTemporaryRedirect)
		return
	}

	f.HandleIdentity("facebook", subjectID, userInfo, w, r)
}

func (f *FacebookOAuth2) getUserData(token *oauth2.Token) (map[string]any, error) {
	u, err := url.Parse(f.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("bad user info url: %w", err)
	}
	q := u.Query()
	q.Set("fields", "id,name,email")
	u.RawQuery = q.Encode()

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	response, err := f.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sk.ErrProviderUnavailable, err)
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %w", err)
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return userInfo, nil
}
