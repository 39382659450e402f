package oauth2

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	sk "github.com/secretkeeper/secretkeeper"
)

// DefaultExchangeTimeout bounds the code-for-token exchange with the
// provider.  The exchange is a call to an external, untrusted network
// service and must never hang a request indefinitely.
const DefaultExchangeTimeout = 10 * time.Second

// HandleIdentityFunc receives the canonical external identity after a
// successful consent flow: the provider name, the provider-scoped stable
// subject id, and the raw profile fields the provider returned.
type HandleIdentityFunc func(provider, subjectID string, profile map[string]any, w http.ResponseWriter, r *http.Request)

// BaseOAuth2 holds the pieces shared by every provider adapter.  Client
// credentials come from the constructor or the environment; they are never
// logged.
type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string

	HandleIdentity HandleIdentityFunc

	// AuthFailureUrl is where the callback redirects when the provider
	// rejects the flow.  Defaults to "/auth/fail/".
	AuthFailureUrl string

	// ExchangeTimeout bounds the token exchange.  Zero means
	// DefaultExchangeTimeout.
	ExchangeTimeout time.Duration

	// HTTPClient is used for token exchange and userinfo fetches.  Can
	// be overridden for testing.  Nil means http.DefaultClient.
	HTTPClient *http.Client

	oauthConfig oauth2.Config
	mux         *http.ServeMux
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string, handleIdentity HandleIdentityFunc) *BaseOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_CALLBACK_URL")
	}
	out := &BaseOAuth2{
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		HandleIdentity: handleIdentity,
		AuthFailureUrl: "/auth/fail/",
		mux:            http.NewServeMux(),
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
	out.mux.HandleFunc("/", OauthRedirector(&out.oauthConfig))
	return out
}

func (b *BaseOAuth2) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

func (b *BaseOAuth2) exchangeContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := b.ExchangeTimeout
	if timeout <= 0 {
		timeout = DefaultExchangeTimeout
	}
	ctx := parent
	if b.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.HTTPClient)
	}
	return context.WithTimeout(ctx, timeout)
}

// exchange trades the authorization code for a provider token.  Rejections
// (bad or expired codes) and unreachable providers surface as distinct
// errors; neither is retried here - the web layer decides whether to
// restart the consent flow.
func (b *BaseOAuth2) exchange(parent context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := b.exchangeContext(parent)
	defer cancel()

	token, err := b.oauthConfig.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, sk.ErrProviderRejected
		}
		return nil, sk.ErrProviderUnavailable
	}
	return token, nil
}

func (b *BaseOAuth2) httpClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}
