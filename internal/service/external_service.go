package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/arjunms/account-service/internal/config"
	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/repository"
)

var (
	ErrGoogleAuthDisabled      = errors.New("google auth is disabled")
	ErrExternalEmailUnverified = errors.New("external email not verified")
	ErrExternalIdentityTaken   = errors.New("external identity already linked")
)

// ExternalAssertion is the provider's verified claim about who just
// authenticated. It is what gets signed and round-tripped when the user
// still has to complete registration.
type ExternalAssertion struct {
	Provider      string `json:"provider"`
	SubjectID     string `json:"subject_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// ExternalProfile carries the fields the user fills in to finish
// registering with an external identity.
type ExternalProfile struct {
	Email     string
	FirstName string
	LastName  string
}

type LinkStatus string

const (
	LinkStatusSignedIn        LinkStatus = "signed_in"
	LinkStatusNeedsCompletion LinkStatus = "needs_completion"
)

// LinkOutcome is the result of an external callback: either an existing
// account signed in, or the caller must complete registration with the
// returned assertion.
type LinkOutcome struct {
	Status    LinkStatus
	User      *domain.User
	Assertion ExternalAssertion
}

// OAuthProvider abstracts the external identity provider so tests can
// substitute a fake.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchAssertion(ctx context.Context, token *oauth2.Token) (*ExternalAssertion, error)
}

type GoogleOAuthProvider struct {
	cfg *oauth2.Config
}

func NewGoogleOAuthProvider(cfg *config.Config) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{cfg: &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

func (p *GoogleOAuthProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *GoogleOAuthProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.cfg.Exchange(ctx, code)
}

func (p *GoogleOAuthProvider) FetchAssertion(ctx context.Context, token *oauth2.Token) (*ExternalAssertion, error) {
	client := p.cfg.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://openidconnect.googleapis.com/v1/userinfo", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status: %d", resp.StatusCode)
	}
	var body struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Sub == "" || body.Email == "" {
		return nil, fmt.Errorf("missing required userinfo fields")
	}
	return &ExternalAssertion{
		Provider:      domain.ExternalProviderGoogle,
		SubjectID:     body.Sub,
		Email:         strings.ToLower(body.Email),
		EmailVerified: body.EmailVerified,
		Name:          body.Name,
		Picture:       body.Picture,
	}, nil
}

// ExternalService handles federated sign-in and identity linking.
type ExternalService struct {
	cfg          *config.Config
	provider     OAuthProvider
	userRepo     repository.UserRepository
	identityRepo repository.ExternalIdentityRepository
	credRepo     repository.LocalCredentialRepository
	logger       *slog.Logger
}

func NewExternalService(
	cfg *config.Config,
	provider OAuthProvider,
	userRepo repository.UserRepository,
	identityRepo repository.ExternalIdentityRepository,
	credRepo repository.LocalCredentialRepository,
	logger *slog.Logger,
) *ExternalService {
	return &ExternalService{
		cfg:          cfg,
		provider:     provider,
		userRepo:     userRepo,
		identityRepo: identityRepo,
		credRepo:     credRepo,
		logger:       logger,
	}
}

func (s *ExternalService) LoginURL(state string) string {
	if !s.cfg.AuthGoogleEnabled {
		return ""
	}
	return s.provider.AuthCodeURL(state)
}

// HandleCallback exchanges the authorization code and resolves the
// resulting assertion. A known (provider, subject) pair signs in its
// linked account; an unknown pair comes back as needs_completion and the
// assertion must be replayed to CompleteRegistration.
func (s *ExternalService) HandleCallback(ctx context.Context, code string) (*LinkOutcome, error) {
	if !s.cfg.AuthGoogleEnabled {
		return nil, ErrGoogleAuthDisabled
	}
	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	assertion, err := s.provider.FetchAssertion(ctx, token)
	if err != nil {
		return nil, err
	}
	if !assertion.EmailVerified {
		return nil, ErrExternalEmailUnverified
	}

	identity, err := s.identityRepo.FindByProviderSubject(assertion.Provider, assertion.SubjectID)
	if err == nil {
		user, err := s.userRepo.FindByID(identity.UserID)
		if err != nil {
			return nil, err
		}
		return &LinkOutcome{Status: LinkStatusSignedIn, User: user, Assertion: *assertion}, nil
	}
	if !errors.Is(err, repository.ErrExternalIdentityNotFound) {
		return nil, err
	}

	// An existing account with the same verified address gets the new
	// identity linked in place instead of a second registration.
	user, err := s.userRepo.FindByEmail(assertion.Email)
	if err == nil {
		linked, linkErr := s.linkIdentity(user, assertion)
		if linkErr != nil {
			return nil, linkErr
		}
		return &LinkOutcome{Status: LinkStatusSignedIn, User: linked, Assertion: *assertion}, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	return &LinkOutcome{Status: LinkStatusNeedsCompletion, Assertion: *assertion}, nil
}

// CompleteRegistration creates an account for a first-time external user.
// The email may differ from the assertion's address; the identity link is
// what authenticates them, not the email.
func (s *ExternalService) CompleteRegistration(ctx context.Context, assertion ExternalAssertion, profile ExternalProfile) (*domain.User, error) {
	if !s.cfg.AuthGoogleEnabled {
		return nil, ErrGoogleAuthDisabled
	}
	email := strings.TrimSpace(strings.ToLower(profile.Email))
	if email == "" {
		email = assertion.Email
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if assertion.Provider == "" || assertion.SubjectID == "" {
		return nil, fmt.Errorf("incomplete external assertion")
	}

	firstName, lastName := strings.TrimSpace(profile.FirstName), strings.TrimSpace(profile.LastName)
	if firstName == "" && assertion.Name != "" {
		firstName, lastName = splitName(assertion.Name)
	}

	user := &domain.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Status:    domain.UserStatusActive,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	linked, err := s.linkIdentity(user, &assertion)
	if err != nil {
		if errors.Is(err, ErrExternalIdentityTaken) {
			// The race loser's row has no credential and no identity; remove
			// it so the email does not stay claimed by an unusable account.
			if delErr := s.userRepo.Delete(user.ID); delErr != nil {
				s.logger.Warn("failed to remove user after lost identity race",
					"user_id", user.ID,
					"error", delErr,
				)
			}
		}
		return nil, err
	}
	return linked, nil
}

func (s *ExternalService) linkIdentity(user *domain.User, assertion *ExternalAssertion) (*domain.User, error) {
	now := time.Now().UTC()
	err := s.identityRepo.Create(&domain.ExternalIdentity{
		UserID:        user.ID,
		Provider:      assertion.Provider,
		SubjectID:     assertion.SubjectID,
		Email:         assertion.Email,
		EmailVerified: assertion.EmailVerified,
		LinkedAt:      now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrExternalIdentityTaken) {
			// Lost a concurrent link race. If the winner linked the same
			// user, proceed; otherwise the subject belongs to someone else.
			existing, findErr := s.identityRepo.FindByProviderSubject(assertion.Provider, assertion.SubjectID)
			if findErr != nil {
				return nil, findErr
			}
			if existing.UserID == user.ID {
				return user, nil
			}
			return nil, ErrExternalIdentityTaken
		}
		return nil, err
	}
	s.logger.Info("external identity linked",
		"user_id", user.ID,
		"provider", assertion.Provider,
	)
	return user, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
