package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/repository"
)

type stubUserService struct {
	user        *domain.User
	userErr     error
	identities  []domain.ExternalIdentity
	identityErr error
}

func (s *stubUserService) GetByID(context.Context, uint) (*domain.User, error) {
	return s.user, s.userErr
}

func (s *stubUserService) LinkedIdentities(context.Context, uint) ([]domain.ExternalIdentity, error) {
	return s.identities, s.identityErr
}

func TestUserHandlerMe(t *testing.T) {
	t.Run("missing auth context", func(t *testing.T) {
		h := NewUserHandler(&stubUserService{}, &stubAuthService{})
		rr := httptest.NewRecorder()
		h.Me(rr, jsonRequest(http.MethodGet, "/api/v1/users/me", ""))
		requireErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("malformed subject", func(t *testing.T) {
		h := NewUserHandler(&stubUserService{}, &stubAuthService{})
		rr := httptest.NewRecorder()
		h.Me(rr, authenticatedRequest(http.MethodGet, "/api/v1/users/me", "", "not-a-number"))
		requireErrorCode(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("unknown user", func(t *testing.T) {
		h := NewUserHandler(&stubUserService{userErr: repository.ErrUserNotFound}, &stubAuthService{})
		rr := httptest.NewRecorder()
		h.Me(rr, authenticatedRequest(http.MethodGet, "/api/v1/users/me", "", "7"))
		requireErrorCode(t, rr, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("returns profile with linked identities", func(t *testing.T) {
		h := NewUserHandler(&stubUserService{
			user:       &domain.User{ID: 7, Email: "person@example.com"},
			identities: []domain.ExternalIdentity{{UserID: 7, Provider: "google", SubjectID: "subject-1"}},
		}, &stubAuthService{})

		rr := httptest.NewRecorder()
		h.Me(rr, authenticatedRequest(http.MethodGet, "/api/v1/users/me", "", "7"))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
		}
		env := decodeEnvelope(t, rr)
		data, ok := env.Data.(map[string]any)
		if !ok {
			t.Fatalf("unexpected data %T", env.Data)
		}
		user, _ := data["user"].(map[string]any)
		if user == nil || user["email"] != "person@example.com" {
			t.Fatalf("unexpected user payload %+v", data)
		}
		identities, _ := data["identities"].([]any)
		if len(identities) != 1 {
			t.Fatalf("expected one identity, got %+v", data["identities"])
		}
	})
}
