package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/arjunms/account-service/internal/domain"
	"github.com/arjunms/account-service/internal/repository"
	"github.com/arjunms/account-service/internal/security"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// TokenService mints the opaque session descriptor handed back to the HTTP
// layer: a short-lived JWT access token plus a peppered-hash-backed refresh
// token persisted as a Session row.
type TokenService struct {
	jwtMgr        *security.JWTManager
	sessionRepo   repository.SessionRepository
	pepper        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	rememberMeTTL time.Duration
}

func NewTokenService(jwtMgr *security.JWTManager, sessionRepo repository.SessionRepository, pepper string, accessTTL, refreshTTL, rememberMeTTL time.Duration) *TokenService {
	return &TokenService{
		jwtMgr:        jwtMgr,
		sessionRepo:   sessionRepo,
		pepper:        pepper,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		rememberMeTTL: rememberMeTTL,
	}
}

type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	ExpiresAt    time.Time
	RefreshTTL   time.Duration
}

func (s *TokenService) Issue(user *domain.User, rememberMe bool, ua, ip string) (*SessionTokens, error) {
	refreshTTL := s.refreshTTL
	if rememberMe {
		refreshTTL = s.rememberMeTTL
	}
	access, err := s.jwtMgr.SignAccessToken(user.ID, user.Email, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(user.ID, refreshTTL)
	if err != nil {
		return nil, err
	}
	hash := security.HashRefreshToken(refresh, s.pepper)
	if err := s.sessionRepo.Create(&domain.Session{
		UserID:           user.ID,
		RefreshTokenHash: hash,
		UserAgent:        ua,
		IP:               ip,
		Remembered:       rememberMe,
		ExpiresAt:        time.Now().Add(refreshTTL),
	}); err != nil {
		return nil, err
	}
	csrf, err := security.NewCSRFToken()
	if err != nil {
		return nil, err
	}
	return &SessionTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    csrf,
		ExpiresAt:    time.Now().Add(s.accessTTL),
		RefreshTTL:   refreshTTL,
	}, nil
}

// Rotate exchanges a refresh token for a fresh session, revoking the old
// one so a captured token stops working after first use.
func (s *TokenService) Rotate(refreshToken string, fetchUser func(id uint) (*domain.User, error), ua, ip string) (*SessionTokens, uint, error) {
	claims, err := s.jwtMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, 0, ErrInvalidRefreshToken
	}
	hash := security.HashRefreshToken(refreshToken, s.pepper)
	session, err := s.sessionRepo.FindValidByHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, 0, ErrInvalidRefreshToken
		}
		return nil, 0, err
	}
	if err := s.sessionRepo.RevokeByHash(hash, "rotated"); err != nil {
		return nil, 0, err
	}
	id64, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid subject")
	}
	userID := uint(id64)
	if session.UserID != userID {
		return nil, 0, ErrInvalidRefreshToken
	}
	user, err := fetchUser(userID)
	if err != nil {
		return nil, 0, err
	}
	tokens, err := s.Issue(user, session.Remembered, ua, ip)
	if err != nil {
		return nil, 0, err
	}
	return tokens, userID, nil
}

func (s *TokenService) RevokeAll(userID uint, reason string) error {
	return s.sessionRepo.RevokeByUserID(userID, reason)
}
