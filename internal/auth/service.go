package auth

import "time"

// Service provides authentication operations for the API.
type Service struct {
	jwtService *JWTService
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService *JWTService
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		jwtService: cfg.JWTService,
	}
}

// ValidateAccessToken validates an access token and returns the therapist ID.
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	claims, err := s.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.TherapistID, nil
}

// IssueToken mints an access token for a therapist. Intended for local
// development and operational tooling; production tokens come from the
// practice's identity provider.
func (s *Service) IssueToken(therapistID string) (string, time.Time, error) {
	return s.jwtService.GenerateAccessToken(therapistID)
}
