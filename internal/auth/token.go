package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// TokenKind distinguishes analyst dashboard tokens from single-ticket handoff
// tokens minted for the notification-channel claim flow.
type TokenKind string

const (
	TokenKindAnalyst TokenKind = "analyst"
	TokenKindHandoff TokenKind = "handoff"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret     []byte
	analystTTL time.Duration
	handoffTTL time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, analystTTLMinutes, handoffTTLHours int) *TokenManager {
	if analystTTLMinutes <= 0 {
		analystTTLMinutes = 480
	}
	if handoffTTLHours <= 0 {
		handoffTTLHours = 8
	}
	return &TokenManager{
		secret:     []byte(secret),
		analystTTL: time.Duration(analystTTLMinutes) * time.Minute,
		handoffTTL: time.Duration(handoffTTLHours) * time.Hour,
	}
}

// Claims describes the JWT payload for both token kinds. Handoff tokens carry
// no subject id (legacy operators have no account) and are scoped to one ticket.
type Claims struct {
	Kind      TokenKind          `json:"kind"`
	Name      string             `json:"name"`
	Role      domain.AnalystRole `json:"role,omitempty"`
	TicketID  string             `json:"ticket_id,omitempty"`
	DiscordID string             `json:"discord_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAnalystToken signs a dashboard token for an authenticated analyst.
func (tm *TokenManager) GenerateAnalystToken(analyst *domain.Analyst) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.analystTTL)
	claims := &Claims{
		Kind: TokenKindAnalyst,
		Name: analyst.FullName,
		Role: analyst.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   analyst.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return tm.sign(claims, expiresAt)
}

// GenerateHandoffToken signs a ticket-scoped token for an operator claiming
// through the notification channel, which has no analyst account.
func (tm *TokenManager) GenerateHandoffToken(ticketID, operatorName, discordID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.handoffTTL)
	claims := &Claims{
		Kind:      TokenKindHandoff,
		Name:      operatorName,
		TicketID:  ticketID,
		DiscordID: discordID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return tm.sign(claims, expiresAt)
}

func (tm *TokenManager) sign(claims *Claims, expiresAt time.Time) (string, time.Time, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
