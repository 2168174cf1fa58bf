package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Tickets are single-purpose: the dashboard mints one and opens the
// websocket immediately, so the lifetime stays short.
const TicketTTL = 2 * time.Minute

type TicketClaims struct {
	StoreID uuid.UUID `json:"store_id"`
	jwt.RegisteredClaims
}

func GenerateTicket(secret string, storeID uuid.UUID) (string, error) {
	claims := TicketClaims{
		StoreID: storeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   storeID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TicketTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateTicket(secret, tokenStr string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TicketClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid ticket")
	}
	return claims, nil
}
