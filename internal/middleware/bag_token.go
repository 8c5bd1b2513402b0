package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const CtxBagIDKey = "bag_id" // string

// バッグトークン（HS256, sub=バッグID）の発行
type BagTokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewBagTokenIssuer(secret string, ttl time.Duration) *BagTokenIssuer {
	return &BagTokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (i *BagTokenIssuer) Issue(bagID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   bagID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// バッグトークンの検証ミドルウェア。
// EventSourceはヘッダを付けられないので ?token= も受け付ける。
func BagToken(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawToken := bearerToken(c.Request().Header.Get("Authorization"))
			if rawToken == "" {
				rawToken = strings.TrimSpace(c.QueryParam("token"))
			}
			if rawToken == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("missing bag token"))
			}

			//JWTをパースして検証する
			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || token == nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, errorJSON("invalid bag token"))
			}

			if strings.TrimSpace(claims.Subject) == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("invalid bag token"))
			}

			c.Set(CtxBagIDKey, claims.Subject)
			return next(c)
		}
	}
}

// Bearer形式ならtokenを抜く
func bearerToken(authz string) string {
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}
