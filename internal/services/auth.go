package services

import (
  "context"
  "fmt"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/rowanvale/compass-backend/internal/logger"
  "github.com/rowanvale/compass-backend/internal/repos"
  "github.com/rowanvale/compass-backend/internal/requestdata"
)

// AuthService verifies bearer tokens minted by the identity provider and
// stamps the request context with the caller's user id. Token issuance
// (OAuth, magic links) lives outside this service.
type AuthService interface {
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
  db           *gorm.DB
  log          *logger.Logger
  userRepo     repos.UserRepo
  jwtSecretKey string
}

func NewAuthService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, jwtSecretKey string) AuthService {
  return &authService{
    db:           db,
    log:          baseLog.With("service", "AuthService"),
    userRepo:     userRepo,
    jwtSecretKey: jwtSecretKey,
  }
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
    if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
    }
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, fmt.Errorf("parse token: %w", err)
  }
  if !token.Valid {
    return ctx, fmt.Errorf("invalid token")
  }

  claims, ok := token.Claims.(jwt.MapClaims)
  if !ok {
    return ctx, fmt.Errorf("unexpected token claims")
  }
  sub, err := claims.GetSubject()
  if err != nil || sub == "" {
    return ctx, fmt.Errorf("token missing subject")
  }
  userID, err := uuid.Parse(sub)
  if err != nil {
    return ctx, fmt.Errorf("token subject is not a user id: %w", err)
  }

  users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
  if err != nil {
    return ctx, fmt.Errorf("load user: %w", err)
  }
  if len(users) == 0 || users[0] == nil {
    return ctx, fmt.Errorf("no user for token subject")
  }

  rd := &requestdata.RequestData{
    TokenString: tokenString,
    UserID:      userID,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}
