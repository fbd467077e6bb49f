package echoconsole

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/auth"
	apiclient "github.com/trezcool/darasa/services/api"
)

const tokenContextKey = "userToken"

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errInvalidCredentials = core.NewValidationError(errors.New("invalid credentials"))
)

// Claims represents the authorization claims transmitted via a JWT.
// APIToken is the backend bearer token of the session; every backend call made for the request uses it.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	APIToken string `json:"api_token"`
}

func newJWTConfig(secret string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secret),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

func NewClaims(sess auth.Session, issuer string, ttl time.Duration) *Claims {
	now := core.NowFunc()
	var sub string
	if sess.User.ID > 0 {
		sub = strconv.Itoa(sess.User.ID)
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    issuer,
			Subject:   sub,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: sess.User.Username,
		Name:     sess.User.Name,
		Email:    sess.User.Email,
		Role:     sess.User.Role,
		APIToken: sess.Token,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func (c Claims) Person() core.Person {
	return core.Person{ID: c.Subject, Username: c.Username, Email: c.Email}
}

// draftUser names the owner of attendance drafts.
func (c Claims) draftUser() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}

// backendTokenMiddleware hands the session's backend token to the API client through the request context.
func backendTokenMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		req := ctx.Request()
		ctx.SetRequest(req.WithContext(apiclient.WithToken(req.Context(), claims.APIToken)))
		return next(ctx)
	}
}

type (
	authApi struct {
		conf *core.Config
		deps *Deps
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  auth.User `json:"user"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func registerAuthAPI(g *echo.Group, jwt []echo.MiddlewareFunc, conf *core.Config, deps *Deps) {
	api := authApi{conf: conf, deps: deps}

	g.POST("/login", api.login)
	g.POST("/logout", api.logout, jwt...)
	g.GET("/me", api.me, jwt...)
}

func (api *authApi) login(ctx echo.Context) error {
	var data auth.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	sess, err := api.deps.Auth.Login(ctx.Request().Context(), data)
	if err != nil {
		if apiErr, ok := errors.Cause(err).(*core.APIError); ok &&
			(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			return errInvalidCredentials
		}
		return errors.Wrap(err, "authenticating")
	}

	token, err := GenerateToken(NewClaims(sess, api.conf.AppName, api.conf.Server.JWTExpirationDelta), api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: sess.User})
}

// logout has nothing to revoke: the JWT is stateless and expires on its own.
func (api *authApi) logout(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "logged out"})
}

func (api *authApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, _ := strconv.Atoi(claims.Subject)
	return ctx.JSON(http.StatusOK, auth.User{
		ID:       id,
		Username: claims.Username,
		Name:     claims.Name,
		Email:    claims.Email,
		Role:     claims.Role,
	})
}
