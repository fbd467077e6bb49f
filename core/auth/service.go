package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var ErrNotLoggedIn = errors.New("not logged in")

type (
	Repository interface {
		Login(ctx context.Context, req LoginRequest) (Session, error)
	}

	// Service keeps the current session of this process (admin CLI, console bootstrap).
	Service struct {
		repo   Repository
		logger core.Logger

		mu      sync.RWMutex
		current Session
		lastErr string
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Login exchanges credentials for a backend token and stores the session.
func (svc *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	req.Clean()
	var fields []core.FieldError
	if req.Username == "" {
		fields = append(fields, core.FieldError{Field: "username", Error: "this field is required"})
	}
	if req.Password == "" {
		fields = append(fields, core.FieldError{Field: "password", Error: "this field is required"})
	}
	if len(fields) > 0 {
		return Session{}, core.NewValidationError(nil, fields...)
	}

	sess, err := svc.repo.Login(ctx, req)
	if err == nil && !sess.Valid() {
		err = core.ErrEmptyResponse
	}
	if err != nil {
		svc.setError("login failed: " + core.Message(err))
		if svc.logger != nil {
			svc.logger.Warn("login failed", err, map[string]interface{}{"username": req.Username})
		}
		return Session{}, errors.Wrap(err, "login")
	}
	sess.LoggedInAt = core.NowFunc()
	if sess.User.Username == "" {
		sess.User.Username = req.Username
	}

	svc.mu.Lock()
	svc.current = sess
	svc.lastErr = ""
	svc.mu.Unlock()

	if svc.logger != nil {
		svc.logger.Info("logged in", sess.User.Person())
	}
	return sess, nil
}

// Logout forgets the current session. The backend has no logout endpoint.
func (svc *Service) Logout() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.current = Session{}
}

func (svc *Service) Current() (Session, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	if !svc.current.Valid() {
		return Session{}, ErrNotLoggedIn
	}
	return svc.current, nil
}

// Error is the message of the last failed login.
func (svc *Service) Error() string {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.lastErr
}

func (svc *Service) setError(msg string) {
	svc.mu.Lock()
	svc.lastErr = msg
	svc.mu.Unlock()
}
