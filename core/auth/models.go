package auth

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type (
	// User is the staff account the backend answers a login with.
	User struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}

	// Session is a successful login: the backend bearer token and who it belongs to.
	Session struct {
		Token      string    `json:"token"`
		User       User      `json:"user"`
		LoggedInAt time.Time `json:"-"`
	}

	LoginRequest struct {
		Username string `json:"username" validate:"required,notblank"`
		Password string `json:"password" validate:"required"`
	}
)

func (req *LoginRequest) Clean() {
	req.Username = core.CleanString(req.Username)
}

func (req *LoginRequest) Validate(validate *validator.Validate) error {
	req.Clean()
	return validate.Struct(req)
}

// Person is the logger view of u.
func (u User) Person() core.Person {
	id := ""
	if u.ID > 0 {
		id = strconv.Itoa(u.ID)
	}
	return core.Person{ID: id, Username: u.Username, Email: u.Email}
}

func (s Session) Valid() bool { return s.Token != "" }
