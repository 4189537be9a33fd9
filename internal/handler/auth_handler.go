/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"chatwave/internal/app/user"
	"chatwave/internal/pkg/auth/jwt"
	"chatwave/internal/pkg/errs"
	"chatwave/internal/pkg/logx"
	"chatwave/internal/pkg/req"
	"chatwave/internal/pkg/resp"
)

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password"`
	Pic      string `json:"pic,omitempty" validate:"omitempty,url,max=2048"`
}

type AuthResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func validPassword(password string) bool {
	n := utf8.RuneCountInString(password)
	return n >= 6 && len(password) <= 72
}

// HandleRegister creates an account and signs the new user in. When proof-of-work is enabled
// the request must carry a fresh proof token.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		if deps.Pow.Enabled() && !deps.Pow.ConsumeProofToken(r) {
			logx.Warn("registration rejected: missing or invalid proof token", "ip", r.RemoteAddr)
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeRequired))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !validPassword(input.Password) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		pic := input.Pic
		if pic == "" {
			pic = user.DefaultPic
		}

		account, err := deps.Users.CreateUser(r.Context(), user.NewAccount{
			Name:         strings.TrimSpace(input.Name),
			Email:        input.Email,
			Pic:          pic,
			PasswordHash: string(hashedPassword),
		})
		if err != nil {
			if errors.Is(err, user.ErrEmailTaken) {
				logx.Warn("registration conflict: email already exists", "email", user.NormalizeEmail(input.Email))
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create user")
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		token, err := deps.issueToken(account.User)
		if err != nil {
			logx.Error(err, "failed to generate token after registration")
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		logx.Info("user registered", "user_id", account.ID)
		resp.RespondCreated(w, r, AuthResponse{Token: token, User: account.User})
	}
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies user credentials and issues a JWT token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, err := deps.Users.FindUserByEmail(r.Context(), input.Email)
		if err != nil {
			if !errors.Is(err, user.ErrNotFound) {
				logx.Error(err, "login: user lookup failed")
				resp.RespondError(w, r, errs.Internal(err))
				return
			}
			logx.Warn("login: unknown email", "email", user.NormalizeEmail(input.Email))
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		token, err := deps.issueToken(account.User)
		if err != nil {
			logx.Error(err, "login: jwt generation failed")
			resp.RespondError(w, r, errs.Internal(err))
			return
		}

		resp.RespondSuccess(w, r, AuthResponse{Token: token, User: account.User})
	}
}
