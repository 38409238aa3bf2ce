package api

import (
	"errors"
	"net/http"

	"github.com/motion-backend/motion-smoke/internal/motion/store"
	"github.com/motion-backend/motion-smoke/internal/twincore"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		h.internalError(w, "signup", err)
		return
	}
	if req.Email == "" || req.Password == "" {
		twincore.Message(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := h.store.CreateUser(req.Email, req.Password)
	if errors.Is(err, store.ErrUserExists) {
		twincore.Message(w, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		h.internalError(w, "signup", err)
		return
	}

	twincore.JSON(w, http.StatusCreated, map[string]string{
		"message": "User created",
		"userId":  u.UserID,
		"email":   u.Email,
	})
}

// Signin handles POST /auth/signin.
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		h.internalError(w, "signin", err)
		return
	}
	if req.Email == "" || req.Password == "" {
		twincore.Message(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := h.store.Authenticate(req.Email, req.Password)
	if err != nil {
		twincore.Message(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if h.tokens == nil {
		h.mw.Logger().Warn("no JWT secret configured; returning session without token")
		twincore.JSON(w, http.StatusOK, map[string]string{"userId": u.UserID, "email": req.Email})
		return
	}
	token, err := h.tokens.Issue(u.UserID, req.Email)
	if err != nil {
		h.internalError(w, "signin", err)
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]string{
		"token":  token,
		"userId": u.UserID,
		"email":  req.Email,
	})
}
