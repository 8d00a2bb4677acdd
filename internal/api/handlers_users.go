package api

import (
	"net/http"

	"github.com/mmynk/wolls/internal/auth"
	"github.com/mmynk/wolls/internal/middleware"
	"github.com/mmynk/wolls/internal/respond"
	"github.com/mmynk/wolls/internal/service"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	user, err := s.svc.Users.Register(r.Context(), auth.Registration{
		Pseudonym: req.Pseudonym,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
		IBAN:      req.IBAN,
	}, req.Password)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	login := req.Login
	if login == "" {
		login = req.Email
	}
	if login == "" {
		login = req.Pseudonym
	}

	res, err := s.svc.Users.Login(r.Context(), login, req.Password)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, loginResponse{Token: res.Token, User: toUserResponse(res.User)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	user, err := s.svc.Users.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), service.ProfileUpdate{
		Pseudonym: req.Pseudonym,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
		IBAN:      req.IBAN,
		Password:  req.Password,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Users.DeleteAccount(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.NoContent(w)
}
