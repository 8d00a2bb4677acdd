package api

import (
	"net/http"

	"github.com/mmynk/wolls/internal/apperr"
	"github.com/mmynk/wolls/internal/middleware"
	"github.com/mmynk/wolls/internal/respond"
	"github.com/mmynk/wolls/internal/service"
)

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.Groups.ListGroups(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toGroupResponses(groups))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	var input service.GroupInput
	if req.Name != nil {
		input.Name = *req.Name
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Theme != nil {
		input.Theme = *req.Theme
	}

	group, err := s.svc.Groups.CreateGroup(r.Context(), middleware.GetUserID(r.Context()), input)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toGroupResponse(group))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.svc.Groups.GetGroup(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toGroupResponse(group))
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	group, err := s.svc.Groups.UpdateGroup(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"), service.GroupUpdate{
		Name:        req.Name,
		Description: req.Description,
		Theme:       req.Theme,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toGroupResponse(group))
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Groups.DeleteGroup(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId")); err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.NoContent(w)
}

func (s *Server) handlePendingInvitations(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.Memberships.PendingInvitations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toGroupResponses(groups))
}

func (s *Server) handleMembershipCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.svc.Memberships.Counts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, countsResponse{Accepted: counts.Accepted, Pending: counts.Pending})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.Memberships.ListMembers(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toMemberResponses(members))
}

func (s *Server) handleSearchInvitable(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.SearchInvitable(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"), r.URL.Query().Get("q"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toUserSummaries(users))
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	res, err := s.svc.Memberships.Invite(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"), req.Pseudonyms)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toInviteResponse(res))
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	if req.Accept == nil {
		respond.Err(w, r, apperr.New(apperr.InvalidInput, "Field 'accept' is required"))
		return
	}

	m, err := s.svc.Memberships.Respond(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"), *req.Accept)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	if m == nil {
		respond.NoContent(w)
		return
	}
	respond.JSON(w, http.StatusOK, toMembershipResponse(m))
}

func (s *Server) handleSetAdministrator(w http.ResponseWriter, r *http.Request) {
	var req setAdministratorRequest
	if err := decode(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	if req.IsAdministrator == nil {
		respond.Err(w, r, apperr.New(apperr.InvalidInput, "Field 'is_administrator' is required"))
		return
	}

	m, err := s.svc.Memberships.SetAdministrator(r.Context(), middleware.GetUserID(r.Context()),
		r.PathValue("groupId"), r.PathValue("userId"), *req.IsAdministrator)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, toMembershipResponse(m))
}

func (s *Server) handleExclude(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Memberships.Exclude(r.Context(), middleware.GetUserID(r.Context()), r.PathValue("groupId"), r.PathValue("userId"))
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.NoContent(w)
}
