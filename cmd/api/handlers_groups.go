package main

import (
	"net/http"

	"github.com/mcclellann/ikimina/pkg/ledger"
)

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	me, err := s.ledger.Me(r.Context(), identity(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, me)
}

func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.ProfileUpdate
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.ledger.UpdateProfile(r.Context(), identity(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (s *Server) overviewHandler(w http.ResponseWriter, r *http.Request) {
	o, err := s.ledger.SystemOverview(r.Context(), identity(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (s *Server) listGroupsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := s.ledger.ListGroups(r.Context(), identity(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, groups)
}

func (s *Server) createGroupHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.GroupRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.ledger.CreateGroup(r.Context(), identity(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, g)
}

func (s *Server) getGroupHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.ledger.GetGroup(r.Context(), identity(r), gid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, g)
}

func (s *Server) updateGroupHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req ledger.GroupUpdate
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.ledger.UpdateGroup(r.Context(), identity(r), gid, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, g)
}

func (s *Server) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	members, err := s.ledger.ListMembers(r.Context(), identity(r), gid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, members)
}

func (s *Server) addMemberHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req ledger.MemberRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.ledger.AddMember(r.Context(), identity(r), gid, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, m)
}

// updateMemberHandler changes a membership's status, its admin flag, or both
// in one transaction.
func (s *Server) updateMemberHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	mid, err := pathID(r, "mid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req ledger.MemberUpdate
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.ledger.UpdateMember(r.Context(), identity(r), gid, mid, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, m)
}

func (s *Server) rejoinHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.ledger.RequestRejoin(r.Context(), identity(r), gid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, m)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.ledger.GroupSummary(r.Context(), identity(r), gid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, summary)
}

func (s *Server) listAnnouncementsHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	posts, err := s.ledger.ListAnnouncements(r.Context(), identity(r), gid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, posts)
}

func (s *Server) postAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	gid, err := pathID(r, "gid")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req ledger.AnnouncementRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.ledger.PostAnnouncement(r.Context(), identity(r), gid, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, a)
}

func (s *Server) listCommentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	comments, err := s.ledger.ListComments(r.Context(), identity(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, comments)
}

func (s *Server) addCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.ledger.AddComment(r.Context(), identity(r), id, req.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c)
}

func (s *Server) listNoticesHandler(w http.ResponseWriter, r *http.Request) {
	notices, err := s.ledger.ListNotices(r.Context(), identity(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, notices)
}

func (s *Server) postNoticeHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.AnnouncementRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.ledger.PostNotice(r.Context(), identity(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, a)
}
