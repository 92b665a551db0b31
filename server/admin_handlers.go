package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/rbac"
	"github.com/greenfolio/auth-core/users"
)

var validPeriods = map[string]struct{}{
	"7d": {}, "30d": {}, "90d": {}, "1y": {},
}

var validMetrics = map[string]struct{}{
	"all": {}, "users": {}, "transactions": {}, "portfolios": {}, "revenue": {},
}

// AdminMetricsHandler serves dashboard aggregates. Moderators may read
// everything except revenue: requesting metric=revenue as a moderator is a
// 403, and metric=all as a moderator returns the counts minus revenue.
func (s *Server) AdminMetricsHandler() rbac.Handler {
	return func(w http.ResponseWriter, r *http.Request, userID string, role users.Role) {
		period := r.URL.Query().Get("period")
		if period == "" {
			period = "30d"
		}
		if _, ok := validPeriods[period]; !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "period must be one of 7d, 30d, 90d, 1y")
			return
		}

		metric := r.URL.Query().Get("metric")
		if metric == "" {
			metric = "all"
		}
		if _, ok := validMetrics[metric]; !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown metric")
			return
		}

		if metric == "revenue" && role != users.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "Revenue metrics require admin role")
			return
		}

		counts, err := s.repos.Metrics.Counts(r.Context(), period)
		if err != nil {
			log.Err(err).Msg("failed to load metrics")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}

		response := Metrics{}
		switch metric {
		case "users":
			response.Users = counts.Users
		case "transactions":
			response.Transactions = counts.Transactions
		case "portfolios":
			response.Portfolios = counts.Portfolios
		case "revenue":
			response.RevenueCents = counts.RevenueCents
		case "all":
			response = counts
			if role != users.RoleAdmin {
				response.RevenueCents = 0
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"period":  period,
			"metrics": response,
		})
	}
}

type usersListResponse struct {
	Users []*users.User `json:"users"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// AdminUsersListHandler lists users with paging, search, and role/status
// filters.
func (s *Server) AdminUsersListHandler() rbac.Handler {
	return func(w http.ResponseWriter, r *http.Request, userID string, role users.Role) {
		q := r.URL.Query()

		page, limit := 1, 20
		var err error
		if raw := q.Get("page"); raw != "" {
			if page, err = strconv.Atoi(raw); err != nil || page < 1 {
				writeError(w, http.StatusBadRequest, "invalid_request", "page must be a positive integer")
				return
			}
		}
		if raw := q.Get("limit"); raw != "" {
			if limit, err = strconv.Atoi(raw); err != nil || limit < 1 || limit > 100 {
				writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 100")
				return
			}
		}

		filter := users.ListFilter{
			Page:   page,
			Limit:  limit,
			Search: q.Get("search"),
		}
		if raw := q.Get("role"); raw != "" {
			parsed, err := users.ParseRole(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
			filter.Role = parsed
		}
		if raw := q.Get("status"); raw != "" {
			parsed, err := users.ParseStatus(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
			filter.Status = parsed
		}

		matched, total, err := s.repos.Users.List(filter)
		if err != nil {
			log.Err(err).Msg("failed to list users")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}

		writeJSON(w, http.StatusOK, usersListResponse{
			Users: matched,
			Total: total,
			Page:  page,
			Limit: limit,
		})
	}
}

type userPatchRequest struct {
	UserID  string         `json:"userId"`
	Updates map[string]any `json:"updates"`
}

// AdminUsersPatchHandler applies an allow-listed update to a user. Admins
// may never modify their own role: self-demotion and self-escalation are
// both rejected regardless of the requested value.
func (s *Server) AdminUsersPatchHandler() rbac.Handler {
	return func(w http.ResponseWriter, r *http.Request, callerID string, role users.Role) {
		var req userPatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "userId is required")
			return
		}

		updated, err := s.applyUserPatch(callerID, req)
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrSelfRoleEdit):
			writeError(w, http.StatusForbidden, "forbidden", "Cannot modify your own role")
			return
		case errors.Is(err, errors.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "not_found", "User not found")
			return
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		log.Info().
			Str("admin_id", callerID).
			Str("user_id", req.UserID).
			Msg("admin updated user")
		writeJSON(w, http.StatusOK, updated)
	}
}

// applyUserPatch validates and applies an admin PATCH. The self-role-edit
// guard runs against the raw body before any field validation: the edit is
// rejected whether or not the requested role value would survive filtering.
func (s *Server) applyUserPatch(callerID string, req userPatchRequest) (*users.User, error) {
	if _, ok := req.Updates["role"]; ok && req.UserID == callerID {
		return nil, errors.ErrSelfRoleEdit
	}

	updates, err := filterUpdates(req.Updates)
	if err != nil {
		return nil, err
	}
	if updates.Empty() {
		return nil, fmt.Errorf("no updatable fields supplied")
	}
	return s.repos.Users.Update(req.UserID, updates)
}

// filterUpdates reduces a raw PATCH body to the allow-listed fields,
// validating each value. Unknown fields are dropped silently.
func filterUpdates(raw map[string]any) (users.Updates, error) {
	var updates users.Updates
	for key, value := range raw {
		str, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "role":
			parsed, err := users.ParseRole(str)
			if err != nil {
				return users.Updates{}, err
			}
			updates.Role = &parsed
		case "status":
			parsed, err := users.ParseStatus(str)
			if err != nil {
				return users.Updates{}, err
			}
			updates.Status = &parsed
		case "displayName":
			name := str
			updates.DisplayName = &name
		}
	}
	return updates, nil
}
