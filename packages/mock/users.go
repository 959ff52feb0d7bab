package mock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultPerPage = 6
	maxPerPage     = 100
)

// User is one record of the users collection.
type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

// UserPage is the paged list returned by GET /api/users.
type UserPage struct {
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
	Data       []User `json:"data"`
}

func seedUsers() []User {
	names := [][2]string{
		{"George", "Bluth"}, {"Janet", "Weaver"}, {"Emma", "Wong"}, {"Eve", "Holt"},
		{"Charles", "Morris"}, {"Tracey", "Ramos"}, {"Michael", "Lawson"}, {"Lindsay", "Ferguson"},
		{"Tobias", "Funke"}, {"Byron", "Fields"}, {"George", "Edwards"}, {"Rachel", "Howell"},
	}
	users := make([]User, len(names))
	for i, n := range names {
		id := i + 1
		users[i] = User{
			ID:        id,
			Email:     fmt.Sprintf("%s.%s@reqres.in", strings.ToLower(n[0]), strings.ToLower(n[1])),
			FirstName: n[0],
			LastName:  n[1],
			Avatar:    fmt.Sprintf("https://reqres.in/img/faces/%d-image.jpg", id),
		}
	}
	return users
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	page := queryInt(r, "page", 1)
	perPage := min(queryInt(r, "per_page", defaultPerPage), maxPerPage)

	data, total := s.usersPage(page, perPage)
	writeJSON(w, http.StatusOK, UserPage{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
		Data:       data,
	})
}

// usersPage returns the 1-based page of users. Pages past the end are
// empty; the offset is only computed once page is known to be in range.
func (s *Server) usersPage(page, perPage int) ([]User, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.users)
	if page-1 >= (total+perPage-1)/perPage {
		return []User{}, total
	}
	from := (page - 1) * perPage
	to := min(from+perPage, total)
	data := make([]User, to-from)
	copy(data, s.users[from:to])
	return data, total
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, ok := s.findUser(params["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": user})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body, ok := readObject(w, r)
	if !ok {
		return
	}
	body["id"] = uuid.NewString()
	body["createdAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body, ok := readObject(w, r)
	if !ok {
		return
	}
	body["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) deleteUser(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body, ok := readObject(w, r)
	if !ok {
		return
	}

	email, _ := body["email"].(string)
	if email == "" {
		email, _ = body["username"].(string)
	}
	password, _ := body["password"].(string)

	switch {
	case email == "":
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing email or username"})
		return
	case password == "":
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing password"})
		return
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.tokens[token] = true
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) protected(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.RLock()
	valid := found && s.tokens[token]
	s.mu.RUnlock()

	if !valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true})
}

func (s *Server) findUser(rawID string) (User, bool) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return User{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// readObject decodes the request body as a JSON object. An empty body is
// an empty object.
func readObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body := make(map[string]any)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return body, true
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
