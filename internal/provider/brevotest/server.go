// Package brevotest is an in-memory stand-in for the Brevo v3 API subset the
// service uses. It backs the mock-provider binary and HTTP-level tests.
package brevotest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Operation names accepted by FailNext.
const (
	OpUpsertContact  = "upsertContact"
	OpAddContacts    = "addContacts"
	OpRemoveContacts = "removeContacts"
	OpListContacts   = "listContacts"
	OpGetList        = "getList"
	OpCreateList     = "createList"
	OpDeleteList     = "deleteList"
	OpCreateCampaign = "createCampaign"
	OpSendCampaign   = "sendCampaign"
	OpSendEmail      = "sendEmail"
)

type list struct {
	name     string
	folderID int64
	members  []string
}

type contact struct {
	attributes map[string]any
}

// Campaign is a campaign as seen by the fake.
type Campaign struct {
	ID         int64
	Name       string
	Subject    string
	ListIDs    []int64
	Sent       bool
	Recipients []string // list members at send time
}

// SentEmail is one transactional send request.
type SentEmail struct {
	Subject    string
	Recipients []string
	Tags       []string
	HTML       string
	Text       string
}

type Server struct {
	apiKey string

	mu        sync.Mutex
	nextID    int64
	lists     map[int64]*list
	contacts  map[string]*contact
	campaigns map[int64]*Campaign
	sent      []SentEmail
	calls     []string
	failures  map[string]int
}

func NewServer(apiKey string) *Server {
	return &Server{
		apiKey:    apiKey,
		nextID:    1000,
		lists:     make(map[int64]*list),
		contacts:  make(map[string]*contact),
		campaigns: make(map[int64]*Campaign),
		failures:  make(map[string]int),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.auth)

	r.Post("/contacts", s.upsertContact)
	r.Route("/contacts/lists", func(r chi.Router) {
		r.Post("/", s.createList)
		r.Get("/{id}", s.getList)
		r.Delete("/{id}", s.deleteList)
		r.Get("/{id}/contacts", s.listContacts)
		r.Post("/{id}/contacts/add", s.addContacts)
		r.Post("/{id}/contacts/remove", s.removeContacts)
	})
	r.Post("/emailCampaigns", s.createCampaign)
	r.Post("/emailCampaigns/{id}/sendNow", s.sendCampaign)
	r.Post("/smtp/email", s.sendEmail)

	return r
}

// AddList registers a list with a fixed ID and optional members.
func (s *Server) AddList(id int64, name string, emails ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &list{name: name}
	for _, e := range emails {
		s.ensureContact(e)
		l.members = append(l.members, e)
	}
	s.lists[id] = l
}

// FailNext makes the next n calls of op answer with a 400. n < 0 fails forever.
func (s *Server) FailNext(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = n
}

func (s *Server) Members(listID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return nil
	}
	return slices.Clone(l.members)
}

// ListCount returns how many lists currently exist.
func (s *Server) ListCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lists)
}

func (s *Server) Campaigns() []Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b Campaign) int { return int(a.ID - b.ID) })
	return out
}

func (s *Server) SentEmails() []SentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent)
}

// Calls returns the operations served so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func (s *Server) Attributes(email string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contacts[email]; ok {
		return c.attributes
	}
	return nil
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("api-key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Key not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// begin records the call and reports whether it should fail. Caller holds mu.
func (s *Server) begin(op string) bool {
	s.calls = append(s.calls, op)
	n, ok := s.failures[op]
	if !ok || n == 0 {
		return false
	}
	if n > 0 {
		s.failures[op] = n - 1
	}
	return true
}

func (s *Server) ensureContact(email string) *contact {
	c, ok := s.contacts[email]
	if !ok {
		c = &contact{attributes: map[string]any{}}
		s.contacts[email] = c
	}
	return c
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) upsertContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email         string         `json:"email"`
		Attributes    map[string]any `json:"attributes"`
		ListIDs       []int64        `json:"listIds"`
		UnlinkListIDs []int64        `json:"unlinkListIds"`
		UpdateEnabled bool           `json:"updateEnabled"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpUpsertContact) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	if _, exists := s.contacts[req.Email]; exists && !req.UpdateEnabled {
		writeError(w, http.StatusBadRequest, "duplicate_parameter", "Contact already exist")
		return
	}

	c := s.ensureContact(req.Email)
	for k, v := range req.Attributes {
		c.attributes[k] = v
	}
	for _, id := range req.ListIDs {
		if l, ok := s.lists[id]; ok && !slices.Contains(l.members, req.Email) {
			l.members = append(l.members, req.Email)
		}
	}
	for _, id := range req.UnlinkListIDs {
		if l, ok := s.lists[id]; ok {
			l.members = slices.DeleteFunc(l.members, func(e string) bool { return e == req.Email })
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		FolderID int64  `json:"folderId"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpCreateList) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	id := s.id()
	s.lists[id] = &list{name: req.Name, folderID: req.FolderID}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) getList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpGetList) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	id, l, ok := s.lookupList(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               id,
		"name":             l.name,
		"totalSubscribers": len(l.members),
	})
}

func (s *Server) deleteList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpDeleteList) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	id, _, ok := s.lookupList(w, r)
	if !ok {
		return
	}
	delete(s.lists, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpListContacts) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	_, l, ok := s.lookupList(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 500 {
		writeError(w, http.StatusBadRequest, "out_of_range", "limit must be between 1 and 500")
		return
	}

	contacts := []map[string]any{}
	for i := offset; i < len(l.members) && i < offset+limit; i++ {
		email := l.members[i]
		contacts = append(contacts, map[string]any{
			"email":      email,
			"attributes": s.contacts[email].attributes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts, "count": len(l.members)})
}

func (s *Server) addContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpAddContacts) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	_, l, ok := s.lookupList(w, r)
	if !ok {
		return
	}
	if len(req.Emails) > 150 {
		writeError(w, http.StatusBadRequest, "out_of_range", "at most 150 emails per call")
		return
	}
	for _, e := range req.Emails {
		s.ensureContact(e)
		if !slices.Contains(l.members, e) {
			l.members = append(l.members, e)
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"contacts": map[string]any{"success": req.Emails}})
}

func (s *Server) removeContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emails []string `json:"emails"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpRemoveContacts) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	_, l, ok := s.lookupList(w, r)
	if !ok {
		return
	}

	removed := 0
	l.members = slices.DeleteFunc(l.members, func(e string) bool {
		if slices.Contains(req.Emails, e) {
			removed++
			return true
		}
		return false
	})
	if removed == 0 {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "Contact already removed from list and/or does not exist")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"contacts": map[string]any{"success": req.Emails}})
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Subject    string `json:"subject"`
		Recipients struct {
			ListIDs []int64 `json:"listIds"`
		} `json:"recipients"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpCreateCampaign) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	id := s.id()
	s.campaigns[id] = &Campaign{ID: id, Name: req.Name, Subject: req.Subject, ListIDs: req.Recipients.ListIDs}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) sendCampaign(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpSendCampaign) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	c, ok := s.campaigns[id]
	if err != nil || !ok {
		writeError(w, http.StatusNotFound, "document_not_found", "Campaign does not exist")
		return
	}

	c.Sent = true
	c.Recipients = nil
	for _, listID := range c.ListIDs {
		if l, ok := s.lists[listID]; ok {
			c.Recipients = append(c.Recipients, l.members...)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendEmail(w http.ResponseWriter, r *http.Request) {
	type addr struct {
		Email string `json:"email"`
	}
	var req struct {
		To              []addr `json:"to"`
		MessageVersions []struct {
			To []addr `json:"to"`
		} `json:"messageVersions"`
		Subject     string   `json:"subject"`
		HTMLContent string   `json:"htmlContent"`
		TextContent string   `json:"textContent"`
		Tags        []string `json:"tags"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.begin(OpSendEmail) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "simulated failure")
		return
	}

	sent := SentEmail{Subject: req.Subject, Tags: req.Tags, HTML: req.HTMLContent, Text: req.TextContent}
	for _, a := range req.To {
		sent.Recipients = append(sent.Recipients, a.Email)
	}
	for _, v := range req.MessageVersions {
		for _, a := range v.To {
			sent.Recipients = append(sent.Recipients, a.Email)
		}
	}
	if len(sent.Recipients) == 0 {
		writeError(w, http.StatusBadRequest, "missing_parameter", "to is missing")
		return
	}
	s.sent = append(s.sent, sent)
	writeJSON(w, http.StatusCreated, map[string]string{"messageId": fmt.Sprintf("<%d@brevotest>", s.id())})
}

// lookupList resolves {id}. Caller holds mu.
func (s *Server) lookupList(w http.ResponseWriter, r *http.Request) (int64, *list, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "invalid list id")
		return 0, nil, false
	}
	l, ok := s.lists[id]
	if !ok {
		writeError(w, http.StatusNotFound, "document_not_found", "List ID does not exist")
		return 0, nil, false
	}
	return id, l, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
