// Package drivetest provides an in-memory Drive v3 REST endpoint for tests.
package drivetest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	drive "google.golang.org/api/drive/v3"
)

// Request is one request received by the Server.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
}

// Server fakes the subset of the Drive files API the client uses. Pass
// Endpoint() to option.WithEndpoint.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string]*drive.File
	content  map[string][]byte
	truncate map[string]bool
	stream   map[string]bool
	requests []Request
	next     int
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		files:    make(map[string]*drive.File),
		content:  make(map[string][]byte),
		truncate: make(map[string]bool),
		stream:   make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /files", s.handleList)
	mux.HandleFunc("POST /files", s.handleCreate)
	mux.HandleFunc("POST /upload/drive/v3/files", s.handleUpload)
	mux.HandleFunc("GET /files/{id}", s.handleGet)
	mux.HandleFunc("PATCH /files/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /files/{id}", s.handleDelete)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the base path to hand to option.WithEndpoint.
func (s *Server) Endpoint() string { return s.URL + "/" }

// AddFile stores f with the given content and returns its id. An id is
// assigned when f.Id is empty.
func (s *Server) AddFile(f *drive.File, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(f)
	s.content[f.Id] = content
	return f.Id
}

// File returns a copy of the stored metadata for id.
func (s *Server) File(id string) (*drive.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, false
	}
	cp := *f
	return &cp, true
}

// Content returns the stored media for id.
func (s *Server) Content(id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content[id]
}

// TruncateDownload makes media downloads of id stop halfway through the
// declared Content-Length.
func (s *Server) TruncateDownload(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncate[id] = true
}

// StreamDownload makes media downloads of id omit Content-Length, so the
// client sees an unknown length.
func (s *Server) StreamDownload(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream[id] = true
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsMatching returns the requests with the given method.
func (s *Server) RequestsMatching(method string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// store must be called with mu held.
func (s *Server) store(f *drive.File) {
	if f.Id == "" {
		s.next++
		f.Id = fmt.Sprintf("file-%d", s.next)
	}
	if len(f.Parents) == 0 {
		f.Parents = []string{"root"}
	}
	if f.WebViewLink == "" {
		f.WebViewLink = "https://drive.google.com/file/d/" + f.Id + "/view"
	}
	if f.CreatedTime == "" {
		now := time.Now().UTC().Format(time.RFC3339)
		f.CreatedTime, f.ModifiedTime = now, now
	}
	s.files[f.Id] = f
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("pageSize"))
	term, filtered := nameContains(q.Get("q"))

	s.mu.Lock()
	list := &drive.FileList{Files: []*drive.File{}}
	for _, f := range s.files {
		if filtered && !strings.Contains(f.Name, term) {
			continue
		}
		if limit > 0 && len(list.Files) >= limit {
			break
		}
		list.Files = append(list.Files, f)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var f drive.File
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid metadata: "+err.Error())
		return
	}
	s.mu.Lock()
	s.store(&f)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, &f)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		writeError(w, http.StatusBadRequest, "expected multipart upload")
		return
	}

	mr := multipart.NewReader(r.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing metadata part")
		return
	}
	var f drive.File
	if err := json.NewDecoder(metaPart).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid metadata: "+err.Error())
		return
	}
	mediaPart, err := mr.NextPart()
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing media part")
		return
	}
	body, err := io.ReadAll(mediaPart)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	f.Size = int64(len(body))
	s.store(&f)
	s.content[f.Id] = body
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, &f)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	f, ok := s.files[id]
	body := s.content[id]
	truncate := s.truncate[id]
	stream := s.stream[id]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id+".")
		return
	}
	if r.URL.Query().Get("alt") != "media" {
		writeJSON(w, http.StatusOK, f)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if stream {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		_, _ = w.Write(body)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if truncate {
		body = body[:len(body)/2]
	}
	_, _ = w.Write(body)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch drive.File
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid metadata: "+err.Error())
		return
	}

	s.mu.Lock()
	f, ok := s.files[id]
	if ok {
		if patch.Name != "" {
			f.Name = patch.Name
		}
		q := r.URL.Query()
		if remove := q.Get("removeParents"); remove != "" {
			f.Parents = without(f.Parents, strings.Split(remove, ","))
		}
		if add := q.Get("addParents"); add != "" {
			f.Parents = append(f.Parents, strings.Split(add, ",")...)
		}
		f.ModifiedTime = time.Now().UTC().Format(time.RFC3339)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id+".")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, ok := s.files[id]
	delete(s.files, id)
	delete(s.content, id)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id+".")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nameContains extracts the term from a "name contains '<term>'" query.
func nameContains(q string) (string, bool) {
	const prefix = "name contains '"
	if !strings.HasPrefix(q, prefix) || !strings.HasSuffix(q, "'") {
		return "", false
	}
	term := q[len(prefix) : len(q)-1]
	return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(term), true
}

func without(list, remove []string) []string {
	out := list[:0:0]
	for _, v := range list {
		keep := true
		for _, r := range remove {
			if v == r {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": msg,
			"errors": []map[string]string{
				{"domain": "global", "reason": http.StatusText(status), "message": msg},
			},
		},
	})
}
