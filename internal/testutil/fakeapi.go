package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Response is a canned HTTP answer.
type Response struct {
	Status int
	Body   string
}

// Request is a recorded inbound call.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// FakeAPI is an in-process stand-in for the remote back office API. Routes
// answer with queued one-shot responses first, then with the static response
// set for them. Unconfigured routes answer 404, except the health probe.
type FakeAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	static   map[string]Response
	queued   map[string][]Response
	handlers map[string]http.HandlerFunc
	requests []Request
}

func routeKey(method, path string) string {
	return method + " " + strings.TrimPrefix(path, "/")
}

func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		static:   make(map[string]Response),
		queued:   make(map[string][]Response),
		handlers: make(map[string]http.HandlerFunc),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", f.serve)
		r.Get("/companies", f.serve)
		r.Post("/auth/login", f.serve)
		r.Get("/catalogs/{name}", f.serve)
		r.Post("/vouchers/supply", f.serve)
		r.Post("/readings/{kind}", f.serve)
		r.Post("/authorizations/{action}", f.serve)
	})

	f.server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := routeKey(r.Method, r.URL.Path)

	f.mu.Lock()
	f.requests = append(f.requests, Request{
		Method: r.Method,
		Path:   strings.TrimPrefix(r.URL.Path, "/"),
		Header: r.Header.Clone(),
		Body:   body,
	})
	h, custom := f.handlers[key]
	resp, ok := f.next(key)
	f.mu.Unlock()

	if custom {
		h(w, r)
		return
	}
	if !ok {
		if key == routeKey(http.MethodGet, "api/health") {
			resp = Response{Status: http.StatusOK, Body: Envelope(http.StatusOK, "ok")}
		} else {
			resp = Response{Status: http.StatusNotFound, Body: `{"status":404,"message":"not configured"}`}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}

// next must be called with mu held.
func (f *FakeAPI) next(key string) (Response, bool) {
	if q := f.queued[key]; len(q) > 0 {
		f.queued[key] = q[1:]
		return q[0], true
	}
	resp, ok := f.static[key]
	return resp, ok
}

// URL is the base address of the fake, with a trailing slash.
func (f *FakeAPI) URL() string {
	return f.server.URL + "/"
}

func (f *FakeAPI) Close() {
	f.server.Close()
}

// Set makes the route answer with status and body until changed.
func (f *FakeAPI) Set(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.static[routeKey(method, path)] = Response{Status: status, Body: body}
}

// Queue adds one-shot responses served before the static one.
func (f *FakeAPI) Queue(method, path string, responses ...Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := routeKey(method, path)
	f.queued[key] = append(f.queued[key], responses...)
}

// Handle routes method and path to h, bypassing canned responses.
func (f *FakeAPI) Handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[routeKey(method, path)] = h
}

// Requests returns the recorded calls to method and path.
func (f *FakeAPI) Requests(method, path string) []Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = strings.TrimPrefix(path, "/")
	var out []Request
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeAPI) Count(method, path string) int {
	return len(f.Requests(method, path))
}

// Envelope renders a standard {status,data} response body.
func Envelope(status int, data any) string {
	b, err := json.Marshal(map[string]any{"status": status, "data": data, "totalCount": count(data), "message": ""})
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Legacy renders a legacy {success,message,dataList} response body.
func Legacy(success bool, message string, list any) string {
	b, err := json.Marshal(map[string]any{"success": success, "message": message, "dataList": list})
	if err != nil {
		panic(err)
	}
	return string(b)
}

func count(data any) int {
	b, err := json.Marshal(data)
	if err != nil {
		return 0
	}
	var list []json.RawMessage
	if json.Unmarshal(b, &list) != nil {
		return 0
	}
	return len(list)
}
