package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/codesight/internal/provider"
)

const callbackURL = "https://codesight.example.com/api/webhooks/github"

type githubHook struct {
	Config struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type,omitempty"`
		Secret      string `json:"secret,omitempty"`
	} `json:"config"`
	Name   string   `json:"name,omitempty"`
	Events []string `json:"events"`
	ID     int64    `json:"id"`
	Active bool     `json:"active"`
}

type githubAPIMock struct {
	server *httptest.Server

	mu           sync.Mutex
	hooks        []githubHook
	nextHookID   int64
	repos        []map[string]any
	created      []githubHook
	edited       []int64
	deleted      []int64
	listQueries  []string
	hookListings int

	// failures maps "METHOD route" to statuses returned before succeeding.
	failures map[string][]int
}

func newGitHubAPIMock() *githubAPIMock {
	m := &githubAPIMock{nextHookID: 1000, failures: map[string][]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/repos", m.handleListRepos)
	mux.HandleFunc("GET /repos/{owner}/{repo}/hooks", m.handleListHooks)
	mux.HandleFunc("GET /repos/{owner}/{repo}/hooks/{id}", m.handleGetHook)
	mux.HandleFunc("POST /repos/{owner}/{repo}/hooks", m.handleCreateHook)
	mux.HandleFunc("PATCH /repos/{owner}/{repo}/hooks/{id}", m.handleEditHook)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/hooks/{id}", m.handleDeleteHook)
	m.server = httptest.NewServer(mux)
	return m
}

func (m *githubAPIMock) close() {
	m.server.Close()
}

func (m *githubAPIMock) failNext(route string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[route] = append(m.failures[route], statuses...)
}

func (m *githubAPIMock) injectFailure(w http.ResponseWriter, route string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.failures[route]
	if len(queue) == 0 {
		return false
	}
	status := queue[0]
	m.failures[route] = queue[1:]
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"message":"injected failure"}`))
	return true
}

func (m *githubAPIMock) handleListRepos(w http.ResponseWriter, r *http.Request) {
	if m.injectFailure(w, "GET /user/repos") {
		return
	}
	m.mu.Lock()
	m.listQueries = append(m.listQueries, r.URL.RawQuery)
	repos := m.repos
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, repos)
}

func (m *githubAPIMock) handleListHooks(w http.ResponseWriter, r *http.Request) {
	if m.injectFailure(w, "GET hooks") {
		return
	}
	m.mu.Lock()
	m.hookListings++
	hooks := append([]githubHook{}, m.hooks...)
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, hooks)
}

func (m *githubAPIMock) handleGetHook(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hooks {
		if h.ID == id {
			writeJSON(w, http.StatusOK, h)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (m *githubAPIMock) handleCreateHook(w http.ResponseWriter, r *http.Request) {
	if m.injectFailure(w, "POST hooks") {
		return
	}
	var hook githubHook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.nextHookID++
	hook.ID = m.nextHookID
	m.hooks = append(m.hooks, hook)
	m.created = append(m.created, hook)
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, hook)
}

func (m *githubAPIMock) handleEditHook(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	var patch githubHook
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.hooks {
		if h.ID == id {
			h.Config = patch.Config
			h.Events = patch.Events
			h.Active = patch.Active
			m.hooks[i] = h
			m.edited = append(m.edited, id)
			writeJSON(w, http.StatusOK, h)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (m *githubAPIMock) handleDeleteHook(w http.ResponseWriter, r *http.Request) {
	if m.injectFailure(w, "DELETE hooks") {
		return
	}
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.hooks {
		if h.ID == id {
			m.hooks = append(m.hooks[:i], m.hooks[i+1:]...)
			m.deleted = append(m.deleted, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func hookFor(id int64, url string) githubHook {
	h := githubHook{ID: id, Name: "web", Active: true, Events: []string{"push"}}
	h.Config.URL = url
	return h
}

var _ = Describe("GitHub client", func() {
	var (
		ctx      context.Context
		mock     *githubAPIMock
		recorder *fakeRecorder
		client   provider.Client
		opts     provider.Options
	)

	target := func() provider.WebhookTarget {
		return provider.WebhookTarget{Owner: "acme", Repo: "widgets", CallbackURL: callbackURL}
	}

	build := func() {
		f, err := provider.NewGitHubFactory(opts)
		Expect(err).NotTo(HaveOccurred())
		client, err = f.ForToken("gho_test")
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		mock = newGitHubAPIMock()
		recorder = &fakeRecorder{}
		opts = provider.Options{
			BaseURL:              mock.server.URL,
			WebhookSecret:        "s3cret",
			MaxRetries:           2,
			RetryInitialInterval: time.Millisecond,
			Recorder:             recorder,
		}
		build()
	})

	AfterEach(func() {
		mock.close()
	})

	Describe("ListRepositories", func() {
		It("requests one page sorted by most recently updated", func() {
			mock.repos = []map[string]any{
				{
					"id": 123, "name": "widgets", "full_name": "acme/widgets",
					"owner":       map[string]any{"login": "acme"},
					"description": "Widget factory", "html_url": "https://github.com/acme/widgets",
					"stargazers_count": 42, "language": "Go", "topics": []string{"factory"},
					"private": true, "updated_at": "2024-05-01T10:00:00Z",
				},
			}

			repos, err := client.ListRepositories(ctx, 2, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(repos).To(HaveLen(1))

			r := repos[0]
			Expect(r.ID).To(Equal(int64(123)))
			Expect(r.Owner).To(Equal("acme"))
			Expect(r.FullName).To(Equal("acme/widgets"))
			Expect(r.URL).To(Equal("https://github.com/acme/widgets"))
			Expect(r.Stars).To(Equal(42))
			Expect(r.Language).To(Equal("Go"))
			Expect(r.Topics).To(ConsistOf("factory"))
			Expect(r.Private).To(BeTrue())
			Expect(r.UpdatedAt).NotTo(BeNil())

			Expect(mock.listQueries).To(HaveLen(1))
			q := mock.listQueries[0]
			Expect(q).To(ContainSubstring("sort=updated"))
			Expect(q).To(ContainSubstring("direction=desc"))
			Expect(q).To(ContainSubstring("visibility=all"))
			Expect(q).To(ContainSubstring("page=2"))
			Expect(q).To(ContainSubstring("per_page=10"))
		})
	})

	Describe("EnsureWebhook", func() {
		It("returns an existing hook with the same callback URL unchanged", func() {
			mock.hooks = []githubHook{hookFor(7, "https://elsewhere.example.com/hook"), hookFor(8, callbackURL)}

			hook, err := client.EnsureWebhook(ctx, target())
			Expect(err).NotTo(HaveOccurred())
			Expect(hook.ID).To(Equal(int64(8)))
			Expect(mock.created).To(BeEmpty())
		})

		It("creates a json hook for push and pull_request when none matches", func() {
			mock.hooks = []githubHook{hookFor(7, callbackURL + "/old")}

			hook, err := client.EnsureWebhook(ctx, target())
			Expect(err).NotTo(HaveOccurred())
			Expect(hook.URL).To(Equal(callbackURL))

			Expect(mock.created).To(HaveLen(1))
			created := mock.created[0]
			Expect(created.Events).To(ConsistOf("push", "pull_request"))
			Expect(created.Config.URL).To(Equal(callbackURL))
			Expect(created.Config.ContentType).To(Equal("json"))
			Expect(created.Config.Secret).To(Equal("s3cret"))
			Expect(created.Active).To(BeTrue())
		})

		It("is idempotent across calls", func() {
			first, err := client.EnsureWebhook(ctx, target())
			Expect(err).NotTo(HaveOccurred())
			second, err := client.EnsureWebhook(ctx, target())
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ID).To(Equal(first.ID))
			Expect(mock.created).To(HaveLen(1))
		})

		It("uses the stored hook id without listing", func() {
			mock.hooks = []githubHook{hookFor(8, callbackURL)}
			t := target()
			t.HookID = ptr(int64(8))

			hook, err := client.EnsureWebhook(ctx, t)
			Expect(err).NotTo(HaveOccurred())
			Expect(hook.ID).To(Equal(int64(8)))
			Expect(mock.hookListings).To(BeZero())
		})

		It("retargets the stored hook when the callback URL moved", func() {
			mock.hooks = []githubHook{hookFor(7, "https://old-host.example.com/api/webhooks/github")}
			t := target()
			t.HookID = ptr(int64(7))

			hook, err := client.EnsureWebhook(ctx, t)
			Expect(err).NotTo(HaveOccurred())
			Expect(hook.ID).To(Equal(int64(7)))
			Expect(hook.URL).To(Equal(callbackURL))

			Expect(mock.created).To(BeEmpty())
			Expect(mock.edited).To(Equal([]int64{7}))
			Expect(mock.hooks).To(HaveLen(1))
			Expect(mock.hooks[0].Config.URL).To(Equal(callbackURL))
			Expect(mock.hooks[0].Config.Secret).To(Equal("s3cret"))
			Expect(mock.hooks[0].Events).To(ConsistOf("push", "pull_request"))
		})

		It("falls back to URL matching when the stored id is gone", func() {
			mock.hooks = []githubHook{hookFor(9, callbackURL)}
			t := target()
			t.HookID = ptr(int64(8))

			hook, err := client.EnsureWebhook(ctx, t)
			Expect(err).NotTo(HaveOccurred())
			Expect(hook.ID).To(Equal(int64(9)))
			Expect(mock.created).To(BeEmpty())
		})

		It("maps an inaccessible repository to NotFound", func() {
			mock.failNext("GET hooks", http.StatusNotFound)

			_, err := client.EnsureWebhook(ctx, target())
			Expect(provider.IsKind(err, provider.KindNotFound)).To(BeTrue())
		})

		It("maps missing admin scope to Forbidden without retrying", func() {
			mock.failNext("POST hooks", http.StatusForbidden)

			_, err := client.EnsureWebhook(ctx, target())
			Expect(provider.IsKind(err, provider.KindForbidden)).To(BeTrue())

			var perr *provider.Error
			Expect(err).To(BeAssignableToTypeOf(perr))
			Expect(mock.hookListings).To(Equal(1))
		})

		It("retries transport failures and re-lists before creating", func() {
			mock.failNext("POST hooks", http.StatusBadGateway)

			hook, err := client.EnsureWebhook(ctx, target())
			Expect(err).NotTo(HaveOccurred())
			Expect(hook).NotTo(BeNil())
			Expect(mock.created).To(HaveLen(1))
			Expect(mock.hookListings).To(Equal(2))
			Expect(recorder.observations()).To(ConsistOf(observation{provider: "github", operation: "ensure_webhook", outcome: "ok"}))
		})

		It("gives up after the retry budget", func() {
			opts.MaxRetries = 0
			build()
			mock.failNext("GET hooks", http.StatusServiceUnavailable)

			_, err := client.EnsureWebhook(ctx, target())
			Expect(provider.IsKind(err, provider.KindTransport)).To(BeTrue())
			Expect(recorder.observations()).To(ConsistOf(observation{provider: "github", operation: "ensure_webhook", outcome: "transport"}))
		})

		It("reports throttling as RateLimited", func() {
			opts.MaxRetries = 0
			build()
			mock.failNext("GET hooks", http.StatusTooManyRequests)

			_, err := client.EnsureWebhook(ctx, target())
			Expect(provider.IsKind(err, provider.KindRateLimited)).To(BeTrue())
		})
	})

	Describe("RemoveWebhook", func() {
		It("deletes the hook matching the callback URL", func() {
			mock.hooks = []githubHook{hookFor(7, "https://elsewhere.example.com/hook"), hookFor(8, callbackURL)}

			removed, err := client.RemoveWebhook(ctx, target())
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeTrue())
			Expect(mock.deleted).To(Equal([]int64{8}))
		})

		It("treats a missing hook as success", func() {
			mock.hooks = []githubHook{hookFor(7, "https://elsewhere.example.com/hook")}

			removed, err := client.RemoveWebhook(ctx, target())
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeFalse())
			Expect(mock.deleted).To(BeEmpty())
		})

		It("deletes by stored id", func() {
			mock.hooks = []githubHook{hookFor(8, callbackURL)}
			t := target()
			t.HookID = ptr(int64(8))

			removed, err := client.RemoveWebhook(ctx, t)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeTrue())
			Expect(mock.hookListings).To(BeZero())
		})

		It("falls back to URL matching when the stored id is stale", func() {
			mock.hooks = []githubHook{hookFor(9, callbackURL)}
			t := target()
			t.HookID = ptr(int64(8))

			removed, err := client.RemoveWebhook(ctx, t)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeTrue())
			Expect(mock.deleted).To(Equal([]int64{9}))
		})

		It("propagates provider failures", func() {
			opts.MaxRetries = 0
			build()
			mock.hooks = []githubHook{hookFor(8, callbackURL)}
			mock.failNext("DELETE hooks", http.StatusInternalServerError)

			removed, err := client.RemoveWebhook(ctx, target())
			Expect(removed).To(BeFalse())
			Expect(provider.IsKind(err, provider.KindTransport)).To(BeTrue())
			Expect(mock.hooks).To(HaveLen(1))
		})
	})

	It("builds browser URLs for repositories", func() {
		Expect(client.RepositoryURL("acme", "widgets")).To(Equal("https://github.com/acme/widgets"))
	})

	It("rejects an empty token", func() {
		f, err := provider.NewGitHubFactory(opts)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.ForToken("")
		Expect(err).To(HaveOccurred())
	})
})

func ptr[T any](v T) *T {
	return &v
}
