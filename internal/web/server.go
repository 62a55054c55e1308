// Package web serves the Warren dashboard: HTML pages, a JSON API, the
// routing graph export and the prometheus exposition endpoint. Every
// request recomputes its view from the backing store; the server keeps no
// state between requests.
package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/graph"
	"github.com/dyluth/warren/internal/metrics"
	"github.com/dyluth/warren/internal/state"
	"github.com/dyluth/warren/pkg/fleet"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Server handles dashboard HTTP requests.
type Server struct {
	client     *fleet.Client
	cfg        *config.Config
	aggregator *state.Aggregator
	builder    *graph.Builder
	templates  *template.Template
}

// NewServer creates a dashboard server reading through the given client.
func NewServer(client *fleet.Client, cfg *config.Config) (*Server, error) {
	templates, err := template.New("").Funcs(template.FuncMap{
		"prettydelta": PrettyDelta,
		"markdown":    RenderDescription,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		client:     client,
		cfg:        cfg,
		aggregator: state.NewAggregator(client),
		builder:    graph.NewBuilder(client),
		templates:  templates,
	}, nil
}

// Handler returns the full dashboard route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /queue/{name}", s.handleQueue)
	mux.HandleFunc("GET /queue/{name}/crashed", s.handleCrashedQueue)
	mux.HandleFunc("GET /task/{id}", s.handleTask)
	mux.HandleFunc("GET /analysis/{root}", s.handleAnalysis)
	mux.HandleFunc("GET /graph", s.handleGraph)
	mux.HandleFunc("GET /varz", s.handleVarz)
	mux.Handle("GET /static/", http.FileServerFS(staticFS))

	mux.HandleFunc("GET /api/queues", s.handleQueuesAPI)
	mux.HandleFunc("GET /api/queue/{name}", s.handleQueueAPI)
	mux.HandleFunc("GET /api/task/{id}", s.handleTaskAPI)
	mux.HandleFunc("GET /api/analysis/{root}", s.handleAnalysisAPI)
	mux.HandleFunc("GET /api/graph", s.handleGraphAPI)

	mux.HandleFunc("POST /task/{id}/restart", s.handleRestartTask)
	mux.HandleFunc("POST /task/{id}/cancel", s.handleCancelTask)

	return mux
}

// queueJSON is the wire shape of one queue view.
type queueJSON struct {
	Identity       string         `json:"identity"`
	Filters        []fleet.Filter `json:"filters"`
	Description    string         `json:"description"`
	Persistent     bool           `json:"persistent"`
	Version        string         `json:"version"`
	ServiceVersion string         `json:"service_version"`
	Replicas       int            `json:"replicas"`
	Tasks          []string       `json:"tasks"`
	Crashed        []string       `json:"crashed"`
}

func queueToJSON(q *state.Queue) queueJSON {
	return queueJSON{
		Identity:       q.Identity,
		Filters:        q.Filters,
		Description:    q.Description,
		Persistent:     q.Persistent,
		Version:        q.Version,
		ServiceVersion: q.ServiceVersion,
		Replicas:       q.Replicas,
		Tasks:          q.TaskIDs(),
		Crashed:        q.CrashedIDs(),
	}
}

// analysisJSON is the wire shape of one analysis view.
type analysisJSON struct {
	RootID     string                         `json:"uid"`
	Queues     map[string][]*fleet.TaskRecord `json:"queues"`
	LastUpdate int64                          `json:"last_update"`
}

func analysisToJSON(a *state.Analysis) analysisJSON {
	return analysisJSON{
		RootID:     a.RootID,
		Queues:     a.Queues,
		LastUpdate: a.LastUpdate(),
	}
}

// graphJSON is the wire shape of the routing graph.
type graphJSON struct {
	Nodes        []graphNodeJSON     `json:"nodes"`
	ReceivesFrom map[string][]string `json:"receives_from"`
}

type graphNodeJSON struct {
	Identity string             `json:"identity"`
	Version  string             `json:"version"`
	Info     string             `json:"info"`
	Filters  []fleet.Filter     `json:"filters"`
	Outputs  []fleet.Descriptor `json:"outputs"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	queues := make([]*state.Queue, 0, len(snap.Queues))
	for _, q := range snap.Queues {
		queues = append(queues, q)
	}
	sort.Slice(queues, func(i, j int) bool {
		return queues[i].Identity < queues[j].Identity
	})

	s.render(w, "index.html", map[string]any{
		"Queues":     queues,
		"LogBacklog": snap.LogBacklog,
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	s.renderQueuePage(w, r, "queue.html")
}

func (s *Server) handleCrashedQueue(w http.ResponseWriter, r *http.Request) {
	s.renderQueuePage(w, r, "crashed.html")
}

func (s *Server) renderQueuePage(w http.ResponseWriter, r *http.Request, page string) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	queue, ok := snap.Queue(r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.render(w, page, map[string]any{"Queue": queue})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.client.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		if fleet.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		s.storeError(w, err)
		return
	}

	s.render(w, "task.html", map[string]any{
		"Task":  task,
		"Xrefs": s.cfg.XrefLinks(task.RootID),
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	analysis, ok := snap.Analysis(r.PathValue("root"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	queues := make([]string, 0, len(analysis.Queues))
	for identity := range analysis.Queues {
		queues = append(queues, identity)
	}
	sort.Strings(queues)

	s.render(w, "analysis.html", map[string]any{
		"Analysis":   analysis,
		"QueueOrder": queues,
		"Xrefs":      s.cfg.XrefLinks(analysis.RootID),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.builder.Build(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	doc, err := g.GEXF()
	if err != nil {
		s.storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(doc)
}

func (s *Server) handleVarz(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	reg := metrics.Registry(snap)
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) handleQueuesAPI(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	out := make(map[string]queueJSON, len(snap.Queues))
	for identity, queue := range snap.Queues {
		out[identity] = queueToJSON(queue)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQueueAPI(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	queue, ok := snap.Queue(r.PathValue("name"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Queue doesn't exist")
		return
	}
	writeJSON(w, http.StatusOK, queueToJSON(queue))
}

func (s *Server) handleTaskAPI(w http.ResponseWriter, r *http.Request) {
	task, err := s.client.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		if fleet.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "Task doesn't exist")
			return
		}
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleAnalysisAPI(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregator.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	analysis, ok := snap.Analysis(r.PathValue("root"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Analysis doesn't exist")
		return
	}
	writeJSON(w, http.StatusOK, analysisToJSON(analysis))
}

func (s *Server) handleGraphAPI(w http.ResponseWriter, r *http.Request) {
	g, err := s.builder.Build(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	out := graphJSON{
		Nodes:        make([]graphNodeJSON, 0, len(g.Nodes)),
		ReceivesFrom: g.ReceivesFrom,
	}
	for _, node := range g.Nodes {
		out.Nodes = append(out.Nodes, graphNodeJSON{
			Identity: node.Identity,
			Version:  node.Version,
			Info:     node.Info,
			Filters:  node.Filters,
			Outputs:  node.Outputs,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRestartTask re-submits a task: a fork with a fresh ID lands back in
// the original receiver's queue and the original is marked finished so the
// backend collects it. A pure status mutation - no scheduling involved.
func (s *Server) handleRestartTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.client.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		if fleet.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "Task doesn't exist")
			return
		}
		s.storeError(w, err)
		return
	}

	if err := s.client.CreateTask(r.Context(), task.Fork()); err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.client.SetTaskStatus(r.Context(), task, fleet.StatusFinished); err != nil {
		s.storeError(w, err)
		return
	}

	redirectBack(w, r)
}

// handleCancelTask marks a task finished so the backend garbage-collects it
// without it ever being delivered.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.client.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		if fleet.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "Task doesn't exist")
			return
		}
		s.storeError(w, err)
		return
	}

	if err := s.client.SetTaskStatus(r.Context(), task, fleet.StatusFinished); err != nil {
		s.storeError(w, err)
		return
	}

	redirectBack(w, r)
}

func (s *Server) render(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, page, data); err != nil {
		log.Printf("failed to render %s: %v", page, err)
	}
}

// storeError reports a backing-store failure. Data-quality problems never
// reach here; only a genuine store outage does.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	log.Printf("backing store error: %v", err)
	http.Error(w, "backing store unavailable", http.StatusServiceUnavailable)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func redirectBack(w http.ResponseWriter, r *http.Request) {
	target := r.Referer()
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}
