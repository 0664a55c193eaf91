package mockbackend

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"numa/internal/domain"
)

// collection describes one plainly stored resource for the generic CRUD
// handlers.
type collection[T any] struct {
	what  string
	items func(*Store) map[int64]T
	stamp func(*T, int64, string)
}

var (
	usersC = collection[domain.User]{"User",
		func(s *Store) map[int64]domain.User { return s.users },
		func(v *domain.User, id int64, ts string) { v.ID, v.UpdatedAt = id, ts }}
	appsC = collection[domain.Application]{"Application",
		func(s *Store) map[int64]domain.Application { return s.apps },
		func(v *domain.Application, id int64, ts string) { v.ID, v.UpdatedAt = id, ts }}
	requirementsC = collection[domain.Requirement]{"Requirement",
		func(s *Store) map[int64]domain.Requirement { return s.requirements },
		func(v *domain.Requirement, id int64, ts string) { v.ID, v.UpdatedAt = id, ts }}
	solutionsC = collection[domain.Solution]{"Solution",
		func(s *Store) map[int64]domain.Solution { return s.solutions },
		func(v *domain.Solution, id int64, ts string) { v.ID, v.UpdatedAt = id, ts }}
	tasksC = collection[domain.DevelopmentTask]{"Development task",
		func(s *Store) map[int64]domain.DevelopmentTask { return s.tasks },
		func(v *domain.DevelopmentTask, id int64, ts string) { v.ID, v.UpdatedAt = id, ts }}
	deploymentsC = collection[domain.Deployment]{"Deployment",
		func(s *Store) map[int64]domain.Deployment { return s.deployments },
		func(v *domain.Deployment, id int64, ts string) { v.ID, v.UpdatedAt = id, ts }}
)

type statusFilter interface{ EntityStatus() string }

func list[T any](s *Store, c collection[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, limit := queryInt(r, "skip", 0), queryInt(r, "limit", 100)
		status := r.URL.Query().Get("status")
		s.mu.Lock()
		items := sorted(c.items(s))
		s.mu.Unlock()
		if status != "" {
			filtered := items[:0:0]
			for _, it := range items {
				if sf, ok := any(it).(statusFilter); ok && sf.EntityStatus() != status {
					continue
				}
				filtered = append(filtered, it)
			}
			items = filtered
		}
		writeJSON(w, http.StatusOK, page(items, skip, limit))
	}
}

func get[T any](s *Store, c collection[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		s.mu.Lock()
		v, found := c.items(s)[id]
		s.mu.Unlock()
		if !found {
			writeError(w, missing(c.what))
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// update overlays the request body onto the stored record.
func update[T any](s *Store, c collection[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		v, found := c.items(s)[id]
		if !found {
			writeError(w, missing(c.what))
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			writeError(w, rule("invalid body: %v", err))
			return
		}
		c.stamp(&v, id, s.now())
		c.items(s)[id] = v
		writeJSON(w, http.StatusOK, v)
	}
}

func remove[T any](s *Store, c collection[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		s.mu.Lock()
		v, found := c.items(s)[id]
		delete(c.items(s), id)
		s.mu.Unlock()
		if !found {
			writeError(w, missing(c.what))
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func create[T any](fn func(T) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, rule("invalid body: %v", err))
			return
		}
		out, err := fn(in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Handler serves the backend API under /api/v1.
func Handler(s *Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", list(s, usersC))
			r.Post("/", create(func(u domain.User) (domain.User, error) { return s.CreateUser(u), nil }))
			r.Get("/{id}", get(s, usersC))
			r.Put("/{id}", update(s, usersC))
			r.Delete("/{id}", remove(s, usersC))
		})
		r.Route("/applications", func(r chi.Router) {
			r.Get("/", list(s, appsC))
			r.Post("/", create(s.CreateApplication))
			r.Get("/by_app_id/{appID}", func(w http.ResponseWriter, req *http.Request) {
				respond(w)(s.ApplicationByAppID(chi.URLParam(req, "appID")))
			})
			r.Get("/{id}", get(s, appsC))
			r.Patch("/{id}/status", func(w http.ResponseWriter, req *http.Request) {
				id, ok := pathID(w, req, "id")
				if !ok {
					return
				}
				var body struct {
					Status string `json:"status"`
				}
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeError(w, rule("invalid body: %v", err))
					return
				}
				respond(w)(s.SetApplicationStatus(id, body.Status))
			})
		})
		r.Route("/requirements", func(r chi.Router) {
			r.Get("/", list(s, requirementsC))
			r.Post("/", create(s.CreateRequirement))
			r.Get("/{id}", get(s, requirementsC))
			r.Put("/{id}", update(s, requirementsC))
			r.Delete("/{id}", remove(s, requirementsC))
			r.Post("/{id}/assign", func(w http.ResponseWriter, req *http.Request) {
				id, ok := pathID(w, req, "id")
				if !ok {
					return
				}
				assignee, ok := requiredInt(w, req, "assigned_to")
				if !ok {
					return
				}
				respond(w)(s.AssignRequirement(id, assignee))
			})
			r.Post("/{id}/confirm", func(w http.ResponseWriter, req *http.Request) {
				if id, ok := pathID(w, req, "id"); ok {
					respond(w)(s.ConfirmRequirement(id))
				}
			})
			r.Patch("/{id}/clarify", func(w http.ResponseWriter, req *http.Request) {
				id, ok := pathID(w, req, "id")
				if !ok {
					return
				}
				flag, ok := requiredBool(w, req, "clarified")
				if !ok {
					return
				}
				respond(w)(s.ClarifyRequirement(id, flag))
			})
		})
		r.Route("/questions", questionRoutes(s, domain.ParentRequirement))
		r.Route("/solutions", func(r chi.Router) {
			r.Route("/questions", questionRoutes(s, domain.ParentSolution))
			r.Get("/", list(s, solutionsC))
			r.Post("/", create(s.CreateSolution))
			r.Get("/requirement/{rid}", func(w http.ResponseWriter, req *http.Request) {
				if rid, ok := pathID(w, req, "rid"); ok {
					writeJSON(w, http.StatusOK, s.SolutionsByRequirement(rid))
				}
			})
			r.Get("/{id}", get(s, solutionsC))
			r.Put("/{id}", update(s, solutionsC))
			r.Delete("/{id}", remove(s, solutionsC))
			r.Patch("/{id}/confirm", func(w http.ResponseWriter, req *http.Request) {
				id, ok := pathID(w, req, "id")
				if !ok {
					return
				}
				confirmed := true
				if raw := req.URL.Query().Get("confirmed"); raw != "" {
					v, err := strconv.ParseBool(raw)
					if err != nil {
						writeValidation(w, "confirmed", "value could not be parsed to a boolean")
						return
					}
					confirmed = v
				}
				respond(w)(s.ConfirmSolution(id, confirmed))
			})
		})
		r.Route("/development", func(r chi.Router) {
			r.Get("/", list(s, tasksC))
			r.Post("/", create(s.CreateTask))
			r.Get("/{id}", get(s, tasksC))
			r.Put("/{id}", update(s, tasksC))
			r.Delete("/{id}", remove(s, tasksC))
		})
		r.Route("/deployment", func(r chi.Router) {
			r.Get("/", list(s, deploymentsC))
			r.Post("/", create(s.CreateDeployment))
			r.Get("/{id}", get(s, deploymentsC))
			r.Put("/{id}", update(s, deploymentsC))
			r.Delete("/{id}", remove(s, deploymentsC))
		})
		r.Route("/event_logs", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				writeJSON(w, http.StatusOK, page(s.EventLogs(0, 0), queryInt(req, "skip", 0), queryInt(req, "limit", 100)))
			})
			r.Get("/requirement/{id}", func(w http.ResponseWriter, req *http.Request) {
				if id, ok := pathID(w, req, "id"); ok {
					writeJSON(w, http.StatusOK, s.EventLogs(id, 0))
				}
			})
			r.Get("/question/{id}", func(w http.ResponseWriter, req *http.Request) {
				if id, ok := pathID(w, req, "id"); ok {
					writeJSON(w, http.StatusOK, s.EventLogs(0, id))
				}
			})
		})
	})
	return router
}

func questionRoutes(s *Store, kind domain.ParentKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			current, ok := requiredInt(w, req, "current_user_id")
			if !ok {
				return
			}
			var q domain.Question
			if err := json.NewDecoder(req.Body).Decode(&q); err != nil {
				writeError(w, rule("invalid body: %v", err))
				return
			}
			respond(w)(s.CreateQuestion(kind, q, current))
		})
		r.Get("/"+string(kind)+"/{pid}", func(w http.ResponseWriter, req *http.Request) {
			if pid, ok := pathID(w, req, "pid"); ok {
				writeJSON(w, http.StatusOK, s.QuestionsFor(kind, pid))
			}
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			if id, ok := pathID(w, req, "id"); ok {
				respond(w)(s.Question(kind, id))
			}
		})
		r.Patch("/{id}/answer", func(w http.ResponseWriter, req *http.Request) {
			id, ok := pathID(w, req, "id")
			if !ok {
				return
			}
			answer := req.URL.Query().Get("answer")
			if answer == "" {
				writeValidation(w, "answer", "field required")
				return
			}
			by, ok := requiredInt(w, req, "answered_by")
			if !ok {
				return
			}
			current, ok := requiredInt(w, req, "current_user_id")
			if !ok {
				return
			}
			respond(w)(s.AnswerQuestion(kind, id, answer, by, current))
		})
		r.Patch("/{id}/clarify", func(w http.ResponseWriter, req *http.Request) {
			id, ok := pathID(w, req, "id")
			if !ok {
				return
			}
			by, ok := requiredInt(w, req, "clarified_by")
			if !ok {
				return
			}
			current, ok := requiredInt(w, req, "current_user_id")
			if !ok {
				return
			}
			respond(w)(s.ClarifyQuestion(kind, id, by, current))
		})
	}
}

func respond(w http.ResponseWriter) func(any, error) {
	return func(v any, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var m *ErrMissing
	if errors.As(err, &m) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": m.Detail})
		return
	}
	var ru *ErrRule
	if errors.As(err, &ru) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": ru.Detail})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
}

type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// writeValidation mimics the backend's 422 body for bad parameters.
func writeValidation(w http.ResponseWriter, param, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationItem{
		"detail": {{Loc: []string{"query", param}, Msg: msg, Type: "value_error"}},
	})
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationItem{
			"detail": {{Loc: []string{"path", key}, Msg: "value is not a valid integer", Type: "type_error.integer"}},
		})
		return 0, false
	}
	return id, true
}

func requiredInt(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		writeValidation(w, key, "field required")
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeValidation(w, key, "value is not a valid integer")
		return 0, false
	}
	return v, true
}

func requiredBool(w http.ResponseWriter, r *http.Request, key string) (bool, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		writeValidation(w, key, "field required")
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeValidation(w, key, "value could not be parsed to a boolean")
		return false, false
	}
	return v, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("mock backend request", "method", r.Method, "path", r.URL.Path, "status", ww.Status())
		})
	}
}
