package httpx

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"

	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
	"github.com/tasknest/tasknest/internal/procedure"
	"github.com/tasknest/tasknest/internal/service"
)

// TodoHandlers serves tenant-scoped todo CRUD. Every route runs the full
// org-context chain; the tenant is always the middleware-resolved
// organization, never a request value.
type TodoHandlers struct {
	Svc         *service.TodoService
	Resolver    *procedure.Resolver
	Memberships procedure.MembershipReader
}

func (h *TodoHandlers) chain() *procedure.Builder {
	return procedure.New().
		Use(procedure.Auth(h.Resolver)).
		Use(procedure.OrgContext(h.Memberships))
}

// Create handles POST /api/todos.
func (h *TodoHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTodoRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := h.chain().
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.Create(ctx, pc.OrganizationID, pc.Session.UserID, &req)
		})
	serveProc(w, r, proc, http.StatusCreated)
}

// Get handles GET /api/todos/{id}.
func (h *TodoHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	proc := h.chain().
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.GetByID(ctx, pc.OrganizationID, id)
		})
	serveProc(w, r, proc, http.StatusOK)
}

// List handles GET /api/todos. Supports limit/offset and an optional
// done=true|false filter.
func (h *TodoHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	opts := model.TodosListOptions{Limit: limit, Offset: offset}
	switch r.URL.Query().Get("done") {
	case "true":
		done := true
		opts.Done = &done
	case "false":
		done := false
		opts.Done = &done
	}

	proc := h.chain().
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			todos, err := h.Svc.List(ctx, pc.OrganizationID, opts)
			if err != nil {
				return nil, err
			}
			if todos == nil {
				todos = []*model.Todo{}
			}
			return todos, nil
		})
	serveProc(w, r, proc, http.StatusOK)
}

// Export handles GET /api/todos/export, streaming the organization's todos
// as NDJSON, one object per line. The authorization chain completes before
// the first byte leaves, so an unauthorized caller gets a clean error
// response instead of a truncated stream.
func (h *TodoHandlers) Export(w http.ResponseWriter, r *http.Request) {
	proc := h.chain().
		BuildSeq(func(ctx context.Context, pc procedure.Context) iter.Seq2[any, error] {
			return func(yield func(any, error) bool) {
				for todo, err := range h.Svc.Export(ctx, pc.OrganizationID) {
					if !yield(todo, err) {
						return
					}
				}
			}
		})
	seq, err := proc(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	wrote := false
	for item, err := range seq {
		if err != nil {
			if !wrote {
				WriteAppError(w, err)
			}
			// Mid-stream the status line is gone; all we can do is stop.
			return
		}
		if !wrote {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			wrote = true
		}
		if encErr := enc.Encode(item); encErr != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	if !wrote {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
	}
}

// Update handles PUT /api/todos/{id}.
func (h *TodoHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req model.UpdateTodoRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	proc := h.chain().
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.Update(ctx, pc.OrganizationID, id, req)
		})
	serveProc(w, r, proc, http.StatusOK)
}

// Complete handles POST /api/todos/{id}/complete.
func (h *TodoHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	h.setDone(w, r, true)
}

// Reopen handles POST /api/todos/{id}/reopen.
func (h *TodoHandlers) Reopen(w http.ResponseWriter, r *http.Request) {
	h.setDone(w, r, false)
}

func (h *TodoHandlers) setDone(w http.ResponseWriter, r *http.Request, done bool) {
	id := r.PathValue("id")
	proc := h.chain().
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			return h.Svc.SetDone(ctx, pc.OrganizationID, id, done)
		})
	serveProc(w, r, proc, http.StatusOK)
}

// Delete handles DELETE /api/todos/{id}.
func (h *TodoHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	proc := h.chain().
		Build(func(ctx context.Context, pc procedure.Context) (any, error) {
			ok, err := h.Svc.Delete(ctx, pc.OrganizationID, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, apperrors.NotFound("todo not found")
			}
			return nil, nil
		})
	serveProc(w, r, proc, http.StatusNoContent)
}
