package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/tasknest/tasknest/internal/core"
	"github.com/tasknest/tasknest/internal/domain/model"
	apperrors "github.com/tasknest/tasknest/internal/errors"
)

const (
	defaultTodoPageSize = 50
	exportPageSize      = 200
)

// TodoServiceOptions groups dependencies for TodoService.
type TodoServiceOptions struct {
	Todos         core.TodoRepository         // Required: todo repository
	Subscriptions core.SubscriptionRepository // Required: plan-limit lookups
	Logger        *slog.Logger                // Optional: structured logger

	// Plans overrides the built-in catalog, mainly for tests.
	Plans map[string]model.Plan
}

// TodoService implements tenant-scoped todo CRUD. Every operation takes the
// middleware-resolved organization ID; the service never trusts a tenant
// identifier from request payloads.
type TodoService struct {
	todos  core.TodoRepository
	subs   core.SubscriptionRepository
	plans  map[string]model.Plan
	logger *slog.Logger
}

// NewTodoService constructs a new TodoService.
func NewTodoService(opts TodoServiceOptions) (*TodoService, error) {
	if opts.Todos == nil {
		return nil, errors.New("TodoRepository is required")
	}
	if opts.Subscriptions == nil {
		return nil, errors.New("SubscriptionRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	plans := opts.Plans
	if plans == nil {
		plans = model.DefaultPlans()
	}
	return &TodoService{
		todos:  opts.Todos,
		subs:   opts.Subscriptions,
		plans:  plans,
		logger: logger.With("component", "todo_service"),
	}, nil
}

// Create adds a todo, enforcing the organization's plan limit on the total
// number of todos it holds.
func (s *TodoService) Create(ctx context.Context, organizationID, authorID string, req *model.CreateTodoRequest) (*model.Todo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := s.effectivePlan(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if !plan.Unlimited() {
		count, countErr := s.todos.Count(ctx, organizationID)
		if countErr != nil {
			return nil, countErr
		}
		if count >= plan.TodoLimit {
			return nil, apperrors.Forbidden("Todo limit reached for the current plan. Upgrade to add more.")
		}
	}

	return s.todos.Create(ctx, organizationID, authorID, req)
}

// GetByID retrieves a todo within the organization.
func (s *TodoService) GetByID(ctx context.Context, organizationID, id string) (*model.Todo, error) {
	return s.todos.GetByID(ctx, organizationID, id)
}

// List returns a page of the organization's todos.
func (s *TodoService) List(ctx context.Context, organizationID string, opts model.TodosListOptions) ([]*model.Todo, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultTodoPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.todos.List(ctx, organizationID, opts)
}

// Export lazily streams every todo in the organization, paging through the
// repository so the full set is never resident in memory. A repository
// error ends the sequence after being yielded once.
func (s *TodoService) Export(ctx context.Context, organizationID string) iter.Seq2[*model.Todo, error] {
	return func(yield func(*model.Todo, error) bool) {
		opts := model.TodosListOptions{Limit: exportPageSize}
		for {
			page, err := s.todos.List(ctx, organizationID, opts)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, todo := range page {
				if !yield(todo, nil) {
					return
				}
			}
			if len(page) < opts.Limit {
				return
			}
			opts.Offset += opts.Limit
		}
	}
}

// Update rewrites a todo's content and, when Done is set, its completion
// state.
func (s *TodoService) Update(ctx context.Context, organizationID, id string, req model.UpdateTodoRequest) (*model.Todo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.todos.Update(ctx, organizationID, id, req)
}

// SetDone toggles completion without touching content.
func (s *TodoService) SetDone(ctx context.Context, organizationID, id string, done bool) (*model.Todo, error) {
	current, err := s.todos.GetByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	return s.todos.Update(ctx, organizationID, id, model.UpdateTodoRequest{
		Title: current.Title,
		Body:  current.Body,
		Done:  &done,
	})
}

// Delete removes a todo.
func (s *TodoService) Delete(ctx context.Context, organizationID, id string) (bool, error) {
	return s.todos.Delete(ctx, organizationID, id)
}

// effectivePlan resolves the organization's usable plan: the subscribed
// plan while the subscription is active, the free plan otherwise. A missing
// subscription row also means free.
func (s *TodoService) effectivePlan(ctx context.Context, organizationID string) (model.Plan, error) {
	sub, err := s.subs.GetByOrganization(ctx, organizationID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return s.plans[model.PlanFree], nil
		}
		return model.Plan{}, err
	}

	name := sub.Plan
	if !sub.Active() {
		name = model.PlanFree
	}
	plan, ok := s.plans[name]
	if !ok {
		s.logger.WarnContext(ctx, "unknown plan on subscription, falling back to free",
			"organization_id", organizationID, "plan", name)
		plan = s.plans[model.PlanFree]
	}
	return plan, nil
}
