package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/tasks"
)

// ErrUnknownRecipe is returned when no recipe produces the requested dish.
var ErrUnknownRecipe = errors.New("unknown recipe")

// CookPayload is attached to COOK_* events.
type CookPayload struct {
	Dish        item.ItemType `json:"dish"`
	Task        string        `json:"task"`
	GameMinutes int           `json:"game_minutes"`
	Error       string        `json:"error,omitempty"`
}

// CookingSystem starts dishes on the stove. Ingredients are taken when
// cooking starts and the dish appears in the inventory when its deferred
// task fires. A failed dish grants nothing and refunds nothing.
type CookingSystem struct {
	eventLog           *events.EventLog
	logger             *logger.Logger
	clock              *Clock
	inventory          *Inventory
	coordinator        *tasks.Coordinator
	defaultCookMinutes int

	mu      sync.Mutex
	cooking map[tasks.Handle]*cookJob
}

type cookJob struct {
	recipe  item.Recipe
	handle  tasks.Handle
	minutes int
}

func NewCookingSystem(el *events.EventLog, log *logger.Logger, clock *Clock, inv *Inventory, coord *tasks.Coordinator, defaultCookMinutes int) *CookingSystem {
	return &CookingSystem{
		eventLog:           el,
		logger:             log,
		clock:              clock,
		inventory:          inv,
		coordinator:        coord,
		defaultCookMinutes: defaultCookMinutes,
		cooking:            make(map[tasks.Handle]*cookJob),
	}
}

// Cook consumes the recipe's ingredients and schedules the dish. It returns
// immediately; the dish is ready after the recipe's game minutes have passed
// in real time at the clock's pace.
func (cs *CookingSystem) Cook(dish item.ItemType) (tasks.Handle, error) {
	recipe, ok := item.Recipes[dish]
	if !ok {
		return tasks.Handle{}, fmt.Errorf("%w: %s", ErrUnknownRecipe, dish)
	}
	return cs.CookRecipe(recipe)
}

// CookRecipe is Cook for an explicit recipe.
func (cs *CookingSystem) CookRecipe(recipe item.Recipe) (tasks.Handle, error) {
	minutes := recipe.CookMinutes
	if minutes <= 0 {
		minutes = cs.defaultCookMinutes
	}
	if err := cs.inventory.Remove(recipe.Ingredients...); err != nil {
		return tasks.Handle{}, fmt.Errorf("failed to cook %s: %w", recipe.Dish, err)
	}

	delay := tasks.GameDuration(minutes, cs.clock.TickInterval(), cs.clock.MinutesPerTick())
	job := &cookJob{recipe: recipe, minutes: minutes}

	// Hold the lock across Schedule so the payload cannot finish before the
	// handle is recorded.
	cs.mu.Lock()
	handle, err := cs.coordinator.Schedule("cook:"+string(recipe.Dish), cs.finish(job), delay)
	if err != nil {
		cs.mu.Unlock()
		cs.refund(recipe)
		return tasks.Handle{}, fmt.Errorf("failed to schedule %s: %w", recipe.Dish, err)
	}
	job.handle = handle
	cs.cooking[handle] = job
	cs.mu.Unlock()

	cs.eventLog.Append(events.New(events.EventTypeCookStarted, "farmer", cs.clock.TotalDay(), CookPayload{
		Dish:        recipe.Dish,
		Task:        handle.String(),
		GameMinutes: minutes,
	}))
	cs.logger.Info(fmt.Sprintf("[COOKING] %s on the stove for %d game minutes (%s)", recipe.Dish, minutes, delay))
	return handle, nil
}

// Cancel takes a dish off the stove before it finishes and returns its
// ingredients. It reports false if the dish already finished or failed.
func (cs *CookingSystem) Cancel(h tasks.Handle) bool {
	if !cs.coordinator.Cancel(h) {
		return false
	}
	cs.mu.Lock()
	job, ok := cs.cooking[h]
	delete(cs.cooking, h)
	cs.mu.Unlock()
	if ok {
		cs.refund(job.recipe)
	}
	return true
}

// InProgress lists the dishes still on the stove.
func (cs *CookingSystem) InProgress() []CookPayload {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]CookPayload, 0, len(cs.cooking))
	for _, job := range cs.cooking {
		out = append(out, CookPayload{Dish: job.recipe.Dish, Task: job.handle.String(), GameMinutes: job.minutes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

func (cs *CookingSystem) finish(job *cookJob) tasks.Func {
	return func(ctx context.Context) error {
		cs.mu.Lock()
		delete(cs.cooking, job.handle)
		handle := job.handle
		cs.mu.Unlock()

		if err := cs.inventory.Add(job.recipe.Dish, 1); err != nil {
			return fmt.Errorf("no room for %s: %w", job.recipe.Dish, err)
		}
		cs.eventLog.Append(events.New(events.EventTypeCookCompleted, "farmer", cs.clock.TotalDay(), CookPayload{
			Dish:        job.recipe.Dish,
			Task:        handle.String(),
			GameMinutes: job.minutes,
		}))
		return nil
	}
}

func (cs *CookingSystem) refund(recipe item.Recipe) {
	for _, s := range recipe.Ingredients {
		if err := cs.inventory.Add(s.Type, s.Quantity); err != nil {
			cs.logger.Warn("Could not refund ingredient", logger.String("item", string(s.Type)), logger.Err(err))
		}
	}
}
