package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/greenvale/farmsim/server/internal/domain/calendar"
	"github.com/greenvale/farmsim/server/internal/domain/eligibility"
	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/domain/plot"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/config"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
	"github.com/greenvale/farmsim/server/internal/platform/metrics"
	"github.com/greenvale/farmsim/server/internal/tasks"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.FastConfig()
	cfg.WeatherSeed = 42
	e, err := NewEngine(cfg, events.NewEventLog(nil), logger.NewNop(), metrics.NewCollector())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { e.Shutdown() })
	return e
}

func waitTask(t *testing.T, c *tasks.Coordinator, h tasks.Handle) tasks.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := c.Wait(ctx, h)
	if err != nil {
		t.Fatalf("wait for %s: %v", h, err)
	}
	return s
}

func TestInventoryRemoveIsAllOrNothing(t *testing.T) {
	inv := NewInventory(item.ItemStack{Type: item.ItemEgg, Quantity: 1}, item.ItemStack{Type: item.ItemPotato, Quantity: 2})

	err := inv.Remove(item.ItemStack{Type: item.ItemPotato, Quantity: 1}, item.ItemStack{Type: item.ItemEgg, Quantity: 2})
	var short *InsufficientItemsError
	if !errors.As(err, &short) || short.Item != item.ItemEgg {
		t.Fatalf("expected shortage of eggs, got %v", err)
	}
	if inv.Count(item.ItemPotato) != 2 {
		t.Error("a failed removal must not take anything")
	}

	if err := inv.Add(item.ItemEgg, MaxStack); err == nil {
		t.Error("expected overflow to be rejected")
	}
	if got := len(inv.Stacks()); got != 2 {
		t.Errorf("expected 2 stacks, got %d", got)
	}
}

func TestCropsGrowWhenWateredOrRainedOn(t *testing.T) {
	clock, el, _ := newTestClock(t, neverRain, 6, 0)
	inv := NewInventory(item.ItemStack{Type: item.ItemParsnipSeeds, Quantity: 2})
	crops := NewCropSystem(el, logger.NewNop(), clock, inv, 2)

	if err := crops.Plant("plot-1", item.ItemParsnipSeeds); err != nil {
		t.Fatal(err)
	}
	if err := crops.Plant("plot-1", item.ItemParsnipSeeds); err == nil {
		t.Error("expected occupied plot to be rejected")
	}

	night := func(rainy bool) {
		crops.OnDayRollover(DayRollover{NewSeason: calendar.SeasonSpring, WasPreviousDayRainy: rainy, NewTotalDay: 2})
	}

	night(false)
	if p := crops.Plots()[0]; p.DaysGrown != 0 {
		t.Fatalf("a dry, unwatered night must not grow, got %d", p.DaysGrown)
	}

	crops.Water("plot-1")
	night(false)
	night(true)
	night(true)
	if p := crops.Plots()[0]; p.DaysGrown != 3 || p.Watered {
		t.Fatalf("expected 3 days grown and watering cleared, got %+v", p)
	}

	night(true)
	if p := crops.Plots()[0]; p.Stage != plot.StageReady {
		t.Fatalf("expected parsnip ready after 4 days, got %+v", p)
	}
	if n := len(el.GetByType(events.EventTypeCropGrown)); n != 1 {
		t.Errorf("expected one CROP_GROWN, got %d", n)
	}

	produce, err := crops.Harvest("plot-1")
	if err != nil || produce != item.ItemParsnip || inv.Count(item.ItemParsnip) != 1 {
		t.Fatalf("harvest gave %s (%v), inventory %v", produce, err, inv.Stacks())
	}
}

func TestCropsWitherOutOfSeason(t *testing.T) {
	clock, el, _ := newTestClock(t, neverRain, 6, 0)
	inv := NewInventory(item.ItemStack{Type: item.ItemPotatoSeeds, Quantity: 1})
	crops := NewCropSystem(el, logger.NewNop(), clock, inv, 1)

	if err := crops.Plant("plot-1", item.ItemPotatoSeeds); err != nil {
		t.Fatal(err)
	}
	crops.OnDayRollover(DayRollover{NewSeason: calendar.SeasonSummer, WasPreviousDayRainy: true})
	if p := crops.Plots()[0]; p.Stage != plot.StageWithered {
		t.Errorf("expected withered potato in summer, got %s", p.Stage)
	}

	if err := crops.Plant("plot-1", item.ItemMelonSeeds); err == nil {
		t.Error("melons cannot be planted in spring")
	}
}

func TestShippingSettlesOnRollover(t *testing.T) {
	e := newTestEngine(t)
	inv := e.Inventory()
	inv.Add(item.ItemParsnip, 3)

	value, err := e.Shipping().Ship(item.ItemParsnip, 2)
	if err != nil || value != 70 {
		t.Fatalf("expected 70g pending, got %d (%v)", value, err)
	}
	if inv.Count(item.ItemParsnip) != 1 {
		t.Error("shipped items must leave the inventory")
	}
	if _, err := e.Shipping().Ship(item.ItemParsnip, 5); err == nil {
		t.Error("expected error shipping more than held")
	}
	if _, err := e.Shipping().Ship(item.ItemParsnipSoup+"_X", 1); err == nil {
		t.Error("expected error shipping an unpriced item")
	}

	if err := e.Clock().AdvanceMinutes(1440); err != nil {
		t.Fatal(err)
	}
	if got := e.Shipping().Gold(); got != 70 {
		t.Errorf("expected 70g after rollover, got %d", got)
	}
	if len(e.Shipping().Bin()) != 0 {
		t.Error("bin should be empty after settling")
	}
	settled := e.EventLog().GetByType(events.EventTypeShipmentSettled)
	if len(settled) != 1 || settled[0].Payload.(ShipmentPayload).Total != 70 {
		t.Errorf("unexpected settlement events %+v", settled)
	}

	e.Clock().AdvanceMinutes(1440)
	if n := len(e.EventLog().GetByType(events.EventTypeShipmentSettled)); n != 1 {
		t.Error("an empty bin must not settle")
	}
}

func TestCookingDeliversDishLater(t *testing.T) {
	e := newTestEngine(t)

	h, err := e.Cooking().Cook(item.ItemFriedEgg)
	if err != nil {
		t.Fatal(err)
	}
	if e.Inventory().Count(item.ItemEgg) != 2 {
		t.Error("ingredients must be taken when cooking starts")
	}
	if e.Inventory().Count(item.ItemFriedEgg) != 0 {
		t.Error("the dish must not be ready immediately")
	}
	if len(e.Cooking().InProgress()) != 1 {
		t.Error("expected one dish on the stove")
	}

	if s := waitTask(t, e.Coordinator(), h); s != tasks.StateFired {
		t.Fatalf("expected FIRED, got %s", s)
	}
	if e.Inventory().Count(item.ItemFriedEgg) != 1 {
		t.Error("expected the fried egg in the inventory")
	}
	if n := len(e.EventLog().GetByType(events.EventTypeCookCompleted)); n != 1 {
		t.Errorf("expected one COOK_COMPLETED, got %d", n)
	}
	if len(e.Cooking().InProgress()) != 0 {
		t.Error("the stove should be empty")
	}
}

func TestCookingRequiresIngredients(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Cooking().Cook(item.ItemFishStew)
	var short *InsufficientItemsError
	if !errors.As(err, &short) {
		t.Errorf("expected missing ingredients, got %v", err)
	}
	if _, err := e.Cooking().Cook("TOAST"); !errors.Is(err, ErrUnknownRecipe) {
		t.Errorf("expected ErrUnknownRecipe, got %v", err)
	}
	if e.Coordinator().Pending() != 0 {
		t.Error("nothing should be scheduled")
	}
}

func TestCookingCancelRefunds(t *testing.T) {
	e := newTestEngine(t)

	h, err := e.Cooking().CookRecipe(item.Recipe{
		Dish:        item.ItemFriedEgg,
		Ingredients: []item.ItemStack{{Type: item.ItemEgg, Quantity: 1}},
		CookMinutes: 60 * 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !e.Cooking().Cancel(h) {
		t.Fatal("expected cancel before the dish is done")
	}
	if e.Inventory().Count(item.ItemEgg) != 3 {
		t.Errorf("expected the egg back, have %d", e.Inventory().Count(item.ItemEgg))
	}
	if e.Cooking().Cancel(h) {
		t.Error("a dish cannot be cancelled twice")
	}
}

func TestCookingFailureGrantsNothing(t *testing.T) {
	e := newTestEngine(t)
	e.Inventory().Add(item.ItemFriedEgg, MaxStack)

	h, err := e.Cooking().Cook(item.ItemFriedEgg)
	if err != nil {
		t.Fatal(err)
	}
	if s := waitTask(t, e.Coordinator(), h); s != tasks.StateFailed {
		t.Fatalf("expected FAILED with a full inventory, got %s", s)
	}
	if e.Inventory().Count(item.ItemEgg) != 2 {
		t.Error("ingredients of a failed dish are not refunded")
	}

	deadline := time.Now().Add(time.Second)
	for len(e.EventLog().GetByType(events.EventTypeTaskFailed)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected a TASK_FAILED event")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFishingCatchesEligibleFishAndCostsTime(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Clock().JumpTo(10, 0); err != nil {
		t.Fatal(err)
	}

	eligible, err := e.Fishing().Eligible("pond")
	if err != nil || len(eligible) != 1 || eligible[0].Name != "Carp" {
		t.Fatalf("expected only Carp in the pond, got %v (%v)", eligible, err)
	}

	result, err := e.Fishing().Cast("Pond")
	if err != nil {
		t.Fatal(err)
	}
	if result.Fish != "Carp" || result.Candidates != 1 {
		t.Errorf("unexpected catch %+v", result)
	}
	if e.Inventory().Count(item.FishItem("Carp")) != 1 {
		t.Error("the carp should be in the inventory")
	}
	if e.Clock().Hour() != 10 || e.Clock().Minute() != 15 {
		t.Errorf("expected 10:15 after fishing, got %02d:%02d", e.Clock().Hour(), e.Clock().Minute())
	}

	// Carp is sellable at its catalog value.
	value, err := e.Shipping().Ship(item.FishItem("Carp"), 1)
	carp, _ := e.Catalog().Value("Carp")
	if err != nil || value != carp {
		t.Errorf("expected carp to ship for %d, got %d (%v)", carp, value, err)
	}
}

func TestFishingUnknownLocation(t *testing.T) {
	e := newTestEngine(t)
	before := e.Clock().Snapshot()

	_, err := e.Fishing().Cast("Ocaen")
	var unknown *eligibility.UnknownCandidateError
	if !errors.As(err, &unknown) || unknown.Suggestion != "Ocean" {
		t.Fatalf("expected a suggestion of Ocean, got %v", err)
	}
	if e.Clock().Snapshot() != before {
		t.Error("a rejected cast must not cost time")
	}
}

func TestFishingNothingBiting(t *testing.T) {
	e := newTestEngine(t)
	// Carp stops biting at 23:00 and the lake legend only bites by day.
	if err := e.Clock().JumpTo(23, 0); err != nil {
		t.Fatal(err)
	}

	result, err := e.Fishing().Cast("lake")
	if err != nil {
		t.Fatal(err)
	}
	if result.Fish != "" || result.Candidates != 0 {
		t.Errorf("expected an empty cast, got %+v", result)
	}
	if n := len(e.EventLog().GetByType(events.EventTypeNothingBiting)); n != 1 {
		t.Errorf("expected one NOTHING_BITING, got %d", n)
	}
}

func TestEngineShutdownAbandonsCooking(t *testing.T) {
	cfg := config.FastConfig()
	cfg.WeatherSeed = 7
	cfg.TaskShutdownGrace = 10 * time.Millisecond
	e, err := NewEngine(cfg, nil, logger.NewNop(), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Cooking().CookRecipe(item.Recipe{
		Dish:        item.ItemFriedEgg,
		Ingredients: []item.ItemStack{{Type: item.ItemEgg, Quantity: 1}},
		CookMinutes: 60 * 24,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := e.Shutdown(); n != 1 {
		t.Errorf("expected one abandoned dish, got %d", n)
	}
	if _, err := e.Cooking().Cook(item.ItemFriedEgg); !errors.Is(err, tasks.ErrCoordinatorClosed) {
		t.Errorf("expected ErrCoordinatorClosed after shutdown, got %v", err)
	}
	if e.Inventory().Count(item.ItemEgg) != 2 {
		t.Error("a dish refused at scheduling must refund its ingredients")
	}
}
