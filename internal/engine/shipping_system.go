package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/greenvale/farmsim/server/internal/domain/item"
	"github.com/greenvale/farmsim/server/internal/domain/rules"
	"github.com/greenvale/farmsim/server/internal/events"
	"github.com/greenvale/farmsim/server/internal/platform/logger"
)

// Pricer returns the unit value of an item, or false if it cannot be sold.
type Pricer func(t item.ItemType) (int, bool)

// ShipmentPayload is attached to SHIPMENT_QUEUED and SHIPMENT_SETTLED events.
type ShipmentPayload struct {
	Items []item.ItemStack `json:"items"`
	Gold  int              `json:"gold"`
	Total int              `json:"total"`
}

// ShippingSystem holds items dropped in the shipping bin and pays for them
// overnight.
type ShippingSystem struct {
	eventLog  *events.EventLog
	logger    *logger.Logger
	clock     *Clock
	inventory *Inventory
	price     Pricer

	mu   sync.Mutex
	bin  map[item.ItemType]int
	gold int
}

func NewShippingSystem(el *events.EventLog, log *logger.Logger, clock *Clock, inv *Inventory, price Pricer) *ShippingSystem {
	return &ShippingSystem{
		eventLog:  el,
		logger:    log,
		clock:     clock,
		inventory: inv,
		price:     price,
		bin:       make(map[item.ItemType]int),
	}
}

// Ship moves qty of t from the inventory into the bin. It returns the gold
// the items will fetch at the next rollover.
func (ss *ShippingSystem) Ship(t item.ItemType, qty int) (int, error) {
	unit, ok := ss.price(t)
	if !ok {
		return 0, fmt.Errorf("%s cannot be shipped", t)
	}
	if err := ss.inventory.Remove(item.ItemStack{Type: t, Quantity: qty}); err != nil {
		return 0, fmt.Errorf("failed to ship %s: %w", t, err)
	}

	ss.mu.Lock()
	ss.bin[t] += qty
	ss.mu.Unlock()

	value := rules.ShippingValue(unit, qty)
	ss.eventLog.Append(events.New(events.EventTypeShipmentQueued, "farmer", ss.clock.TotalDay(), ShipmentPayload{
		Items: []item.ItemStack{{Type: t, Quantity: qty}},
		Gold:  value,
	}))
	return value, nil
}

// OnDayRollover settles the bin into the farm's gold.
func (ss *ShippingSystem) OnDayRollover(r DayRollover) error {
	ss.mu.Lock()
	if len(ss.bin) == 0 {
		ss.mu.Unlock()
		return nil
	}

	payload := ShipmentPayload{}
	for t, qty := range ss.bin {
		unit, _ := ss.price(t)
		payload.Gold += rules.ShippingValue(unit, qty)
		payload.Items = append(payload.Items, item.ItemStack{Type: t, Quantity: qty})
	}
	ss.gold += payload.Gold
	payload.Total = ss.gold
	ss.bin = make(map[item.ItemType]int)
	ss.mu.Unlock()

	sortStacks(payload.Items)
	ss.eventLog.Append(events.New(events.EventTypeShipmentSettled, events.ActorSystem, r.NewTotalDay, payload))
	ss.logger.Info(fmt.Sprintf("[SHIPPING] Day %d payout: %dg (total %dg)", r.PreviousTotalDay, payload.Gold, payload.Total))
	return nil
}

// Gold returns the farm's earnings so far.
func (ss *ShippingSystem) Gold() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.gold
}

// Bin returns the items awaiting pickup.
func (ss *ShippingSystem) Bin() []item.ItemStack {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]item.ItemStack, 0, len(ss.bin))
	for t, qty := range ss.bin {
		out = append(out, item.ItemStack{Type: t, Quantity: qty})
	}
	sortStacks(out)
	return out
}

func sortStacks(s []item.ItemStack) {
	sort.Slice(s, func(i, j int) bool { return s[i].Type < s[j].Type })
}
