package tradingprovider

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
)

const defaultPaperFirstOrderID = 1

// PaperProviderConfig configures the in-memory simulated exchange.
type PaperProviderConfig struct {
	// Price is the last price reported and used to fill market orders.
	Price float64 `json:"price" jsonschema:"title=Price,description=Simulated last price" validate:"gt=0"`
	// StartingPosition is the signed position at start-up.
	StartingPosition int `json:"starting_position,omitempty" jsonschema:"title=Starting Position"`
	// FirstOrderID is the id given to the first order.
	FirstOrderID int64 `json:"first_order_id,omitempty" jsonschema:"title=First Order ID,default=1" validate:"gte=0"`
}

// Validate validates the PaperProviderConfig struct.
func (c *PaperProviderConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid paper provider config", err)
	}

	return nil
}

func parsePaperConfig(jsonConfig string) (*PaperProviderConfig, error) {
	var config PaperProviderConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse paper config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// PaperBroker is an in-memory exchange. Market orders fill immediately at the
// configured price; stop and limit orders rest until cancelled or triggered.
type PaperBroker struct {
	mu       sync.Mutex
	price    float64
	position int
	nextID   int64
	working  map[int64]types.OpenOrder
	fills    []types.SubmittedOrder
	log      *logger.Logger
}

// NewPaperBroker creates a paper broker.
func NewPaperBroker(config PaperProviderConfig, log *logger.Logger) *PaperBroker {
	firstID := config.FirstOrderID
	if firstID == 0 {
		firstID = defaultPaperFirstOrderID
	}

	return &PaperBroker{
		mu:       sync.Mutex{},
		price:    config.Price,
		position: config.StartingPosition,
		nextID:   firstID,
		working:  make(map[int64]types.OpenOrder),
		fills:    nil,
		log:      log.Named("paper"),
	}
}

// Name returns the provider name.
func (p *PaperBroker) Name() string {
	return string(ProviderPaper)
}

// Connect always succeeds.
func (p *PaperBroker) Connect(_ context.Context) error {
	return nil
}

// GetQuote returns the simulated price as Last.
func (p *PaperBroker) GetQuote(_ context.Context, _ types.Instrument) (types.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return types.Quote{Last: p.price, Close: p.price, Time: time.Now()}, nil
}

// GetPosition returns the simulated net position.
func (p *PaperBroker) GetPosition(_ context.Context, _ types.Instrument) (types.PositionSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return types.PositionSnapshot{Quantity: p.position, Found: p.position != 0}, nil
}

// SubmitOrder fills market orders and rests everything else.
func (p *PaperBroker) SubmitOrder(_ context.Context, _ types.Instrument, order types.Order) (types.SubmittedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++

	submitted := types.SubmittedOrder{OrderID: id, Order: order}

	switch order.Type {
	case types.OrderTypeMarket:
		p.fill(order.Side, order.Quantity)
		p.fills = append(p.fills, submitted)
	case types.OrderTypeStop, types.OrderTypeLimit:
		trigger := order.StopPrice
		if order.Type == types.OrderTypeLimit {
			trigger = order.LimitPrice
		}

		stop, _ := trigger.Float64()
		p.working[id] = types.OpenOrder{
			OrderID:   id,
			Type:      order.Type,
			Side:      order.Side,
			Quantity:  order.Quantity,
			StopPrice: stop,
		}
	default:
		return types.SubmittedOrder{}, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order type: %s", order.Type)
	}

	p.log.Debug("Paper order accepted",
		zap.Int64("order_id", id),
		zap.String("type", string(order.Type)),
		zap.String("side", string(order.Side)),
		zap.Int("position", p.position),
	)

	return submitted, nil
}

// CancelOrder removes a working order.
func (p *PaperBroker) CancelOrder(_ context.Context, _ types.Instrument, orderID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.working[orderID]; !ok {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %d", orderID)
	}

	delete(p.working, orderID)

	return nil
}

// GetOpenOrders returns working orders sorted by id.
func (p *PaperBroker) GetOpenOrders(_ context.Context, _ types.Instrument) ([]types.OpenOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	orders := make([]types.OpenOrder, 0, len(p.working))
	for _, o := range p.working {
		orders = append(orders, o)
	}

	slices.SortFunc(orders, func(a, b types.OpenOrder) int {
		switch {
		case a.OrderID < b.OrderID:
			return -1
		case a.OrderID > b.OrderID:
			return 1
		default:
			return 0
		}
	})

	return orders, nil
}

// TriggerStop fills a working stop as if the exchange executed it.
func (p *PaperBroker) TriggerStop(orderID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.working[orderID]
	if !ok || order.Type != types.OrderTypeStop {
		return errors.Newf(errors.ErrCodeOrderNotFound, "stop order not found: %d", orderID)
	}

	delete(p.working, orderID)
	p.fill(order.Side, order.Quantity)

	return nil
}

// TriggerTakeProfit fills a working limit order as if the exchange executed it.
func (p *PaperBroker) TriggerTakeProfit(orderID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.working[orderID]
	if !ok || order.Type != types.OrderTypeLimit {
		return errors.Newf(errors.ErrCodeOrderNotFound, "limit order not found: %d", orderID)
	}

	delete(p.working, orderID)
	p.fill(order.Side, order.Quantity)

	return nil
}

// SetPrice changes the simulated price.
func (p *PaperBroker) SetPrice(price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.price = price
}

// Position returns the simulated net position.
func (p *PaperBroker) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.position
}

// Fills returns the market orders filled so far.
func (p *PaperBroker) Fills() []types.SubmittedOrder {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.fills)
}

func (p *PaperBroker) fill(side types.Side, quantity int) {
	if side == types.SideBuy {
		p.position += quantity
	} else {
		p.position -= quantity
	}
}

var _ trading.Broker = (*PaperBroker)(nil)
