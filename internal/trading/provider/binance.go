package tradingprovider

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/internal/utils"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
)

// maxClientOrderIDLength is the venue limit for newClientOrderId.
const maxClientOrderIDLength = 36

// Service interfaces for mocking the Binance futures API

// PingService interface for checking connectivity.
type PingService interface {
	Do(ctx context.Context) error
}

// ListPricesService interface for the latest symbol price.
type ListPricesService interface {
	Symbol(symbol string) ListPricesService
	Do(ctx context.Context) ([]*futures.SymbolPrice, error)
}

// KlinesService interface for candlesticks.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*futures.Kline, error)
}

// PositionRiskService interface for positions.
type PositionRiskService interface {
	Symbol(symbol string) PositionRiskService
	Do(ctx context.Context) ([]*futures.PositionRisk, error)
}

// ListOpenOrdersService interface for listing open orders.
type ListOpenOrdersService interface {
	Symbol(symbol string) ListOpenOrdersService
	Do(ctx context.Context) ([]*futures.Order, error)
}

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side futures.SideType) CreateOrderService
	Type(orderType futures.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	StopPrice(stopPrice string) CreateOrderService
	TimeInForce(tif futures.TimeInForceType) CreateOrderService
	ReduceOnly(reduceOnly bool) CreateOrderService
	NewClientOrderID(id string) CreateOrderService
	Do(ctx context.Context) (*futures.CreateOrderResponse, error)
}

// CancelOrderService interface for canceling orders.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*futures.CancelOrderResponse, error)
}

// BinanceClient interface abstracts the futures client for testing.
type BinanceClient interface {
	NewPingService() PingService
	NewListPricesService() ListPricesService
	NewKlinesService() KlinesService
	NewGetPositionRiskService() PositionRiskService
	NewListOpenOrdersService() ListOpenOrdersService
	NewCreateOrderService() CreateOrderService
	NewCancelOrderService() CancelOrderService
}

// realBinanceClient wraps the actual futures.Client.
type realBinanceClient struct {
	client *futures.Client
}

func (r *realBinanceClient) NewPingService() PingService {
	return &realPingService{service: r.client.NewPingService()}
}

func (r *realBinanceClient) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

func (r *realBinanceClient) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

func (r *realBinanceClient) NewGetPositionRiskService() PositionRiskService {
	return &realPositionRiskService{service: r.client.NewGetPositionRiskService()}
}

func (r *realBinanceClient) NewListOpenOrdersService() ListOpenOrdersService {
	return &realListOpenOrdersService{service: r.client.NewListOpenOrdersService()}
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

// Real service wrappers

type realPingService struct {
	service *futures.PingService
}

func (s *realPingService) Do(ctx context.Context) error {
	return s.service.Do(ctx)
}

type realListPricesService struct {
	service *futures.ListPricesService
}

func (s *realListPricesService) Symbol(symbol string) ListPricesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListPricesService) Do(ctx context.Context) ([]*futures.SymbolPrice, error) {
	return s.service.Do(ctx)
}

type realKlinesService struct {
	service *futures.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*futures.Kline, error) {
	return s.service.Do(ctx)
}

type realPositionRiskService struct {
	service *futures.GetPositionRiskService
}

func (s *realPositionRiskService) Symbol(symbol string) PositionRiskService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realPositionRiskService) Do(ctx context.Context) ([]*futures.PositionRisk, error) {
	return s.service.Do(ctx)
}

type realListOpenOrdersService struct {
	service *futures.ListOpenOrdersService
}

func (s *realListOpenOrdersService) Symbol(symbol string) ListOpenOrdersService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListOpenOrdersService) Do(ctx context.Context) ([]*futures.Order, error) {
	return s.service.Do(ctx)
}

type realCreateOrderService struct {
	service *futures.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side futures.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType futures.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) StopPrice(stopPrice string) CreateOrderService {
	s.service = s.service.StopPrice(stopPrice)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif futures.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) ReduceOnly(reduceOnly bool) CreateOrderService {
	s.service = s.service.ReduceOnly(reduceOnly)

	return s
}

func (s *realCreateOrderService) NewClientOrderID(id string) CreateOrderService {
	s.service = s.service.NewClientOrderID(id)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*futures.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *futures.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*futures.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

// BinanceFuturesBroker implements trading.Broker on Binance USDⓈ-M futures.
// It is stateless - all data is fetched directly from the Binance API.
type BinanceFuturesBroker struct {
	client BinanceClient
	config BinanceProviderConfig
	log    *logger.Logger
}

// NewBinanceFuturesBroker creates a new Binance futures broker.
// If useTestnet is true, connects to the futures testnet.
// If config.BaseURL is set, it takes precedence over useTestnet.
func NewBinanceFuturesBroker(config BinanceProviderConfig, useTestnet bool, log *logger.Logger) *BinanceFuturesBroker {
	if useTestnet {
		futures.UseTestnet = true
	}

	client := futures.NewClient(config.ApiKey, config.SecretKey)

	if config.BaseURL != "" {
		client.BaseURL = config.BaseURL
	}

	return newBinanceFuturesBrokerWithClient(&realBinanceClient{client: client}, config, log)
}

// newBinanceFuturesBrokerWithClient is used for testing with mock clients.
func newBinanceFuturesBrokerWithClient(client BinanceClient, config BinanceProviderConfig, log *logger.Logger) *BinanceFuturesBroker {
	config.applyDefaults()

	return &BinanceFuturesBroker{
		client: client,
		config: config,
		log:    log.Named("binance"),
	}
}

// Name returns the provider name.
func (b *BinanceFuturesBroker) Name() string {
	return "binance-futures"
}

// Connect pings the futures API.
func (b *BinanceFuturesBroker) Connect(ctx context.Context) error {
	if err := b.client.NewPingService().Do(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeConnectivity, "failed to reach Binance futures API", err)
	}

	return nil
}

// GetQuote returns the latest price as Last and the close of the most recent
// one-minute candle as Close. The candle is only requested when no price is available.
func (b *BinanceFuturesBroker) GetQuote(ctx context.Context, instrument types.Instrument) (types.Quote, error) {
	quote := types.Quote{Last: 0, Close: 0, Time: time.Now()}

	prices, err := b.client.NewListPricesService().Symbol(instrument.Symbol).Do(ctx)
	if err != nil {
		return quote, errors.Wrap(errors.ErrCodeConnectivity, "failed to get price from Binance", err)
	}

	for _, p := range prices {
		if p.Symbol == instrument.Symbol {
			quote.Last, _ = strconv.ParseFloat(p.Price, 64)
		}
	}

	if quote.Last > 0 {
		return quote, nil
	}

	klines, err := b.client.NewKlinesService().Symbol(instrument.Symbol).Interval("1m").Limit(1).Do(ctx)
	if err != nil {
		return quote, errors.Wrap(errors.ErrCodeConnectivity, "failed to get klines from Binance", err)
	}

	if len(klines) > 0 {
		quote.Close, _ = strconv.ParseFloat(klines[len(klines)-1].Close, 64)
	}

	return quote, nil
}

// GetPosition returns the net position in contracts. Hedge-mode legs are summed.
func (b *BinanceFuturesBroker) GetPosition(ctx context.Context, instrument types.Instrument) (types.PositionSnapshot, error) {
	risks, err := b.client.NewGetPositionRiskService().Symbol(instrument.Symbol).Do(ctx)
	if err != nil {
		return types.PositionSnapshot{}, errors.Wrap(errors.ErrCodeConnectivity, "failed to get position from Binance", err)
	}

	var amount float64

	for _, r := range risks {
		if r.Symbol != instrument.Symbol {
			continue
		}

		amt, parseErr := strconv.ParseFloat(r.PositionAmt, 64)
		if parseErr != nil {
			return types.PositionSnapshot{}, errors.Wrapf(errors.ErrCodeConnectivity, parseErr, "invalid position amount %q", r.PositionAmt)
		}

		amount += amt
	}

	qty := utils.QuantityToContracts(amount, b.config.ContractSize)

	return types.PositionSnapshot{Quantity: qty, Found: qty != 0}, nil
}

// SubmitOrder places one order leg. Protective and exit legs are reduce-only.
func (b *BinanceFuturesBroker) SubmitOrder(ctx context.Context, instrument types.Instrument, order types.Order) (types.SubmittedOrder, error) {
	var side futures.SideType

	switch order.Side {
	case types.SideBuy:
		side = futures.SideTypeBuy
	case types.SideSell:
		side = futures.SideTypeSell
	default:
		return types.SubmittedOrder{}, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order side: %s", order.Side)
	}

	service := b.client.NewCreateOrderService().
		Symbol(instrument.Symbol).
		Side(side).
		Quantity(utils.ContractsToQuantity(order.Quantity, b.config.ContractSize, b.config.QuantityPrecision))

	switch order.Type {
	case types.OrderTypeMarket:
		service = service.Type(futures.OrderTypeMarket)
	case types.OrderTypeStop:
		service = service.
			Type(futures.OrderTypeStopMarket).
			StopPrice(order.StopPrice.StringFixed(int32(b.config.PricePrecision)))
	case types.OrderTypeLimit:
		service = service.
			Type(futures.OrderTypeLimit).
			Price(order.LimitPrice.StringFixed(int32(b.config.PricePrecision))).
			TimeInForce(futures.TimeInForceTypeGTC)
	default:
		return types.SubmittedOrder{}, errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order type: %s", order.Type)
	}

	if order.Role != types.OrderRoleEntry {
		service = service.ReduceOnly(true)
	}

	if id := clientOrderID(order); id != "" {
		service = service.NewClientOrderID(id)
	}

	res, err := service.Do(ctx)
	if err != nil {
		return types.SubmittedOrder{}, errors.Wrap(errors.ErrCodeSubmissionFailed, "failed to place order on Binance", err)
	}

	b.log.Debug("Binance order accepted",
		zap.Int64("order_id", res.OrderID),
		zap.String("symbol", instrument.Symbol),
		zap.String("status", string(res.Status)),
	)

	return types.SubmittedOrder{OrderID: res.OrderID, Order: order}, nil
}

// CancelOrder cancels an order by id.
func (b *BinanceFuturesBroker) CancelOrder(ctx context.Context, instrument types.Instrument, orderID int64) error {
	_, err := b.client.NewCancelOrderService().
		Symbol(instrument.Symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCancelFailed, "failed to cancel order on Binance", err)
	}

	return nil
}

// GetOpenOrders returns working orders for the instrument. Order types with no
// equivalent are skipped.
func (b *BinanceFuturesBroker) GetOpenOrders(ctx context.Context, instrument types.Instrument) ([]types.OpenOrder, error) {
	binanceOrders, err := b.client.NewListOpenOrdersService().Symbol(instrument.Symbol).Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnectivity, "failed to get open orders from Binance", err)
	}

	orders := make([]types.OpenOrder, 0, len(binanceOrders))

	for _, bo := range binanceOrders {
		order, ok := b.convertOrder(bo)
		if !ok {
			continue
		}

		orders = append(orders, order)
	}

	return orders, nil
}

// Helper functions

// mapBinanceOrderType maps venue order types onto MKT, STP and LMT.
func mapBinanceOrderType(orderType futures.OrderType) (types.OrderType, bool) {
	switch orderType {
	case futures.OrderTypeMarket:
		return types.OrderTypeMarket, true
	case futures.OrderTypeStopMarket, futures.OrderTypeStop:
		return types.OrderTypeStop, true
	case futures.OrderTypeLimit, futures.OrderTypeTakeProfit, futures.OrderTypeTakeProfitMarket:
		return types.OrderTypeLimit, true
	default:
		return "", false
	}
}

func (b *BinanceFuturesBroker) convertOrder(bo *futures.Order) (types.OpenOrder, bool) {
	orderType, ok := mapBinanceOrderType(bo.Type)
	if !ok {
		return types.OpenOrder{}, false
	}

	var side types.Side

	switch bo.Side {
	case futures.SideTypeBuy:
		side = types.SideBuy
	case futures.SideTypeSell:
		side = types.SideSell
	default:
		return types.OpenOrder{}, false
	}

	quantity, _ := strconv.ParseFloat(bo.OrigQuantity, 64)
	stopPrice, _ := strconv.ParseFloat(bo.StopPrice, 64)

	return types.OpenOrder{
		OrderID:   bo.OrderID,
		Type:      orderType,
		Side:      side,
		Quantity:  utils.QuantityToContracts(quantity, b.config.ContractSize),
		StopPrice: stopPrice,
	}, true
}

// clientOrderID tags a leg with its role and request reference.
func clientOrderID(order types.Order) string {
	if order.Reference == "" {
		return ""
	}

	id := string(order.Role) + "-" + order.Reference
	if len(id) > maxClientOrderIDLength {
		id = id[:maxClientOrderIDLength]
	}

	return id
}

// Ensure BinanceFuturesBroker implements trading.Broker.
var _ trading.Broker = (*BinanceFuturesBroker)(nil)
