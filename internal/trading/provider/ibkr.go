package tradingprovider

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-signal-bridge/internal/logger"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading"
	"github.com/rxtech-lab/argo-signal-bridge/internal/types"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client Portal market data field ids.
const (
	ibkrFieldLast       = "31"
	ibkrFieldPriorClose = "7741"
)

const ibkrSnapshotRetryDelay = 250 * time.Millisecond

// ibkrActiveStatuses are the order statuses that still work at the exchange.
var ibkrActiveStatuses = map[string]bool{
	"PendingSubmit": true,
	"PreSubmitted":  true,
	"Submitted":     true,
}

// flexFloat decodes gateway numbers sent either as JSON numbers or as strings,
// optionally prefixed with C (closing price) or H (halted).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	s = strings.TrimLeft(s, "CH")
	s = strings.ReplaceAll(s, ",", "")

	if s == "" || s == "null" {
		*f = 0

		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Errorf("gateway number %q is not finite", s)
	}

	*f = flexFloat(v)

	return nil
}

type ibkrAuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Connected     bool   `json:"connected"`
	Competing     bool   `json:"competing"`
	Message       string `json:"message"`
}

type ibkrSnapshot struct {
	ConID      int64     `json:"conid"`
	Last       flexFloat `json:"31"`
	PriorClose flexFloat `json:"7741"`
}

type ibkrPosition struct {
	ConID        int64     `json:"conid"`
	Position     flexFloat `json:"position"`
	ContractDesc string    `json:"contractDesc"`
}

type ibkrLiveOrders struct {
	Orders []ibkrLiveOrder `json:"orders"`
}

type ibkrLiveOrder struct {
	OrderID           int64     `json:"orderId"`
	ConID             int64     `json:"conid"`
	OrderType         string    `json:"orderType"`
	Side              string    `json:"side"`
	RemainingQuantity flexFloat `json:"remainingQuantity"`
	Status            string    `json:"status"`
	Price             flexFloat `json:"price"`
	AuxPrice          flexFloat `json:"auxPrice"`
}

type ibkrOrderRequest struct {
	AcctID     string   `json:"acctId"`
	ConID      int64    `json:"conid"`
	COID       string   `json:"cOID,omitempty"`
	OrderType  string   `json:"orderType"`
	Side       string   `json:"side"`
	Quantity   int      `json:"quantity"`
	Tif        string   `json:"tif"`
	OutsideRTH bool     `json:"outsideRTH"`
	Price      *float64 `json:"price,omitempty"`
}

type ibkrOrderBody struct {
	Orders []ibkrOrderRequest `json:"orders"`
}

// ibkrOrderReply is either an accepted order (OrderID) or a question the
// gateway wants confirmed (ID + Message).
type ibkrOrderReply struct {
	OrderID     string   `json:"order_id"`
	OrderStatus string   `json:"order_status"`
	ID          string   `json:"id"`
	Message     []string `json:"message"`
	Error       string   `json:"error"`
}

type ibkrError struct {
	Error string `json:"error"`
}

// IBKRBroker implements trading.Broker on the Interactive Brokers Client
// Portal Web API. Instruments are addressed by ConID.
type IBKRBroker struct {
	client  *resty.Client
	config  IBKRProviderConfig
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewIBKRBroker creates a broker talking to a running Client Portal gateway.
func NewIBKRBroker(config IBKRProviderConfig, log *logger.Logger) *IBKRBroker {
	config.applyDefaults()

	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "argo-signal-bridge")

	if config.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	}

	return &IBKRBroker{
		client:  client,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), int(math.Max(1, math.Ceil(config.RateLimit)))),
		log:     log.Named("ibkr"),
	}
}

// request waits for the rate limiter and returns a request bound to ctx.
func (b *IBKRBroker) request(ctx context.Context, code errors.ErrorCode, action string) (*resty.Request, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrapf(code, err, "ibkr %s not sent", action)
	}

	return b.client.R().SetContext(ctx), nil
}

// Name returns the provider name.
func (b *IBKRBroker) Name() string {
	return string(ProviderIBKR)
}

// Connect checks that the gateway session is authenticated and connected.
func (b *IBKRBroker) Connect(ctx context.Context) error {
	var status ibkrAuthStatus

	req, err := b.request(ctx, errors.ErrCodeConnectivity, "auth status")
	if err != nil {
		return err
	}

	resp, err := req.SetResult(&status).Post("/iserver/auth/status")
	if err := checkResponse(resp, err, errors.ErrCodeConnectivity, "auth status"); err != nil {
		return err
	}

	if !status.Authenticated || !status.Connected {
		return errors.Newf(errors.ErrCodeConnectivity,
			"ibkr gateway session not ready (authenticated=%t connected=%t competing=%t) %s",
			status.Authenticated, status.Connected, status.Competing, status.Message)
	}

	return nil
}

// GetQuote requests a last/prior-close snapshot. The gateway often answers the
// first request for a contract without fields, so the request is repeated once.
func (b *IBKRBroker) GetQuote(ctx context.Context, instrument types.Instrument) (types.Quote, error) {
	if err := requireConID(instrument); err != nil {
		return types.Quote{}, err
	}

	quote := types.Quote{Last: 0, Close: 0, Time: time.Now()}

	for attempt := 0; attempt < defaultIBKRSnapshotTries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return quote, errors.Wrap(errors.ErrCodeConnectivity, "ibkr snapshot cancelled", ctx.Err())
			case <-time.After(ibkrSnapshotRetryDelay):
			}
		}

		var snapshots []ibkrSnapshot

		req, err := b.request(ctx, errors.ErrCodeConnectivity, "market data snapshot")
		if err != nil {
			return quote, err
		}

		resp, err := req.
			SetQueryParams(map[string]string{
				"conids": strconv.FormatInt(instrument.ConID, 10),
				"fields": ibkrFieldLast + "," + ibkrFieldPriorClose,
			}).
			SetResult(&snapshots).
			Get("/iserver/marketdata/snapshot")
		if err := checkResponse(resp, err, errors.ErrCodeConnectivity, "market data snapshot"); err != nil {
			return quote, err
		}

		for _, s := range snapshots {
			if s.ConID == instrument.ConID {
				quote.Last = float64(s.Last)
				quote.Close = float64(s.PriorClose)
			}
		}

		if quote.Last > 0 || quote.Close > 0 {
			break
		}
	}

	return quote, nil
}

// GetPosition returns the account position for the instrument's contract.
func (b *IBKRBroker) GetPosition(ctx context.Context, instrument types.Instrument) (types.PositionSnapshot, error) {
	if err := requireConID(instrument); err != nil {
		return types.PositionSnapshot{}, err
	}

	var positions []ibkrPosition

	req, err := b.request(ctx, errors.ErrCodeConnectivity, "positions")
	if err != nil {
		return types.PositionSnapshot{}, err
	}

	resp, err := req.
		SetPathParam("accountId", b.config.AccountID).
		SetResult(&positions).
		Get("/portfolio/{accountId}/positions/0")
	if err := checkResponse(resp, err, errors.ErrCodeConnectivity, "positions"); err != nil {
		return types.PositionSnapshot{}, err
	}

	for _, p := range positions {
		if p.ConID == instrument.ConID {
			return types.PositionSnapshot{Quantity: int(p.Position), Found: true}, nil
		}
	}

	return types.PositionSnapshot{Quantity: 0, Found: false}, nil
}

// SubmitOrder places one order and answers the gateway's confirmation prompts.
func (b *IBKRBroker) SubmitOrder(ctx context.Context, instrument types.Instrument, order types.Order) (types.SubmittedOrder, error) {
	if err := requireConID(instrument); err != nil {
		return types.SubmittedOrder{}, err
	}

	request := ibkrOrderRequest{
		AcctID:     b.config.AccountID,
		ConID:      instrument.ConID,
		COID:       clientOrderID(order),
		OrderType:  string(order.Type),
		Side:       string(order.Side),
		Quantity:   order.Quantity,
		Tif:        b.config.TimeInForce,
		OutsideRTH: order.OutsideRTH,
		Price:      nil,
	}

	switch order.Type {
	case types.OrderTypeStop:
		price := order.StopPrice.InexactFloat64()
		request.Price = &price
	case types.OrderTypeLimit:
		price := order.LimitPrice.InexactFloat64()
		request.Price = &price
	case types.OrderTypeMarket:
	}

	var replies []ibkrOrderReply

	req, err := b.request(ctx, errors.ErrCodeSubmissionFailed, "place order")
	if err != nil {
		return types.SubmittedOrder{}, err
	}

	resp, err := req.
		SetPathParam("accountId", b.config.AccountID).
		SetBody(ibkrOrderBody{Orders: []ibkrOrderRequest{request}}).
		SetResult(&replies).
		SetError(&ibkrError{}).
		Post("/iserver/account/{accountId}/orders")
	if err := checkResponse(resp, err, errors.ErrCodeSubmissionFailed, "place order"); err != nil {
		return types.SubmittedOrder{}, err
	}

	for range b.config.MaxReplies + 1 {
		if len(replies) == 0 {
			return types.SubmittedOrder{}, errors.New(errors.ErrCodeSubmissionFailed, "ibkr returned an empty order reply")
		}

		reply := replies[0]

		switch {
		case reply.Error != "":
			return types.SubmittedOrder{}, errors.Newf(errors.ErrCodeSubmissionFailed, "ibkr rejected order: %s", reply.Error)
		case reply.OrderID != "":
			id, parseErr := strconv.ParseInt(reply.OrderID, 10, 64)
			if parseErr != nil {
				return types.SubmittedOrder{}, errors.Wrapf(errors.ErrCodeSubmissionFailed, parseErr, "invalid ibkr order id %q", reply.OrderID)
			}

			b.log.Debug("IBKR order accepted",
				zap.Int64("order_id", id),
				zap.String("status", reply.OrderStatus),
				zap.String("type", request.OrderType),
			)

			return types.SubmittedOrder{OrderID: id, Order: order}, nil
		case reply.ID != "":
			b.log.Info("Confirming IBKR order warning",
				zap.String("reply_id", reply.ID),
				zap.Strings("message", reply.Message),
			)

			replies, err = b.confirm(ctx, reply.ID)
			if err != nil {
				return types.SubmittedOrder{}, err
			}
		default:
			return types.SubmittedOrder{}, errors.New(errors.ErrCodeSubmissionFailed, "ibkr order reply has neither order id nor reply id")
		}
	}

	return types.SubmittedOrder{}, errors.Newf(errors.ErrCodeSubmissionFailed, "ibkr order still unconfirmed after %d replies", b.config.MaxReplies)
}

func (b *IBKRBroker) confirm(ctx context.Context, replyID string) ([]ibkrOrderReply, error) {
	var replies []ibkrOrderReply

	req, err := b.request(ctx, errors.ErrCodeSubmissionFailed, "order reply")
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetPathParam("replyId", replyID).
		SetBody(map[string]bool{"confirmed": true}).
		SetResult(&replies).
		SetError(&ibkrError{}).
		Post("/iserver/reply/{replyId}")
	if err := checkResponse(resp, err, errors.ErrCodeSubmissionFailed, "order reply"); err != nil {
		return nil, err
	}

	return replies, nil
}

// CancelOrder cancels a working order.
func (b *IBKRBroker) CancelOrder(ctx context.Context, _ types.Instrument, orderID int64) error {
	req, err := b.request(ctx, errors.ErrCodeCancelFailed, "cancel order")
	if err != nil {
		return err
	}

	resp, err := req.
		SetPathParams(map[string]string{
			"accountId": b.config.AccountID,
			"orderId":   strconv.FormatInt(orderID, 10),
		}).
		SetError(&ibkrError{}).
		Delete("/iserver/account/{accountId}/order/{orderId}")

	return checkResponse(resp, err, errors.ErrCodeCancelFailed, "cancel order")
}

// GetOpenOrders lists working orders for the instrument's contract.
func (b *IBKRBroker) GetOpenOrders(ctx context.Context, instrument types.Instrument) ([]types.OpenOrder, error) {
	if err := requireConID(instrument); err != nil {
		return nil, err
	}

	var live ibkrLiveOrders

	req, err := b.request(ctx, errors.ErrCodeConnectivity, "live orders")
	if err != nil {
		return nil, err
	}

	resp, err := req.SetResult(&live).Get("/iserver/account/orders")
	if err := checkResponse(resp, err, errors.ErrCodeConnectivity, "live orders"); err != nil {
		return nil, err
	}

	orders := make([]types.OpenOrder, 0, len(live.Orders))

	for _, o := range live.Orders {
		if o.ConID != instrument.ConID || !ibkrActiveStatuses[o.Status] {
			continue
		}

		orderType, ok := mapIBKROrderType(o.OrderType)
		if !ok {
			continue
		}

		stop := float64(o.AuxPrice)
		if stop == 0 && orderType == types.OrderTypeStop {
			stop = float64(o.Price)
		}

		orders = append(orders, types.OpenOrder{
			OrderID:   o.OrderID,
			Type:      orderType,
			Side:      types.Side(strings.ToUpper(o.Side)),
			Quantity:  int(o.RemainingQuantity),
			StopPrice: stop,
		})
	}

	return orders, nil
}

// mapIBKROrderType accepts both the short codes and the display names the
// gateway uses in live order listings.
func mapIBKROrderType(orderType string) (types.OrderType, bool) {
	switch strings.ToUpper(strings.ReplaceAll(orderType, " ", "")) {
	case "MKT", "MARKET":
		return types.OrderTypeMarket, true
	case "STP", "STOP":
		return types.OrderTypeStop, true
	case "LMT", "LIMIT":
		return types.OrderTypeLimit, true
	default:
		return "", false
	}
}

func requireConID(instrument types.Instrument) error {
	if instrument.ConID <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "instrument %s has no IBKR contract id", instrument)
	}

	return nil
}

// checkResponse folds transport errors and HTTP error statuses into one coded error.
func checkResponse(resp *resty.Response, err error, code errors.ErrorCode, action string) error {
	if err != nil {
		return errors.Wrapf(code, err, "ibkr %s failed", action)
	}

	if resp.IsError() {
		if apiErr, ok := resp.Error().(*ibkrError); ok && apiErr.Error != "" {
			return errors.Newf(code, "ibkr %s failed: %s: %s", action, resp.Status(), apiErr.Error)
		}

		return errors.Newf(code, "ibkr %s failed: %s: %s", action, resp.Status(), strings.TrimSpace(resp.String()))
	}

	return nil
}

var _ trading.Broker = (*IBKRBroker)(nil)
