package service

import (
	"context"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
	"github.com/vibast-solutions/ms-go-wxpay/app/gateway"
	"github.com/vibast-solutions/ms-go-wxpay/app/repository"
	"github.com/vibast-solutions/ms-go-wxpay/config"
)

const (
	testPayKey = "192006250b4c09247ec02edce69f6a2d"
	testAppID  = "wxd930ea5d5a258f4f"
	testMchID  = "10000100"
)

var testNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func okFields(extra map[string]string) gateway.Fields {
	fields := gateway.Fields{
		gateway.FieldReturnCode: gateway.ResultSuccess,
		gateway.FieldResultCode: gateway.ResultSuccess,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

func failFields(errCode string, extra map[string]string) gateway.Fields {
	fields := gateway.Fields{
		gateway.FieldReturnCode: gateway.ResultSuccess,
		gateway.FieldResultCode: gateway.ResultFail,
		gateway.FieldErrCode:    errCode,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	placeFn          func(order *entity.Order) (gateway.Fields, error)
	queryOrderFn     func(outTradeNo string) (gateway.Fields, error)
	cancelFn         func(order *entity.Order) (gateway.Fields, error)
	refundFn         func(refund *entity.Refund) (gateway.Fields, error)
	queryRefundFn    func(outRefundNo string) (gateway.Fields, error)
	payoutFn         func(payout *entity.Payout) (gateway.Fields, error)
	queryPayoutFn    func(partnerTradeNo string) (gateway.Fields, error)
	sendRedPacketFn  func(packet *entity.RedPacket) (gateway.Fields, error)
	queryRedPacketFn func(mchBillno string) (gateway.Fields, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: map[string]int{}}
}

func (g *fakeGateway) record(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[name]++
}

func (g *fakeGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakeGateway) AppID() string { return testAppID }
func (g *fakeGateway) MchID() string { return testMchID }

func (g *fakeGateway) PlaceOrder(_ context.Context, order *entity.Order) (gateway.Fields, error) {
	g.record("place")
	if g.placeFn != nil {
		return g.placeFn(order)
	}
	return okFields(map[string]string{"prepay_id": "wx201"}), nil
}

func (g *fakeGateway) QueryOrder(_ context.Context, outTradeNo string) (gateway.Fields, error) {
	g.record("query_order")
	if g.queryOrderFn != nil {
		return g.queryOrderFn(outTradeNo)
	}
	return okFields(map[string]string{"out_trade_no": outTradeNo, "trade_state": entity.TradeStateNotPay}), nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, order *entity.Order) (gateway.Fields, error) {
	g.record("cancel")
	if g.cancelFn != nil {
		return g.cancelFn(order)
	}
	return okFields(nil), nil
}

func (g *fakeGateway) Refund(_ context.Context, refund *entity.Refund, _ *entity.Order) (gateway.Fields, error) {
	g.record("refund")
	if g.refundFn != nil {
		return g.refundFn(refund)
	}
	return okFields(map[string]string{"refund_id": "50000000382019052709732678859"}), nil
}

func (g *fakeGateway) QueryRefund(_ context.Context, outRefundNo string) (gateway.Fields, error) {
	g.record("query_refund")
	if g.queryRefundFn != nil {
		return g.queryRefundFn(outRefundNo)
	}
	return okFields(map[string]string{"out_refund_no_0": outRefundNo, "refund_status_0": entity.RefundStateProcessing}), nil
}

func (g *fakeGateway) Payout(_ context.Context, payout *entity.Payout) (gateway.Fields, error) {
	g.record("payout")
	if g.payoutFn != nil {
		return g.payoutFn(payout)
	}
	return okFields(map[string]string{"payment_no": "1000018301201505190181489473"}), nil
}

func (g *fakeGateway) QueryPayout(_ context.Context, partnerTradeNo string) (gateway.Fields, error) {
	g.record("query_payout")
	if g.queryPayoutFn != nil {
		return g.queryPayoutFn(partnerTradeNo)
	}
	return okFields(map[string]string{"status": entity.PayoutStateSuccess}), nil
}

func (g *fakeGateway) SendRedPacket(_ context.Context, packet *entity.RedPacket) (gateway.Fields, error) {
	g.record("send_red_packet")
	if g.sendRedPacketFn != nil {
		return g.sendRedPacketFn(packet)
	}
	return okFields(map[string]string{"send_listid": "100000000020150520314766074200"}), nil
}

func (g *fakeGateway) QueryRedPacket(_ context.Context, mchBillno string) (gateway.Fields, error) {
	g.record("query_red_packet")
	if g.queryRedPacketFn != nil {
		return g.queryRedPacketFn(mchBillno)
	}
	return okFields(map[string]string{"status": entity.RedPacketStateSent}), nil
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	items     map[string]*entity.Order
	conflicts int
	updates   int
	findErr   error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{items: map[string]*entity.Order{}}
}

func (r *fakeOrderRepo) Create(_ context.Context, order *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[order.OutTradeNo]; ok {
		return repository.ErrOrderAlreadyExists
	}
	order.ID = uint64(len(r.items) + 1)
	r.items[order.OutTradeNo] = order.Clone()
	return nil
}

func (r *fakeOrderRepo) UpdateIfVersion(_ context.Context, order *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return repository.ErrConcurrentUpdate
	}
	stored, ok := r.items[order.OutTradeNo]
	if !ok || stored.Version != order.Version {
		return repository.ErrConcurrentUpdate
	}
	order.Version++
	r.updates++
	r.items[order.OutTradeNo] = order.Clone()
	return nil
}

func (r *fakeOrderRepo) FindByOutTradeNo(_ context.Context, outTradeNo string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	item, ok := r.items[outTradeNo]
	if !ok {
		return nil, nil
	}
	return item.Clone(), nil
}

func (r *fakeOrderRepo) ListForReconcile(_ context.Context, states []string, before time.Time, limit int32) ([]*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*entity.Order, 0)
	for _, item := range r.items {
		if containsState(states, item.State) && item.UpdatedAt.Before(before) && int32(len(result)) < limit {
			result = append(result, item.Clone())
		}
	}
	return result, nil
}

func (r *fakeOrderRepo) put(order *entity.Order) *entity.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.Version == 0 {
		order.Version = 1
	}
	r.items[order.OutTradeNo] = order.Clone()
	return order
}

func (r *fakeOrderRepo) get(outTradeNo string) *entity.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[outTradeNo].Clone()
}

type fakeRefundRepo struct {
	mu    sync.Mutex
	items map[string]*entity.Refund
}

func newFakeRefundRepo() *fakeRefundRepo {
	return &fakeRefundRepo{items: map[string]*entity.Refund{}}
}

func (r *fakeRefundRepo) Create(_ context.Context, refund *entity.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[refund.OutRefundNo]; ok {
		return repository.ErrRefundAlreadyExists
	}
	r.items[refund.OutRefundNo] = refund.Clone()
	return nil
}

func (r *fakeRefundRepo) UpdateIfVersion(_ context.Context, refund *entity.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[refund.OutRefundNo]
	if !ok || stored.Version != refund.Version {
		return repository.ErrConcurrentUpdate
	}
	refund.Version++
	r.items[refund.OutRefundNo] = refund.Clone()
	return nil
}

func (r *fakeRefundRepo) FindByOutRefundNo(_ context.Context, outRefundNo string) (*entity.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[outRefundNo]
	if !ok {
		return nil, nil
	}
	return item.Clone(), nil
}

func (r *fakeRefundRepo) ListByOutTradeNo(_ context.Context, outTradeNo string) ([]*entity.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*entity.Refund, 0)
	for _, item := range r.items {
		if item.OutTradeNo == outTradeNo {
			result = append(result, item.Clone())
		}
	}
	return result, nil
}

func (r *fakeRefundRepo) ListForReconcile(_ context.Context, states []string, before time.Time, limit int32) ([]*entity.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*entity.Refund, 0)
	for _, item := range r.items {
		if containsState(states, item.Status) && item.UpdatedAt.Before(before) && int32(len(result)) < limit {
			result = append(result, item.Clone())
		}
	}
	return result, nil
}

func (r *fakeRefundRepo) put(refund *entity.Refund) *entity.Refund {
	r.mu.Lock()
	defer r.mu.Unlock()
	if refund.Version == 0 {
		refund.Version = 1
	}
	r.items[refund.OutRefundNo] = refund.Clone()
	return refund
}

func (r *fakeRefundRepo) get(outRefundNo string) *entity.Refund {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[outRefundNo].Clone()
}

type fakePayoutRepo struct {
	mu    sync.Mutex
	items map[string]*entity.Payout
}

func newFakePayoutRepo() *fakePayoutRepo {
	return &fakePayoutRepo{items: map[string]*entity.Payout{}}
}

func (r *fakePayoutRepo) Create(_ context.Context, payout *entity.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[payout.PartnerTradeNo]; ok {
		return repository.ErrPayoutAlreadyExists
	}
	r.items[payout.PartnerTradeNo] = payout.Clone()
	return nil
}

func (r *fakePayoutRepo) UpdateIfVersion(_ context.Context, payout *entity.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[payout.PartnerTradeNo]
	if !ok || stored.Version != payout.Version {
		return repository.ErrConcurrentUpdate
	}
	payout.Version++
	r.items[payout.PartnerTradeNo] = payout.Clone()
	return nil
}

func (r *fakePayoutRepo) FindByPartnerTradeNo(_ context.Context, partnerTradeNo string) (*entity.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[partnerTradeNo]
	if !ok {
		return nil, nil
	}
	return item.Clone(), nil
}

func (r *fakePayoutRepo) ListForReconcile(_ context.Context, states []string, before time.Time, limit int32) ([]*entity.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*entity.Payout, 0)
	for _, item := range r.items {
		if containsState(states, item.Status) && item.UpdatedAt.Before(before) && int32(len(result)) < limit {
			result = append(result, item.Clone())
		}
	}
	return result, nil
}

func (r *fakePayoutRepo) put(payout *entity.Payout) *entity.Payout {
	r.mu.Lock()
	defer r.mu.Unlock()
	if payout.Version == 0 {
		payout.Version = 1
	}
	r.items[payout.PartnerTradeNo] = payout.Clone()
	return payout
}

func (r *fakePayoutRepo) get(partnerTradeNo string) *entity.Payout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[partnerTradeNo].Clone()
}

type fakeRedPacketRepo struct {
	mu    sync.Mutex
	items map[string]*entity.RedPacket
}

func newFakeRedPacketRepo() *fakeRedPacketRepo {
	return &fakeRedPacketRepo{items: map[string]*entity.RedPacket{}}
}

func (r *fakeRedPacketRepo) Create(_ context.Context, packet *entity.RedPacket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[packet.MchBillno]; ok {
		return repository.ErrRedPacketAlreadyExists
	}
	r.items[packet.MchBillno] = packet.Clone()
	return nil
}

func (r *fakeRedPacketRepo) UpdateIfVersion(_ context.Context, packet *entity.RedPacket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[packet.MchBillno]
	if !ok || stored.Version != packet.Version {
		return repository.ErrConcurrentUpdate
	}
	packet.Version++
	r.items[packet.MchBillno] = packet.Clone()
	return nil
}

func (r *fakeRedPacketRepo) FindByMchBillno(_ context.Context, mchBillno string) (*entity.RedPacket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[mchBillno]
	if !ok {
		return nil, nil
	}
	return item.Clone(), nil
}

func (r *fakeRedPacketRepo) ListForReconcile(_ context.Context, states []string, before time.Time, limit int32) ([]*entity.RedPacket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*entity.RedPacket, 0)
	for _, item := range r.items {
		if containsState(states, item.Status) && item.UpdatedAt.Before(before) && int32(len(result)) < limit {
			result = append(result, item.Clone())
		}
	}
	return result, nil
}

func (r *fakeRedPacketRepo) put(packet *entity.RedPacket) *entity.RedPacket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if packet.Version == 0 {
		packet.Version = 1
	}
	r.items[packet.MchBillno] = packet.Clone()
	return packet
}

func (r *fakeRedPacketRepo) get(mchBillno string) *entity.RedPacket {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[mchBillno].Clone()
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*entity.Event
}

func (r *fakeEventRepo) Create(_ context.Context, event *entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}

type fakeCallbackRepo struct {
	mu        sync.Mutex
	callbacks []*entity.GatewayCallback
}

func (r *fakeCallbackRepo) Create(_ context.Context, callback *entity.GatewayCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, callback)
	return nil
}

func (r *fakeCallbackRepo) last() *entity.GatewayCallback {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.callbacks) == 0 {
		return nil
	}
	return r.callbacks[len(r.callbacks)-1]
}

type fakeFulfiller struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFulfiller) Fulfill(context.Context, *entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeFulfiller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
	alerts      map[string]int
	callbacks   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{transitions: map[string]int{}, alerts: map[string]int{}, callbacks: map[string]int{}}
}

func (m *fakeMetrics) StateTransition(entityType, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[entityType+":"+state]++
}

func (m *fakeMetrics) Alert(entityType, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[entityType+":"+kind]++
}

func (m *fakeMetrics) Callback(kind, ack string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[kind+":"+ack]++
}

func containsState(states []string, state string) bool {
	for _, item := range states {
		if item == state {
			return true
		}
	}
	return false
}

type testEnv struct {
	svc        *PaymentService
	gateway    *fakeGateway
	orders     *fakeOrderRepo
	refunds    *fakeRefundRepo
	payouts    *fakePayoutRepo
	redPackets *fakeRedPacketRepo
	events     *fakeEventRepo
	callbacks  *fakeCallbackRepo
	fulfiller  *fakeFulfiller
	metrics    *fakeMetrics

	sleepMu sync.Mutex
	sleeps  []time.Duration
}

func newTestEnv() *testEnv {
	env := &testEnv{
		gateway:    newFakeGateway(),
		orders:     newFakeOrderRepo(),
		refunds:    newFakeRefundRepo(),
		payouts:    newFakePayoutRepo(),
		redPackets: newFakeRedPacketRepo(),
		events:     &fakeEventRepo{},
		callbacks:  &fakeCallbackRepo{},
		fulfiller:  &fakeFulfiller{},
		metrics:    newFakeMetrics(),
	}
	env.svc = NewPaymentService(Dependencies{
		Gateway:    env.gateway,
		Orders:     env.orders,
		Refunds:    env.refunds,
		Payouts:    env.payouts,
		RedPackets: env.redPackets,
		Events:     env.events,
		Callbacks:  env.callbacks,
		Fulfiller:  env.fulfiller,
		Metrics:    env.metrics,
	}, config.WxPayConfig{AppID: testAppID, MchID: testMchID, PayKey: testPayKey, RefundDecryptMode: "ecb"},
		config.ReconcileConfig{StaleAfter: time.Minute, BatchSize: 10, Concurrency: 2, ReversalMaxAttempts: 3, ReversalBackoff: time.Second})
	env.svc.now = func() time.Time { return testNow }
	env.svc.nonce = func() string { return "5K8264ILTKCH16CQ2502SI8ZNMTM67VS" }
	env.svc.sleep = func(_ context.Context, d time.Duration) error {
		env.sleepMu.Lock()
		defer env.sleepMu.Unlock()
		env.sleeps = append(env.sleeps, d)
		return nil
	}
	return env
}

func (env *testEnv) seedOrder(outTradeNo string, totalFee int64) *entity.Order {
	openID := "oUpF8uMuAJO_M2pxb1Q9zNjWeS6o"
	return env.orders.put(&entity.Order{
		OutTradeNo:     outTradeNo,
		Body:           "test goods",
		TotalFee:       totalFee,
		SpbillCreateIP: "127.0.0.1",
		TradeType:      entity.TradeTypeJSAPI,
		OpenID:         &openID,
		State:          entity.OrderStateCreated,
		CreatedAt:      testNow.Add(-time.Hour),
		UpdatedAt:      testNow.Add(-time.Hour),
	})
}

// signedNotify builds a signed order notification body.
func signedNotify(extra map[string]string) []byte {
	fields := okFields(extra)
	fields["appid"] = testAppID
	fields["mch_id"] = testMchID
	fields[gateway.FieldNonceStr] = "5K8264ILTKCH16CQ2502SI8ZNMTM67VS"
	sign, err := gateway.Sign(fields, testPayKey)
	if err != nil {
		panic(err)
	}
	fields[gateway.FieldSign] = sign
	body, err := gateway.Encode(fields)
	if err != nil {
		panic(err)
	}
	return body
}
