package order_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/basket"
	"github.com/noah-isme/slowdrip-api/internal/catalog"
	"github.com/noah-isme/slowdrip-api/internal/events"
	"github.com/noah-isme/slowdrip-api/internal/lock"
	"github.com/noah-isme/slowdrip-api/internal/notify"
	"github.com/noah-isme/slowdrip-api/internal/options"
	"github.com/noah-isme/slowdrip-api/internal/order"
	"github.com/noah-isme/slowdrip-api/internal/receipt"
)

const stamp = "1/2/2026, 9:30:00 AM"

func product(id, name, category, price string) catalog.Product {
	return catalog.Product{ID: id, Name: name, Category: category, Price: decimal.RequireFromString(price), Dietary: []string{}}
}

var (
	latte  = product("3", "Iced Latte", "coffee", "3.00")
	noodle = product("10", "Beef Noodle Soup", "noodles", "5.00")
	tea    = product("4", "Jasmine Green Tea", "tea", "2.50")
)

type fakeRenderer struct {
	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeRenderer) Render(ctx context.Context, lines []receipt.Line, ts string) (receipt.Document, error) {
	if f.calls.Add(1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return receipt.Document{}, ctx.Err()
		}
	}
	if f.err != nil {
		return receipt.Document{}, f.err
	}
	return receipt.Document{
		Bytes:    []byte("%PDF-fake"),
		Preview:  "data:application/pdf;base64,JVBERi1mYWtl",
		Filename: receipt.Filename(ts),
	}, nil
}

type fixture struct {
	baskets *basket.Service
	orders  *order.Service
	log     *events.MemoryLog
}

func newFixture(t *testing.T, r order.Renderer, locker lock.Locker) fixture {
	t.Helper()
	menu := catalog.NewMemoryStore(nil, []catalog.Product{latte, noodle, tea})
	baskets, err := basket.NewService(basket.Config{Catalog: menu})
	require.NoError(t, err)
	t.Cleanup(baskets.Close)

	log := events.NewMemoryLog(0)
	orders, err := order.NewService(order.Config{
		Baskets:  baskets,
		Catalog:  menu,
		Receipts: r,
		Events:   &events.Bus{Store: log},
		Locker:   locker,
		Clock: order.Clock{Location: time.UTC, Now: func() time.Time {
			return time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
		}},
	})
	require.NoError(t, err)
	return fixture{baskets: baskets, orders: orders, log: log}
}

func (f fixture) fill(t *testing.T, session string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.baskets.AddItem(ctx, session, latte.ID, options.Values{Size: "medium", Shots: "double", Milk: "oat"}, 2)
	require.NoError(t, err)
	_, err = f.baskets.AddItem(ctx, session, noodle.ID, options.Values{Portion: "large"}, 1)
	require.NoError(t, err)
}

func TestClockStamp(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	c := order.Clock{Location: jakarta, Now: func() time.Time {
		return time.Date(2026, 1, 2, 2, 30, 0, 0, time.UTC)
	}}
	require.Equal(t, stamp, c.Stamp())

	c.Layout = time.RFC3339
	require.Equal(t, "2026-01-02T09:30:00+07:00", c.Stamp())

	_, err := order.NewClock("Not/AZone", "")
	require.Error(t, err)
}

func TestPreviewRendersAndFreezes(t *testing.T) {
	f := newFixture(t, &fakeRenderer{}, nil)
	f.fill(t, "s1")

	p, err := f.orders.Preview(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, stamp, p.Timestamp)
	require.Equal(t, "16.60", p.Total)
	require.Equal(t, basket.StatePreviewing, p.Basket.State)
	require.Contains(t, p.Text, "Grand Total: $16.60")
	require.NotContains(t, p.ChannelText, "Total")
	require.True(t, strings.HasPrefix(p.Link, notify.DefaultTelegramURL+"?text=Order%3A%0ATime%3A%20"))
	require.Equal(t, "order_1_2_2026__9_30_00_AM.pdf", p.Filename)

	_, err = f.baskets.AddItem(context.Background(), "s1", tea.ID, options.Values{}, 1)
	require.ErrorIs(t, err, basket.ErrPreviewOpen)

	view, err := f.orders.ClosePreview(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, basket.StatePopulated, view.State)

	recent, err := f.log.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, events.TopicPreviewOpened, recent[0].Topic)
	require.Equal(t, "s1", recent[0].AggregateID)
}

func TestPreviewEmptyBasket(t *testing.T) {
	f := newFixture(t, &fakeRenderer{}, nil)
	_, err := f.orders.Preview(context.Background(), "s1")
	require.ErrorIs(t, err, basket.ErrEmpty)
}

func TestConcurrentPreviewsShareOneRender(t *testing.T) {
	r := &fakeRenderer{gate: make(chan struct{}), started: make(chan struct{})}
	f := newFixture(t, r, nil)
	f.fill(t, "s1")

	const callers = 5
	var wg sync.WaitGroup
	results := make([]order.Preview, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.orders.Preview(context.Background(), "s1")
		}()
	}
	<-r.started
	// let the other callers join the pending render
	time.Sleep(100 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	require.EqualValues(t, 1, r.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i])
	}
}

func TestSubmitClearsBasketAndEmits(t *testing.T) {
	f := newFixture(t, &fakeRenderer{}, nil)
	f.fill(t, "s1")
	ctx := context.Background()

	sub, err := f.orders.Submit(ctx, "s1")
	require.NoError(t, err)
	require.NotEmpty(t, sub.OrderID)
	require.Equal(t, order.KindBasket, sub.Kind)
	require.Equal(t, "16.60", sub.Total)
	require.Equal(t, 2, sub.ItemCount)
	require.NotContains(t, sub.Text, "$")
	require.True(t, strings.HasSuffix(sub.Text, "Thank you!"))
	require.Contains(t, sub.ReceiptText, "Grand Total: $16.60")
	require.Equal(t, notify.TelegramLink("", sub.Text), sub.Link)

	view, err := f.baskets.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, basket.StateEmpty, view.State)
	require.Empty(t, view.Items)

	recent, err := f.log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, events.TopicOrderSubmitted, recent[0].Topic)
	var payload events.OrderPayload
	require.NoError(t, json.Unmarshal(recent[0].Payload, &payload))
	require.Equal(t, sub.OrderID, payload.OrderID)
	require.Equal(t, sub.Text, payload.Text)
	require.Equal(t, sub.Filename, payload.Receipt)

	_, err = f.orders.Submit(ctx, "s1")
	require.ErrorIs(t, err, basket.ErrEmpty)
}

func TestSubmitFromPreviewUsesSnapshot(t *testing.T) {
	f := newFixture(t, &fakeRenderer{}, nil)
	f.fill(t, "s1")
	ctx := context.Background()

	p, err := f.orders.Preview(ctx, "s1")
	require.NoError(t, err)
	sub, err := f.orders.Submit(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, p.ChannelText, sub.Text)
	require.Equal(t, p.Text, sub.ReceiptText)
}

func TestSubmitRenderFailureKeepsBasket(t *testing.T) {
	f := newFixture(t, &fakeRenderer{err: receipt.ErrNotReady}, nil)
	f.fill(t, "s1")
	ctx := context.Background()

	_, err := f.orders.Submit(ctx, "s1")
	require.ErrorIs(t, err, receipt.ErrNotReady)

	view, err := f.baskets.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	recent, err := f.log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestFailedPreviewResumesEditing(t *testing.T) {
	for _, renderErr := range []error{receipt.ErrNotReady, context.DeadlineExceeded} {
		t.Run(renderErr.Error(), func(t *testing.T) {
			f := newFixture(t, &fakeRenderer{err: renderErr}, nil)
			f.fill(t, "s1")
			ctx := context.Background()

			_, err := f.orders.Preview(ctx, "s1")
			require.ErrorIs(t, err, renderErr)

			view, err := f.baskets.Get(ctx, "s1")
			require.NoError(t, err)
			require.Equal(t, basket.StatePopulated, view.State)
			require.Len(t, view.Items, 2)

			view, err = f.baskets.AddItem(ctx, "s1", tea.ID, options.Values{}, 1)
			require.NoError(t, err)
			require.Len(t, view.Items, 3)

			recent, err := f.log.Recent(ctx, 10)
			require.NoError(t, err)
			require.Empty(t, recent)
		})
	}
}

func TestConcurrentFailedPreviewsResumeEditing(t *testing.T) {
	r := &fakeRenderer{gate: make(chan struct{}), started: make(chan struct{}), err: receipt.ErrNotReady}
	f := newFixture(t, r, nil)
	f.fill(t, "s1")

	const callers = 3
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.orders.Preview(context.Background(), "s1")
		}()
	}
	<-r.started
	time.Sleep(50 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, receipt.ErrNotReady)
	}
	_, err := f.baskets.RemoveItem(context.Background(), "s1", 0)
	require.NoError(t, err)
}

func TestConcurrentSubmitIsRejected(t *testing.T) {
	locker := &lock.Local{}
	f := newFixture(t, &fakeRenderer{}, locker)
	f.fill(t, "s1")

	err := locker.TryWithLock(context.Background(), "order:submit:s1", time.Minute, func(ctx context.Context) error {
		_, err := f.orders.Submit(ctx, "s1")
		return err
	})
	require.ErrorIs(t, err, lock.ErrLocked)

	view, err := f.baskets.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
}

func TestQuickOrder(t *testing.T) {
	f := newFixture(t, &fakeRenderer{}, nil)
	ctx := context.Background()

	sub, err := f.orders.Quick(ctx, tea.ID, options.Values{Size: "large", Sugar: "50%"}, 2)
	require.NoError(t, err)
	require.Equal(t, order.KindQuick, sub.Kind)
	require.Equal(t, "7.00", sub.Total)
	require.True(t, strings.HasPrefix(sub.Text, "Order: Jasmine Green Tea\nTime: "+stamp+"\n\nItem 1: Jasmine Green Tea\n  Quantity: 2\n"))
	require.NotContains(t, sub.Text, "$")
	require.True(t, strings.HasPrefix(sub.Link, notify.DefaultTelegramURL+"?text=Order%3A%20Jasmine%20Green%20Tea"))

	view, err := f.baskets.Get(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, view.Items)

	recent, err := f.log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, events.TopicQuickOrder, recent[0].Topic)

	_, err = f.orders.Quick(ctx, "missing", options.Values{}, 1)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}
