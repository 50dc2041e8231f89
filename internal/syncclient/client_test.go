package syncclient

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pos-service/internal/localstore"
	"pos-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createCall struct {
	target models.OrderTarget
	items  []CartItemInput
}

type updateCall struct {
	cartID    int64
	productID int64
	quantity  int
	unitPrice float64
}

// fakeAPI records calls and lets tests fail or block individual operations
type fakeAPI struct {
	mu      sync.Mutex
	creates []createCall
	updates []updateCall
	removes []int64

	nextCartID int64
	createErr  error
	updateErr  map[int64]error
	active     *RemoteCart
	activeErr  error

	block   chan struct{}
	entered chan struct{}

	updBlock   chan struct{}
	updEntered chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextCartID: 42, updateErr: make(map[int64]error)}
}

func (f *fakeAPI) CreateCart(ctx context.Context, target models.OrderTarget, restaurantID int64, customerID *int64, items []CartItemInput) (int64, int64, error) {
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, createCall{target: target, items: items})
	if f.createErr != nil {
		return 0, 0, f.createErr
	}
	return f.nextCartID, f.nextCartID + 100, nil
}

func (f *fakeAPI) UpdateItemQuantity(ctx context.Context, cartID, productID, restaurantID int64, quantity int, unitPrice float64) error {
	f.mu.Lock()
	if f.updEntered != nil {
		close(f.updEntered)
		f.updEntered = nil
	}
	f.mu.Unlock()
	if f.updBlock != nil {
		<-f.updBlock
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[productID]; err != nil {
		return err
	}
	f.updates = append(f.updates, updateCall{cartID: cartID, productID: productID, quantity: quantity, unitPrice: unitPrice})
	return nil
}

func (f *fakeAPI) RemoveItem(ctx context.Context, cartID, productID, restaurantID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, productID)
	return nil
}

func (f *fakeAPI) ActiveCart(ctx context.Context, target models.OrderTarget) (*RemoteCart, error) {
	return f.active, f.activeErr
}

func newTestClient(t *testing.T, api CartAPI) *Client {
	t.Helper()
	c := New(api, localstore.NewMemory(), "cart")
	c.SetTarget(models.OrderTarget{Kind: models.TargetKindTable, ID: 5}, 1, nil)
	return c
}

func TestReconcileCreatesCartOnFirstTrigger(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{
		{ID: 4, Name: "Margherita", Price: 12.99, Quantity: 2},
	}))

	require.NoError(t, c.Reconcile(context.Background()))

	require.Len(t, api.creates, 1)
	call := api.creates[0]
	assert.Equal(t, models.OrderTarget{Kind: models.TargetKindTable, ID: 5}, call.target)
	require.Len(t, call.items, 1)
	assert.Equal(t, CartItemInput{ProductID: 4, Quantity: 2, UnitPrice: 12.99, Subtotal: 25.98}, call.items[0])

	assert.Equal(t, int64(42), c.CartID())
	assert.Equal(t, map[int64]int{4: 2}, c.SyncedSnapshot())
	assert.Equal(t, StateIdle, c.State())
}

func TestReconcileQuantityChangeIssuesSingleUpdate(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))
	require.NoError(t, c.Reconcile(context.Background()))

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 3}}))
	require.NoError(t, c.Reconcile(context.Background()))

	assert.Len(t, api.creates, 1, "quantity change must not create a second cart")
	require.Len(t, api.updates, 1)
	assert.Equal(t, updateCall{cartID: 42, productID: 4, quantity: 3, unitPrice: 12.99}, api.updates[0])
	assert.Equal(t, map[int64]int{4: 3}, c.SyncedSnapshot())
}

func TestReconcileNoChangeMakesNoCalls(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))
	require.NoError(t, c.Reconcile(context.Background()))
	require.NoError(t, c.Reconcile(context.Background()))

	assert.Len(t, api.creates, 1)
	assert.Empty(t, api.updates)
	assert.Empty(t, api.removes)
}

func TestReconcileEmptyLocalCartIsNoOp(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.Reconcile(context.Background()))
	assert.Empty(t, api.creates)
}

func TestReconcileDropsTriggerWhileInFlight(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	api.entered = make(chan struct{})
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))

	done := make(chan error, 1)
	go func() { done <- c.Reconcile(context.Background()) }()

	// Wait for the first reconcile to enter the blocked create call.
	<-api.entered

	require.NoError(t, c.Reconcile(context.Background()), "concurrent trigger should be dropped, not fail")

	close(api.block)
	require.NoError(t, <-done)

	assert.Len(t, api.creates, 1)
	assert.Equal(t, int64(42), c.CartID())
}

func TestReconcileRemovesDeletedItems(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{
		{ID: 4, Price: 12.99, Quantity: 2},
		{ID: 7, Price: 3.50, Quantity: 1},
	}))
	require.NoError(t, c.Reconcile(context.Background()))

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))
	require.NoError(t, c.Reconcile(context.Background()))

	assert.Equal(t, []int64{7}, api.removes)
	assert.Equal(t, map[int64]int{4: 2}, c.SyncedSnapshot())
}

func TestReconcileResumesAfterPartialFailure(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{
		{ID: 4, Price: 12.99, Quantity: 2},
		{ID: 7, Price: 3.50, Quantity: 1},
	}))
	require.NoError(t, c.Reconcile(context.Background()))

	// First sync: item 4 succeeds, item 7 fails mid-sequence.
	api.updateErr[7] = errors.New("connection reset")
	require.NoError(t, c.SaveLocalCart([]LocalCartItem{
		{ID: 4, Price: 12.99, Quantity: 5},
		{ID: 7, Price: 3.50, Quantity: 2},
	}))
	err := c.Reconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State(), "failed attempt must return to idle")

	// Next trigger retries only the item that failed.
	delete(api.updateErr, 7)
	require.NoError(t, c.Reconcile(context.Background()))

	require.Len(t, api.updates, 2)
	assert.Equal(t, int64(4), api.updates[0].productID)
	assert.Equal(t, updateCall{cartID: 42, productID: 7, quantity: 2, unitPrice: 3.50}, api.updates[1])
}

func TestReconcileCreateFailureLeavesNoCart(t *testing.T) {
	api := newFakeAPI()
	api.createErr = errors.New("server unavailable")
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))
	require.Error(t, c.Reconcile(context.Background()))

	assert.Zero(t, c.CartID())
	assert.Equal(t, StateIdle, c.State())

	// Local cart is intact and the next trigger retries the create.
	api.createErr = nil
	require.NoError(t, c.Reconcile(context.Background()))
	assert.Equal(t, int64(42), c.CartID())
	assert.Len(t, api.creates, 2)
}

func TestSetTargetSwitchDiscardsCart(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))
	require.NoError(t, c.Reconcile(context.Background()))
	require.Equal(t, int64(42), c.CartID())

	c.SetTarget(models.OrderTarget{Kind: models.TargetKindDelivery, ID: 9}, 1, nil)
	assert.Zero(t, c.CartID())
	assert.Empty(t, c.SyncedSnapshot())

	// Same target again is not a switch.
	c.SetTarget(models.OrderTarget{Kind: models.TargetKindDelivery, ID: 9}, 1, nil)
	api.nextCartID = 77
	require.NoError(t, c.Reconcile(context.Background()))
	assert.Equal(t, int64(77), c.CartID())
}

func TestSetTargetDuringCreateDropsResult(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	api.entered = make(chan struct{})
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))

	done := make(chan error, 1)
	go func() { done <- c.Reconcile(context.Background()) }()
	<-api.entered

	// The binding is discarded while the create is still in flight.
	c.SetTarget(models.OrderTarget{Kind: models.TargetKindDelivery, ID: 9}, 1, nil)

	close(api.block)
	require.NoError(t, <-done)

	assert.Zero(t, c.CartID(), "new target must not adopt the old target's cart")
	assert.Empty(t, c.SyncedSnapshot())

	// The next trigger creates fresh for the new target.
	api.block = nil
	api.entered = nil
	api.nextCartID = 77
	require.NoError(t, c.Reconcile(context.Background()))
	require.Len(t, api.creates, 2)
	assert.Equal(t, models.OrderTarget{Kind: models.TargetKindDelivery, ID: 9}, api.creates[1].target)
	assert.Equal(t, int64(77), c.CartID())
}

func TestResetDuringCreateDropsResult(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	api.entered = make(chan struct{})
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))

	done := make(chan error, 1)
	go func() { done <- c.Reconcile(context.Background()) }()
	<-api.entered

	require.NoError(t, c.Reset())

	close(api.block)
	require.NoError(t, <-done)

	assert.Zero(t, c.CartID())
	assert.Empty(t, c.SyncedSnapshot())
}

func TestSetTargetDuringSyncDropsSnapshotWrites(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))
	require.NoError(t, c.Reconcile(context.Background()))

	api.updBlock = make(chan struct{})
	api.updEntered = make(chan struct{})
	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 3}}))

	done := make(chan error, 1)
	go func() { done <- c.Reconcile(context.Background()) }()
	<-api.updEntered

	c.SetTarget(models.OrderTarget{Kind: models.TargetKindDelivery, ID: 9}, 1, nil)

	close(api.updBlock)
	require.NoError(t, <-done)

	assert.Zero(t, c.CartID())
	assert.Empty(t, c.SyncedSnapshot(), "new binding's snapshot must not inherit the old cart's writes")
}

func TestRecoverRebuildsSnapshotFromServer(t *testing.T) {
	api := newFakeAPI()
	api.active = &RemoteCart{CartID: 42, Items: []RemoteItem{{ProductID: 4, Quantity: 2}}}
	c := newTestClient(t, api)

	require.NoError(t, c.Recover(context.Background()))
	assert.Equal(t, int64(42), c.CartID())
	assert.Equal(t, map[int64]int{4: 2}, c.SyncedSnapshot())

	// A reconcile after recovery diffs against the recovered snapshot.
	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 3}}))
	require.NoError(t, c.Reconcile(context.Background()))
	assert.Empty(t, api.creates)
	require.Len(t, api.updates, 1)
	assert.Equal(t, 3, api.updates[0].quantity)
}

func TestRecoverNoActiveCartIsNoOp(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.Recover(context.Background()))
	assert.Zero(t, c.CartID())
}

func TestResetClearsLocalAndServerBinding(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api)

	require.NoError(t, c.SaveLocalCart([]LocalCartItem{{ID: 4, Price: 12.99, Quantity: 2}}))
	require.NoError(t, c.Reconcile(context.Background()))

	require.NoError(t, c.Reset())
	assert.Zero(t, c.CartID())
	assert.Empty(t, c.SyncedSnapshot())

	items, err := c.LocalCart()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDiff(t *testing.T) {
	local := []LocalCartItem{
		{ID: 1, Quantity: 2},
		{ID: 2, Quantity: 1},
		{ID: 3, Quantity: 4},
	}
	synced := map[int64]int{1: 2, 2: 5, 9: 1, 8: 3}

	changed, removed := diff(local, synced)

	require.Len(t, changed, 2)
	assert.Equal(t, int64(2), changed[0].ID)
	assert.Equal(t, int64(3), changed[1].ID)
	assert.Equal(t, []int64{8, 9}, removed)
}

func TestDiffEmptySnapshot(t *testing.T) {
	local := []LocalCartItem{{ID: 1, Quantity: 2}}

	changed, removed := diff(local, nil)
	assert.Len(t, changed, 1)
	assert.Empty(t, removed)
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, 25.98, roundCents(2*12.99))
	assert.Equal(t, 0.30, roundCents(3*0.1))
	assert.Equal(t, 0.0, roundCents(0))
}
