package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransferIDWraps(t *testing.T) {
	require.Equal(t, TransferID(1), TransferID(0).Next())
	require.Equal(t, TransferID(0), TransferID(TransferIDModulo-1).Next())

	var c Counter
	for i := 0; i < TransferIDModulo; i++ {
		require.Equal(t, TransferID(i), c.Next(200, 5))
	}
	require.Equal(t, TransferID(0), c.Next(200, 5))
	require.Equal(t, TransferID(0), c.Next(201, 5), "counters are per port")
	require.Equal(t, TransferID(0), c.Next(200, 6), "counters are per node")
	require.Equal(t, TransferID(1), c.Next(200, 6))
}

func TestTxQueue(t *testing.T) {
	q := NewTxQueue(3)
	low := &Transfer{Port: 1, Priority: PriorityLow}
	nominal1 := &Transfer{Port: 2, Priority: PriorityNominal}
	nominal2 := &Transfer{Port: 3, Priority: PriorityNominal}
	require.NoError(t, q.Push(low))
	require.NoError(t, q.Push(nominal1))
	require.NoError(t, q.Push(nominal2))
	require.Equal(t, ErrBusy, q.Push(&Transfer{}))
	require.Equal(t, 3, q.Len())

	select {
	case <-q.Ready():
	default:
		t.Fatal("ready not signaled")
	}

	require.Same(t, nominal1, q.Pop())
	require.Same(t, nominal2, q.Pop())
	require.Same(t, low, q.Pop())
	require.Nil(t, q.Pop())
}

func TestRouter(t *testing.T) {
	var r Router
	var got []*Transfer
	h := HandlerFunc(func(ctx context.Context, tr *Transfer) { got = append(got, tr) })
	require.NoError(t, r.Subscribe(Subscription{Kind: KindRequest, Port: 210, Extent: 2}, h))
	require.Equal(t, ErrDuplicateSubscription, r.Subscribe(Subscription{Kind: KindRequest, Port: 210}, h))
	require.NoError(t, r.Subscribe(Subscription{Kind: KindResponse, Port: 210}, h))

	sub, ok := r.Subscribed(KindRequest, 210)
	require.True(t, ok)
	require.Equal(t, DefaultTimeout, sub.Timeout)

	now := time.Now()
	ctx := context.TODO()
	req := &Transfer{Kind: KindRequest, Port: 210, RemoteNode: 5, TransferID: 1, Payload: []byte{1, 2, 3}, Timestamp: now}

	t.Run("truncates to extent", func(t *testing.T) {
		require.True(t, r.Dispatch(ctx, req))
		require.Len(t, got, 1)
		require.Equal(t, []byte{1, 2}, got[0].Payload)
		require.Equal(t, []byte{1, 2, 3}, req.Payload)
	})
	t.Run("drops duplicates", func(t *testing.T) {
		dup := *req
		dup.Timestamp = now.Add(time.Second)
		require.False(t, r.Dispatch(ctx, &dup))
		require.Len(t, got, 1)
	})
	t.Run("accepts same transfer-id after timeout", func(t *testing.T) {
		late := *req
		late.Timestamp = now.Add(DefaultTimeout + time.Millisecond)
		require.True(t, r.Dispatch(ctx, &late))
		require.Len(t, got, 2)
	})
	t.Run("ignores unsubscribed", func(t *testing.T) {
		require.False(t, r.Dispatch(ctx, &Transfer{Kind: KindMessage, Port: 7509}))
	})
}

func TestNetwork(t *testing.T) {
	net := NewNetwork()
	a, b, c := net.Attach(1), net.Attach(2), net.Attach(3)
	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()
	go a.Run(ctx)
	go b.Run(ctx)
	go c.Run(ctx)

	reqCh := make(chan *Transfer, 1)
	msgCh := make(chan *Transfer, 2)
	require.NoError(t, b.Subscribe(Subscription{Kind: KindRequest, Port: 200},
		HandlerFunc(func(ctx context.Context, tr *Transfer) { reqCh <- tr })))
	for _, ep := range []*Endpoint{b, c} {
		require.NoError(t, ep.Subscribe(Subscription{Kind: KindMessage, Port: 7509},
			HandlerFunc(func(ctx context.Context, tr *Transfer) { msgCh <- tr })))
	}

	require.NoError(t, a.Send(&Transfer{Kind: KindRequest, Port: 200, RemoteNode: 2, TransferID: 4, Payload: []byte{9}}))
	select {
	case tr := <-reqCh:
		require.Equal(t, NodeID(1), tr.RemoteNode)
		require.Equal(t, TransferID(4), tr.TransferID)
		require.Equal(t, []byte{9}, tr.Payload)
	case <-time.After(time.Second):
		t.Fatal("request not delivered")
	}

	require.NoError(t, a.Send(&Transfer{Kind: KindMessage, Port: 7509, RemoteNode: NodeIDUnset}))
	for i := 0; i < 2; i++ {
		select {
		case tr := <-msgCh:
			require.Equal(t, NodeID(1), tr.RemoteNode)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}
