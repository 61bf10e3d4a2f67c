package cyphal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/plc.go/pkg/can"
	"github.com/robotalks/plc.go/pkg/remoteio"
	"github.com/robotalks/plc.go/pkg/transfer"
)

func TestIdentifier(t *testing.T) {
	cases := []struct {
		name   string
		header Header
		id     uint32
	}{
		{
			name:   "heartbeat message",
			header: Header{Priority: transfer.PriorityNominal, Kind: transfer.KindMessage, Port: 7509, Source: 42, Destination: transfer.NodeIDUnset},
			id:     0x107d552a,
		},
		{
			name:   "get info request",
			header: Header{Priority: transfer.PriorityNominal, Kind: transfer.KindRequest, Port: 430, Source: 10, Destination: 20},
			id:     0x136b8a0a,
		},
		{
			name:   "get info response",
			header: Header{Priority: transfer.PriorityNominal, Kind: transfer.KindResponse, Port: 430, Source: 20, Destination: 10},
			id:     0x126b8514,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id, err := c.header.ID()
			require.NoError(t, err)
			require.Equal(t, c.id, id)
			parsed, ok := ParseID(id)
			require.True(t, ok)
			require.Equal(t, c.header, parsed)
		})
	}

	t.Run("limits", func(t *testing.T) {
		_, err := Header{Kind: transfer.KindMessage, Port: 8192, Source: 1}.ID()
		require.Equal(t, ErrPortOutOfRange, err)
		_, err = Header{Kind: transfer.KindRequest, Port: 512, Source: 1, Destination: 2}.ID()
		require.Equal(t, ErrPortOutOfRange, err)
		_, err = Header{Kind: transfer.KindRequest, Port: 430, Source: 1, Destination: transfer.NodeIDUnset}.ID()
		require.Equal(t, ErrBadDestination, err)
		_, err = Header{Kind: transfer.KindMessage, Port: 1, Source: transfer.NodeIDUnset}.ID()
		require.Equal(t, ErrAnonymous, err)
	})

	t.Run("reserved bits", func(t *testing.T) {
		_, ok := ParseID(0x107d552a | 1<<23)
		require.False(t, ok)
		_, ok = ParseID(0x107d552a | 1<<7)
		require.False(t, ok)
	})
}

func TestCRC16(t *testing.T) {
	require.Equal(t, uint16(0x29b1), CRC16(CRC16Initial, []byte("123456789")))
	require.Equal(t, uint16(0), CRC16(CRC16Initial, []byte{'1', '2', '3', '4', '5', '6', '7', '8', '9', 0x29, 0xb1}))
}

func TestFragment(t *testing.T) {
	tr := &transfer.Transfer{Kind: transfer.KindMessage, Port: 100, TransferID: 3, Payload: []byte{1, 2, 3}}
	frames, err := Fragment(tr, 5)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, []byte{1, 2, 3, 0xe3}, frames[0].Data)
	require.True(t, frames[0].Extended)

	payload := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	tr = &transfer.Transfer{Kind: transfer.KindMessage, Port: 100, TransferID: 3, Payload: payload}
	frames, err = Fragment(tr, 5)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	crc := CRC16(CRC16Initial, payload)
	require.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 0xa3}, frames[0].Data)
	require.Equal(t, []byte{7, 8, 9, byte(crc >> 8), byte(crc), 0x43}, frames[1].Data)

	var r Reassembler
	h, ok := ParseID(frames[0].ID)
	require.True(t, ok)
	now := time.Now()
	require.Nil(t, r.Accept(h, frames[0].Data, now, time.Second))
	require.Equal(t, 1, r.Pending())
	got := r.Accept(h, frames[1].Data, now, time.Second)
	require.NotNil(t, got)
	require.Equal(t, payload, got.Payload)
	require.Equal(t, transfer.NodeID(5), got.RemoteNode)
	require.Equal(t, transfer.TransferID(3), got.TransferID)
	require.Zero(t, r.Pending())
}

func TestReassemblyRejects(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	tr := &transfer.Transfer{Kind: transfer.KindMessage, Port: 100, TransferID: 7, Payload: payload}
	frames, err := Fragment(tr, 5)
	require.NoError(t, err)
	require.Len(t, frames, 4)
	h, _ := ParseID(frames[0].ID)
	now := time.Now()

	t.Run("corrupted", func(t *testing.T) {
		var r Reassembler
		bad := append([]byte(nil), frames[1].Data...)
		bad[0] ^= 0xff
		require.Nil(t, r.Accept(h, frames[0].Data, now, time.Second))
		require.Nil(t, r.Accept(h, bad, now, time.Second))
		require.Nil(t, r.Accept(h, frames[2].Data, now, time.Second))
		require.Nil(t, r.Accept(h, frames[3].Data, now, time.Second))
	})

	t.Run("missing frame", func(t *testing.T) {
		var r Reassembler
		require.Nil(t, r.Accept(h, frames[0].Data, now, time.Second))
		require.Nil(t, r.Accept(h, frames[2].Data, now, time.Second))
		require.Zero(t, r.Pending())
		require.Nil(t, r.Accept(h, frames[3].Data, now, time.Second))
	})

	t.Run("timed out", func(t *testing.T) {
		var r Reassembler
		require.Nil(t, r.Accept(h, frames[0].Data, now, time.Second))
		require.Nil(t, r.Accept(h, frames[1].Data, now.Add(2*time.Second), time.Second))
		require.Zero(t, r.Pending())
	})

	t.Run("restart on new start", func(t *testing.T) {
		var r Reassembler
		require.Nil(t, r.Accept(h, frames[0].Data, now, time.Second))
		require.Nil(t, r.Accept(h, frames[1].Data, now, time.Second))
		var got *transfer.Transfer
		for _, f := range frames {
			got = r.Accept(h, f.Data, now, time.Second)
		}
		require.NotNil(t, got)
		require.Equal(t, payload, got.Payload)
	})
}

func startTransports(t *testing.T, nodes ...transfer.NodeID) (context.Context, []*Transport) {
	ctx, cancel := context.WithCancel(context.TODO())
	t.Cleanup(cancel)
	hub := can.NewHub()
	var transports []*Transport
	for _, node := range nodes {
		tr := New(hub.Attach(), node)
		go tr.Run(ctx)
		transports = append(transports, tr)
	}
	return ctx, transports
}

func TestTransportOverHub(t *testing.T) {
	_, ts := startTransports(t, 10, 20)
	a, b := ts[0], ts[1]

	messages, requests := make(chan *transfer.Transfer, 1), make(chan *transfer.Transfer, 1)
	require.NoError(t, b.Subscribe(transfer.Subscription{Kind: transfer.KindMessage, Port: 100, Extent: 64},
		transfer.HandlerFunc(func(ctx context.Context, tr *transfer.Transfer) { messages <- tr })))
	require.NoError(t, b.Subscribe(transfer.Subscription{Kind: transfer.KindRequest, Port: 430},
		transfer.HandlerFunc(func(ctx context.Context, tr *transfer.Transfer) { requests <- tr })))

	require.NoError(t, a.Send(&transfer.Transfer{Kind: transfer.KindRequest, Port: 430, RemoteNode: 30}))
	payload := []byte("a message longer than one frame")
	require.NoError(t, a.Send(&transfer.Transfer{Kind: transfer.KindMessage, Port: 100, TransferID: 1, Payload: payload}))

	select {
	case got := <-messages:
		require.Equal(t, payload, got.Payload)
		require.Equal(t, transfer.NodeID(10), got.RemoteNode)
	case <-time.After(time.Second):
		t.Fatal("message not received")
	}
	require.Len(t, requests, 0, "request for another node is ignored")

	require.Equal(t, ErrBadDestination,
		a.Send(&transfer.Transfer{Kind: transfer.KindRequest, Port: 430, RemoteNode: transfer.NodeIDUnset}))
}

func TestRemoteIOOverHub(t *testing.T) {
	ctx, ts := startTransports(t, 10, 20)
	server := &remoteio.Server{
		Transport: ts[1],
		Info:      remoteio.NodeInfo{Protocol: remoteio.ProtocolVersion, Name: "plc.io.node20", UniqueID: [16]byte{1, 2, 3}},
	}
	require.NoError(t, server.Listen())
	client, err := remoteio.NewClient(remoteio.NewCaller(ts[0]))
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	info, err := client.GetInfo(reqCtx, 20)
	require.NoError(t, err)
	require.Equal(t, server.Info.Name, info.Name)
	require.Equal(t, server.Info.UniqueID, info.UniqueID)
}
