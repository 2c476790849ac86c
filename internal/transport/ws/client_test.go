package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, hub *Hub, userID uuid.UUID) *Client {
	t.Helper()
	c := NewClient(hub, nil, nil)
	c.userID = userID
	return c
}

func nextNotice(t *testing.T, c *Client) NoticePayload {
	t.Helper()
	select {
	case data := <-c.send:
		var n NoticePayload
		require.NoError(t, json.Unmarshal(data, &n))
		return n
	default:
		t.Fatal("no frame queued")
		return NoticePayload{}
	}
}

func TestClient_UnknownFrameNamesType(t *testing.T) {
	f := newHubFixture()
	c := newTestClient(t, f.hub, uuid.New())

	frame, err := DecodeFrame([]byte(`{"type":"poke"}`))
	require.NoError(t, err)
	c.handleFrame(context.Background(), frame)

	assert.Equal(t, NewError("Unknown message type: poke"), nextNotice(t, c))
}

func TestClient_MediaFramesAreAcked(t *testing.T) {
	f := newHubFixture()
	c := newTestClient(t, f.hub, uuid.New())

	c.handleFrame(context.Background(), ImageFrame{})
	c.handleFrame(context.Background(), VideoFrame{})

	assert.Equal(t, NewAck("image received"), nextNotice(t, c))
	assert.Equal(t, NewAck("video received"), nextNotice(t, c))
}

func TestClient_SelfMessageIsRejected(t *testing.T) {
	f := newHubFixture()
	userID := uuid.New()
	c := newTestClient(t, f.hub, userID)

	c.handleFrame(context.Background(), MessageFrame{Content: "me", ReceiverID: userID})

	assert.Equal(t, NewError("You cannot send a message to yourself"), nextNotice(t, c))
	assert.Zero(t, f.messages.count())
}

func TestClient_PersistenceFailureReportsError(t *testing.T) {
	f := newHubFixture()
	f.messages.createErr = errStoreDown
	c := newTestClient(t, f.hub, uuid.New())

	c.handleFrame(context.Background(), MessageFrame{Content: "x", ReceiverID: uuid.New()})

	assert.Equal(t, NewError("Failed to send message"), nextNotice(t, c))
}

func TestClient_SeenUnknownMessage(t *testing.T) {
	f := newHubFixture()
	c := newTestClient(t, f.hub, uuid.New())

	c.handleFrame(context.Background(), SeenFrame{MessageID: uuid.New()})

	assert.Equal(t, NewError("Message not found"), nextNotice(t, c))
}

func TestClient_SendAfterClose(t *testing.T) {
	f := newHubFixture()
	c := newTestClient(t, f.hub, uuid.New())

	require.NoError(t, c.Close("bye"))
	require.NoError(t, c.Close("again"))

	err := c.Send(context.Background(), NewAck("late"))
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_SendBufferFull(t *testing.T) {
	f := newHubFixture()
	c := newTestClient(t, f.hub, uuid.New())

	for range sendBufSize {
		require.NoError(t, c.Send(context.Background(), NewAck("x")))
	}

	err := c.Send(context.Background(), NewAck("overflow"))
	assert.ErrorIs(t, err, ErrSendBufferFull)
}

func TestSessionState_String(t *testing.T) {
	assert.Equal(t, "authenticating", StateAuthenticating.String())
	assert.Equal(t, "reading", StateReading.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}
