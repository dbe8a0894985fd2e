package hotpotato

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDecodeClientMessage(t *testing.T) {
	cases := []struct {
		name string
		data string
		want Event
	}{
		{"join", `{"type":"join","name":"Alice"}`, Join{PlayerID: "p1", Name: "Alice"}},
		{"set count", `{"type":"setRequiredPlayers","count":3}`, SetRequiredPlayers{PlayerID: "p1", Count: 3}},
		{"throw", `{"type":"throw"}`, Throw{PlayerID: "p1"}},
		{"extra fields", `{"type":"throw","to":"p2"}`, Throw{PlayerID: "p1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeClientMessage([]byte(tc.data), "p1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, ev)
		})
	}
}

func TestDecodeClientMessage_Rejects(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":"tick"}`), "p1")
	require.ErrorIs(t, err, ErrUnknownMessage)

	_, err = DecodeClientMessage([]byte(`{"type":"disconnect"}`), "p1")
	require.ErrorIs(t, err, ErrUnknownMessage)

	_, err = DecodeClientMessage([]byte(`not json`), "p1")
	require.Error(t, err)
}

func TestDeliver_EncodesOncePerMessage(t *testing.T) {
	reg := NewRegistry(nil)
	a, b := newFakeConn(), newFakeConn()
	aid, bid := reg.Register(a), reg.Register(b)

	deliver(reg, zap.NewNop(), []Outbound{
		{To: []string{aid, bid, "departed"}, Msg: WinnerMessage{Type: MsgWinner, PlayerID: aid}},
		{To: []string{bid}, Msg: ForfeitMessage{Type: MsgForfeit, PlayerID: bid, Order: 1, TotalHoldTime: 61000}},
	})

	require.Len(t, a.payloads, 1)
	require.Len(t, b.payloads, 2)

	var winner map[string]any
	require.NoError(t, json.Unmarshal(<-a.payloads, &winner))
	assert.Equal(t, map[string]any{"type": "winner", "playerId": aid}, winner)

	<-b.payloads
	var forfeit map[string]any
	require.NoError(t, json.Unmarshal(<-b.payloads, &forfeit))
	assert.Equal(t, "forfeit", forfeit["type"])
	assert.InDelta(t, 61000, forfeit["totalHoldTime"], 0)
	assert.NotContains(t, forfeit, "potatoHolder")
}
