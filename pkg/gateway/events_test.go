package gateway

import (
	"encoding/json"
	"testing"

	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		raw  string
		want Inbound
	}{
		{
			`{"event":"message:send","data":{"channelId":"c1","content":"hi","replyToId":"m1","mentions":["u2"],"attachments":[{"fileName":"a.png","filePath":"/f/a.png","fileType":"image/png","size":42}]}}`,
			SendMessage{ChannelID: "c1", Content: "hi", ReplyToID: "m1", Mentions: []string{"u2"}, Attachments: []chat.Attachment{{FileName: "a.png", FilePath: "/f/a.png", FileType: "image/png", Size: 42}}},
		},
		{`{"event":"message:read","data":{"channelId":"c1"}}`, MarkRead{ChannelID: "c1"}},
		{`{"event":"typing:start","data":{"channelId":"c1"}}`, TypingStart{ChannelID: "c1"}},
		{`{"event":"typing:stop","data":{"channelId":"c1"}}`, TypingStop{ChannelID: "c1"}},
		{`{"event":"demand:statusUpdate","data":{"demandId":"d1","status":"DONE"}}`, CardStatusUpdate{DemandID: "d1", Status: "DONE"}},
		{`{"event":"channel:join","data":{"channelId":"c9"}}`, JoinChannel{ChannelID: "c9"}},
		{`{"event":"channel:join"}`, JoinChannel{}},
		{`{"event":"message:read","data":null}`, MarkRead{}},
	}
	for _, tt := range tests {
		got, err := Decode([]byte(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
		assert.Equal(t, tt.want.Event(), got.Event())
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"event":"message:delete","data":{}}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = Decode([]byte(`{"event":"message:send","data":[1,2]}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`[`))
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	raw, err := Encode(EventUserOnline, PresenceChange{UserID: "u1"})
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, "user:online", frame["event"])
	assert.Equal(t, map[string]any{"userId": "u1"}, frame["data"])
}

func TestSessionStateOnlyMovesForward(t *testing.T) {
	s := &Session{}
	assert.Equal(t, StateConnecting, s.State())

	assert.Equal(t, StateConnecting, s.setState(StateActive))
	assert.Equal(t, StateActive, s.setState(StateAuthenticated))
	assert.Equal(t, StateActive, s.State())

	s.setState(StateClosed)
	assert.Equal(t, "closed", s.State().String())
}
