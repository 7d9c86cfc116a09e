package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntentAcceptsStringsAndNumbers(t *testing.T) {
	in, err := ParseIntent([]byte(`{"type":"request_duration","hours":1,"minutes":"30","seconds":null}`))
	require.NoError(t, err)

	assert.Equal(t, IntentRequestDuration, in.Type)
	assert.Equal(t, Field("1"), in.Hours)
	assert.Equal(t, Field("30"), in.Minutes)
	assert.Equal(t, Field(""), in.Seconds)
}

func TestParseIntentRejectsBadInput(t *testing.T) {
	_, err := ParseIntent([]byte(`{"hours":1}`))
	require.Error(t, err)

	_, err = ParseIntent([]byte(`{"type":"start","hours":true}`))
	require.Error(t, err)

	_, err = ParseIntent([]byte(`not json`))
	require.Error(t, err)
}

func TestManagerTracksConnections(t *testing.T) {
	m := NewManager()
	a := &Connection{id: "b", send: make(chan []byte, 1), closed: make(chan struct{})}
	b := &Connection{id: "a", send: make(chan []byte, 1), closed: make(chan struct{})}
	m.Add(a)
	m.Add(b)

	assert.Equal(t, []string{"a", "b"}, m.IDs())
	m.Broadcast([]byte("hello"))
	assert.Equal(t, []byte("hello"), <-a.send)
	assert.Equal(t, []byte("hello"), <-b.send)

	m.Remove("a")
	assert.Equal(t, 1, m.Count())
}
