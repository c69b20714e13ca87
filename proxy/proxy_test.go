package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinProxySwitcher(t *testing.T) {
	fn, err := RoundRobinProxySwitcher("http://127.0.0.1:8888", "http://127.0.0.1:8889")
	require.NoError(t, err)

	var hosts []string
	for i := 0; i < 4; i++ {
		u, err := fn(nil)
		require.NoError(t, err)
		hosts = append(hosts, u.Host)
	}
	assert.Equal(t, []string{"127.0.0.1:8888", "127.0.0.1:8889", "127.0.0.1:8888", "127.0.0.1:8889"}, hosts)
}

func TestRoundRobinProxySwitcherInvalid(t *testing.T) {
	_, err := RoundRobinProxySwitcher()
	assert.ErrorIs(t, err, ErrEmptyProxy)

	_, err = RoundRobinProxySwitcher("127.0.0.1")
	assert.Error(t, err)
}

func TestFromList(t *testing.T) {
	fn, err := FromList(" , ")
	require.NoError(t, err)
	assert.Nil(t, fn)

	fn, err = FromList("http://a:1, http://b:2")
	require.NoError(t, err)
	require.NotNil(t, fn)
	u, err := fn(nil)
	require.NoError(t, err)
	assert.Equal(t, "a:1", u.Host)
}
