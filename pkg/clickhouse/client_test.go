package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "featpipe",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		MaxExecTime:  60 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	}

	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/featpipe", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)

	q := u.Query()
	assert.Equal(t, "5s", q.Get("dial_timeout"))
	assert.Equal(t, "30s", q.Get("read_timeout"))
	assert.Equal(t, "60", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Equal(t, "1", q.Get("wait_for_async_insert"))
}

func TestBuildDSN_HTTPMinimal(t *testing.T) {
	u, err := url.Parse(buildDSN(ClientConfig{Host: "localhost", Port: 8123, Database: "default", UseHTTP: true}))
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Nil(t, u.User)
	assert.Empty(t, u.RawQuery)
}

func TestWithMaxConnections_KeepsDefaults(t *testing.T) {
	cfg := ClientConfig{MaxOpenConns: 10, MaxIdleConns: 5}
	WithMaxConnections(0, 2)(&cfg)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.Error(t, err)
}
