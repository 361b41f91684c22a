package rpcerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableTable(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want bool
	}{
		{"timeout", New(Timeout, "deadline"), true},
		{"connection", New(Connection, "reset"), true},
		{"http 500", NewHTTPStatus(500, ""), true},
		{"http 503", NewHTTPStatus(503, ""), true},
		{"http 429", NewHTTPStatus(429, ""), true},
		{"http 400", NewHTTPStatus(400, ""), false},
		{"http 404", NewHTTPStatus(404, ""), false},
		{"decode", New(Decode, "bad json"), false},
		{"remote rpc error", NewRemoteRPCError(-32000, "execution reverted"), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.err.IsRetryable())
		})
	}
}

func TestIsRateLimitOnlyMatches429(t *testing.T) {
	assert.True(t, NewHTTPStatus(429, "").IsRateLimit())
	assert.False(t, NewHTTPStatus(503, "").IsRateLimit())
	assert.False(t, New(Connection, "").IsRateLimit())
}

func TestErrorsIsMatchesOnKind(t *testing.T) {
	err := NewHTTPStatus(500, "boom")
	assert.True(t, errors.Is(err, Sentinel(HTTPStatus)))
	assert.False(t, errors.Is(err, Sentinel(Decode)))
}

func TestWithContextPrependsDetail(t *testing.T) {
	err := New(Connection, "reset by peer").WithContext("dialing endpoint 2")
	assert.Equal(t, "dialing endpoint 2: reset by peer", err.Detail)
}

func TestUnwrapReturnsWrappedCause(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := Wrap(Connection, "transport failure", cause)
	assert.ErrorIs(t, err, cause)
}

func TestNewAllEndpointsFailedAggregatesPerEndpoint(t *testing.T) {
	per := map[int]error{
		0: New(Connection, "refused"),
		1: NewHTTPStatus(500, ""),
	}
	err := NewAllEndpointsFailed(per)
	assert.Equal(t, AllEndpointsFailed, err.Kind)
	assert.Len(t, err.PerEndpoint, 2)
}
