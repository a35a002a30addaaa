package rpcerr

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"mcpd/internal/domain"
)

func TestClassifyMapsKnownSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code int64
	}{
		{domain.ErrInvalidParams, CodeInvalidParams},
		{domain.ErrEmptyQuery, CodeInvalidParams},
		{domain.ErrPublicToolNotFound, CodeMethodNotFound},
		{domain.ErrUpstreamTimeout, CodeUpstreamTimeout},
		{domain.ErrUpstreamClosed, CodeUpstreamClosed},
		{domain.ErrSearchUnavailable, CodeSearchUnavailable},
		{domain.ErrUpstreamError, CodeUpstreamError},
		{errors.New("boom"), CodeUpstreamError},
	}
	for _, tc := range cases {
		code, msg := classify(tc.err)
		require.Equal(t, tc.code, code)
		require.NotEmpty(t, msg)
	}
}

func TestNewAttachesNameAndUpstreamID(t *testing.T) {
	wireErr := New(domain.ErrUpstreamTimeout, "a.tool", "upstream-1")
	require.Equal(t, CodeUpstreamTimeout, wireErr.Code)

	var data Data
	require.NoError(t, json.Unmarshal(wireErr.Data, &data))
	require.Equal(t, "a.tool", data.Name)
	require.Equal(t, "upstream-1", data.UpstreamID)
}

func TestMethodNotFound(t *testing.T) {
	wireErr := MethodNotFound("missing.tool")
	require.Equal(t, CodeMethodNotFound, wireErr.Code)

	var data Data
	require.NoError(t, json.Unmarshal(wireErr.Data, &data))
	require.Equal(t, "missing.tool", data.Name)
}
