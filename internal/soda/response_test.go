package soda

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_Happy(t *testing.T) {
	resp := &Response{Status: 200, Body: []byte(`{"type":"FeatureCollection"}`)}
	body, err := Check(resp, nil, 200)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"FeatureCollection"}`, string(body))
}

func TestCheck_WrongStatus(t *testing.T) {
	resp := &Response{Status: 404, Body: []byte(`{"error":"not found"}`)}
	_, err := Check(resp, nil, 200)
	require.Error(t, err)
	var unexpected *ErrUnexpectedStatus
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, 404, unexpected.Status)
}

func TestCheck_MissingBody(t *testing.T) {
	resp := &Response{Status: 200, Body: nil}
	_, err := Check(resp, nil, 200)
	require.ErrorIs(t, err, ErrMissingBody)
}

func TestCheck_TransportFailure(t *testing.T) {
	transportErr := errors.New("connection reset")
	_, err := Check(&Response{Status: 200, Body: []byte("ignored")}, transportErr, 200)
	require.ErrorIs(t, err, transportErr)
}
