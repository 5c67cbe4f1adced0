// Package soda implements regioncache.RemoteDataset over a Socrata-style
// SoQL HTTP API, grounded on the teacher's internal/core/httpclient tuned
// client and internal/core/ogc WFS/cql_filter query-building pattern,
// generalized from WFS GetFeature params to SoQL $where clauses.
package soda

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Response is the transport-level result of one SoQL HTTP request: the
// status code and raw body, independent of whether the request "succeeded"
// in the protocol sense.
type Response struct {
	Status int
	Body   json.RawMessage
}

// ErrUnexpectedStatus is returned by Check when the response arrived but its
// status code didn't match what the caller expected.
type ErrUnexpectedStatus struct {
	Status int
}

func (e *ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("soda: unexpected response status %d", e.Status)
}

// ErrMissingBody is returned by Check when the response matched the expected
// status but carried no body to parse.
var ErrMissingBody = errors.New("soda: response has no body")

// Check is SodaResponse.check from spec: given a transport outcome (a
// Response, or a non-nil transportErr for the "Failed" case) and the status
// code the caller expected, it returns the raw body on success or a typed
// error otherwise. transportErr takes precedence — a dropped connection is
// reported as itself, never reinterpreted as an unexpected-status or
// missing-body case.
func Check(resp *Response, transportErr error, expectedStatus int) (json.RawMessage, error) {
	if transportErr != nil {
		return nil, transportErr
	}
	if resp.Status != expectedStatus {
		return nil, &ErrUnexpectedStatus{Status: resp.Status}
	}
	if len(resp.Body) == 0 {
		return nil, ErrMissingBody
	}
	return resp.Body, nil
}
