package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/esats/OrderDispatcher.Apigateway/internal/downstream"
)

// getJSON performs a required GET against a backend and decodes the JSON
// body into T. A non-2xx response surfaces as *downstream.StatusError so the
// pipeline can mirror the exact upstream status; transport and decode
// failures surface as wrapped errors.
func getJSON[T any](ctx context.Context, c *downstream.Client, path, auth string) (T, error) {
	var zero T

	resp, err := c.Get(ctx, path, auth)
	if err != nil {
		return zero, fmt.Errorf("call %s: %w", c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return zero, &downstream.StatusError{Service: c.Name(), StatusCode: resp.StatusCode}
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("decode %s response: %w", c.Name(), err)
	}
	return out, nil
}

// postJSON performs a required POST with a JSON body and decodes the JSON
// response into T, with the same error contract as getJSON.
func postJSON[T any](ctx context.Context, c *downstream.Client, path string, body any, auth string) (T, error) {
	var zero T

	resp, err := c.PostJSON(ctx, path, body, auth)
	if err != nil {
		return zero, fmt.Errorf("call %s: %w", c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return zero, &downstream.StatusError{Service: c.Name(), StatusCode: resp.StatusCode}
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("decode %s response: %w", c.Name(), err)
	}
	return out, nil
}

// decodeStores decodes a store roster from either of the two shapes the
// engagement service is known to return: an envelope
// {isSuccess, value, message} or a bare list. The envelope shape is tried
// first; a failed envelope decode is swallowed and the bare-list shape is
// attempted instead. An envelope that decodes but carries no entries yields
// an empty roster.
func decodeStores(data []byte) ([]Store, error) {
	var env storeListEnvelope
	envErr := json.Unmarshal(data, &env)
	if envErr == nil && len(env.Value) > 0 {
		return env.Value, nil
	}

	var stores []Store
	if err := json.Unmarshal(data, &stores); err != nil {
		if envErr == nil {
			return []Store{}, nil
		}
		return nil, fmt.Errorf("decode store list: %w", err)
	}
	return stores, nil
}

// drain consumes the remainder of a response body so the pooled connection
// can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
}
