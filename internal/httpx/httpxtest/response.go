// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package httpxtest

import (
	"bytes"
	"io"
	"net/http"
)

func Body(b string) io.ReadCloser {
	return io.NopCloser(bytes.NewReader([]byte(b)))
}

// OK returns a 200 response carrying body.
func OK(body string) *http.Response {
	return &http.Response{Status: "200 OK", StatusCode: http.StatusOK, Body: Body(body)}
}

// Status returns a body-less response with the given status code.
func Status(code int) *http.Response {
	return &http.Response{
		Status:     http.StatusText(code),
		StatusCode: code,
		Body:       Body(""),
	}
}
