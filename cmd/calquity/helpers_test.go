// ABOUTME: Small request helpers shared by the CLI tests.
// ABOUTME: Keeps JSON body decoding out of the individual fake servers.
package main

import (
	"encoding/json"
	"net/http"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
