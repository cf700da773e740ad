package net

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// PostFormJSON posts the form values and decodes the JSON response into
// the passed target. Used for the GitHub device-flow endpoints, which
// answer form posts with JSON when asked.
func PostFormJSON[T any](endpoint string, form url.Values, target *T) error {
	c, err := GetHTTPClient()
	if err != nil {
		return fmt.Errorf("error creating HTTP client: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error creating HTTP Post request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("error posting to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		PrintHTTPResponse(resp)
		return fmt.Errorf("unexpected status posting to %s: %d - %s", endpoint, resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding content: %w", err)
	}
	return nil
}
