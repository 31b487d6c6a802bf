package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/roadside-lab/rsu/internal/daemon"
)

// apiClient talks to a running daemon.
type apiClient struct {
	base string
	http *http.Client
}

// newAPIClient targets the API address from the local config.
func newAPIClient() (*apiClient, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &apiClient{
		base: "http://" + cfg.APIAddr(),
		http: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// call issues a request and decodes the JSON body into out (if non-nil).
// Error responses are turned into Go errors carrying the server's message.
func (c *apiClient) call(method, path string, out any) error {
	req, err := http.NewRequest(method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rsu daemon not reachable at %s (is \"rsu serve\" running?): %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error.Message != "" {
			return errors.New(body.Error.Message)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
