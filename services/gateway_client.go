// dkp-loot-system/services/gateway_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// GatewayClient delivers outbound messages to the chat gateway, which owns
// the actual platform connection. Used by the sweeper to announce
// settlements into an auction's origin channel.
type GatewayClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewGatewayClient(baseURL, token string) *GatewayClient {
	return &GatewayClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Announce posts a message into a channel via the gateway.
func (c *GatewayClient) Announce(channelID, content string) error {
	url := fmt.Sprintf("%s/api/v1/announce", c.BaseURL)

	reqBody := map[string]interface{}{
		"channel_id": channelID,
		"content":    content,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("Gateway /announce returned %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("gateway announce failed: %d", resp.StatusCode)
	}

	return nil
}
