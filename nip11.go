package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// InformationDocument is the best-effort NIP-11 relay metadata document.
// No third-party HTTP client appears anywhere in the retrieved pack, so
// this is a plain net/http GET + encoding/json decode (see DESIGN.md).
type InformationDocument struct {
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	Pubkey        string   `json:"pubkey,omitempty"`
	Contact       string   `json:"contact,omitempty"`
	SupportedNIPs []int    `json:"supported_nips,omitempty"`
	Software      string   `json:"software,omitempty"`
	Version       string   `json:"version,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// fetchInformationDocument performs a best-effort NIP-11 GET against the
// relay's http(s) equivalent of its websocket URL. Failures are reported
// to the caller, who is expected only to log them (tryConnect never aborts
// a connection attempt because this fails).
func fetchInformationDocument(ctx context.Context, wsURL string, proxy *url.URL) (InformationDocument, error) {
	httpURL := toHTTPURL(wsURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpURL, nil)
	if err != nil {
		return InformationDocument{}, err
	}
	req.Header.Set("Accept", "application/nostr+json")

	client := &http.Client{Timeout: 10 * time.Second}
	if proxy != nil {
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return InformationDocument{}, err
	}
	defer resp.Body.Close()

	var doc InformationDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return InformationDocument{}, err
	}
	return doc, nil
}

func toHTTPURL(wsURL string) string {
	switch {
	case strings.HasPrefix(wsURL, "wss://"):
		return "https://" + strings.TrimPrefix(wsURL, "wss://")
	case strings.HasPrefix(wsURL, "ws://"):
		return "http://" + strings.TrimPrefix(wsURL, "ws://")
	default:
		return wsURL
	}
}
