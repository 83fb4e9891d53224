package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/Eyali1001/harpoon/models"
)

// PolymarketClient resolves profile URLs and usernames to wallet addresses by
// scraping the public profile page, and fetches public profile metadata from
// Gamma.
type PolymarketClient struct {
	httpClient *http.Client
	siteURL    string
	gammaURL   string
}

// NewPolymarketClient creates a profile resolver against polymarket.com.
func NewPolymarketClient() *PolymarketClient {
	return &PolymarketClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		siteURL:    "https://polymarket.com",
		gammaURL:   GammaAPIURL,
	}
}

var _ ProfileResolver = (*PolymarketClient)(nil)

var (
	profilePathPattern = regexp.MustCompile(`polymarket\.com/(?:@|profile/)([^/?#]+)`)

	// the profile page embeds the proxy wallet in its serialized state
	walletPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"proxyWallet"\s*:\s*"(0x[a-fA-F0-9]{40})"`),
		regexp.MustCompile(`"wallet"\s*:\s*"(0x[a-fA-F0-9]{40})"`),
		regexp.MustCompile(`"address"\s*:\s*"(0x[a-fA-F0-9]{40})"`),
		regexp.MustCompile(`0x[a-fA-F0-9]{40}`),
	}
)

// ResolveAddress accepts a wallet address, a profile URL
// (polymarket.com/@name or /profile/name), or a bare @username, and returns
// the canonical lowercase wallet address.
func (c *PolymarketClient) ResolveAddress(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)

	if common.IsHexAddress(input) {
		return strings.ToLower(input), nil
	}

	username := ""
	switch {
	case strings.Contains(input, "polymarket.com"):
		if m := profilePathPattern.FindStringSubmatch(input); m != nil {
			username = m[1]
		}
	case strings.HasPrefix(input, "@"):
		username = input[1:]
	default:
		username = input
	}
	if username == "" {
		return "", fmt.Errorf("could not extract a username from %q", input)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.siteURL+"/@"+username, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Harpoon/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch profile page: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile %q not found (status %d)", username, resp.StatusCode)
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read profile page: %v", ErrSourceUnavailable, err)
	}

	for _, pattern := range walletPatterns {
		if m := pattern.FindSubmatch(html); m != nil {
			addr := string(m[len(m)-1])
			if common.IsHexAddress(addr) {
				return strings.ToLower(addr), nil
			}
		}
	}
	return "", fmt.Errorf("no wallet address found on profile %q", username)
}

// FetchProfile loads public profile metadata for an address. Failures are
// logged and swallowed; profile info is decoration, not data.
func (c *PolymarketClient) FetchProfile(ctx context.Context, address string) (*models.ProfileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.gammaURL+"/public-profile?address="+strings.ToLower(address), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("wallet", address).Msg("profile fetch failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var payload struct {
		Name         string `json:"name"`
		Pseudonym    string `json:"pseudonym"`
		Bio          string `json:"bio"`
		ProfileImage string `json:"profileImage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Debug().Err(err).Str("wallet", address).Msg("profile decode failed")
		return nil, nil
	}

	return &models.ProfileInfo{
		Name:         payload.Name,
		Pseudonym:    payload.Pseudonym,
		Bio:          payload.Bio,
		ProfileImage: payload.ProfileImage,
		ProfileURL:   c.siteURL + "/profile/" + strings.ToLower(address),
	}, nil
}
