package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// InfoPath is the unauthenticated appliance information endpoint.
const InfoPath = "/api/common/1.0/info"

// InfoResponse holds the parsed /api/common/1.0/info response.
type InfoResponse struct {
	DeviceName string `json:"device_name"`
	Model      string `json:"model"`
	Serial     string `json:"serial"`
	SWVersion  string `json:"sw_version"`
	HWVersion  string `json:"hw_version"`
}

// ParseInfoResponse extracts appliance details from an info response body.
func ParseInfoResponse(body []byte) (*InfoResponse, error) {
	var resp InfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing info response: %w", err)
	}
	if resp.SWVersion == "" {
		return nil, fmt.Errorf("info response missing sw_version field")
	}
	return &resp, nil
}

// Info fetches appliance details. Discovery is best-effort: failures are
// logged and an empty InfoResponse is returned.
func (p *AppResponse) Info(ctx context.Context) *InfoResponse {
	body, err := p.client.Get(ctx, InfoPath)
	if err != nil {
		log.WithField("host", p.conn.Host).Debugf("info discovery failed: %v", err)
		return &InfoResponse{}
	}
	resp, err := ParseInfoResponse(body)
	if err != nil {
		log.WithField("host", p.conn.Host).Debugf("info discovery failed: %v", err)
		return &InfoResponse{}
	}
	return resp
}

// SameRelease reports whether two versions share major and minor numbers.
// Unknown versions are treated as matching.
func SameRelease(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	ap, bp := parseVersionParts(a), parseVersionParts(b)
	for len(ap) < 2 {
		ap = append(ap, 0)
	}
	for len(bp) < 2 {
		bp = append(bp, 0)
	}
	return ap[0] == bp[0] && ap[1] == bp[1]
}

func parseVersionParts(v string) []int {
	if i := strings.IndexAny(v, "-+ "); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		result = append(result, n)
	}
	return result
}
