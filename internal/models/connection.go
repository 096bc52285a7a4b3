package models

import (
	"fmt"
	"strings"
)

// Connection describes one AppResponse appliance and the account used on it.
type Connection struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username"`
	Password string `json:"-"`
	Insecure bool   `json:"insecure"` // skip TLS verification
	CACert   string `json:"-"`        // PEM bundle contents
}

// BaseURL returns the HTTPS base URL for this appliance. The port is only
// included when set, so plain hostnames map to https://host.
func (c *Connection) BaseURL() string {
	host := strings.TrimSuffix(c.Host, "/")
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if c.Port == 0 || c.Port == 443 {
		return "https://" + host
	}
	return fmt.Sprintf("https://%s:%d", host, c.Port)
}

// Label is the name used in logs, falling back to the host.
func (c *Connection) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Host
}
