package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// problems collects validation failures so Validate reports all of them.
type problems []error

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

// Validate reports every invalid or missing setting, each prefixed with its
// field path.
func (c *Config) Validate() error {
	var p problems
	if c.Server.Port <= 0 {
		p.addf("server.port must be > 0, got %d", c.Server.Port)
	}
	c.Providers.validate(&p)
	if err := checkHTTPURL(c.N8N.RESTURL()); err != nil {
		p.addf("n8n: %w", err)
	}
	c.RateLimit.General.validate(&p, "rate_limit.general")
	c.RateLimit.AI.validate(&p, "rate_limit.ai")
	c.Storage.validate(&p)
	c.Auth.validate(&p)
	if !slices.Contains([]string{"", "text", "json"}, strings.ToLower(c.Logging.Format)) {
		p.addf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	if c.Observability.Metrics.Enabled {
		checkRoute(&p, "observability.metrics.path", c.Observability.Metrics.Path)
	}
	if t := c.Observability.Tracing; t.Endpoint != "" {
		if err := checkHTTPURL(t.Endpoint); err != nil {
			p.addf("observability.tracing.endpoint: %w", err)
		}
		if t.SampleRatio < 0 || t.SampleRatio > 1 {
			p.addf("observability.tracing.sample_ratio must be within [0, 1], got %g", t.SampleRatio)
		}
	}
	if c.MCP.Enabled {
		checkRoute(&p, "mcp.path", c.MCP.Path)
	}
	return errors.Join(p...)
}

func (pc *ProvidersConfig) validate(p *problems) {
	for _, np := range pc.Named() {
		field := "providers." + np.Name
		switch raw := np.Config.URL(); {
		case raw == "":
			p.addf("%s.base_url or %s.host is required", field, field)
		default:
			if err := checkHTTPURL(raw); err != nil {
				p.addf("%s: %w", field, err)
			}
		}
		if np.Config.Model == "" {
			p.addf("%s.model is required", field)
		}
	}
	if pc.ChatTimeout <= 0 {
		p.addf("providers.chat_timeout must be > 0")
	}
	if pc.ProbeTimeout <= 0 {
		p.addf("providers.probe_timeout must be > 0")
	}
}

// A zero MaxRequests leaves the class unlimited, so the window only
// matters when a limit is set.
func (l LimitConfig) validate(p *problems, field string) {
	if l.MaxRequests > 0 && l.Window <= 0 {
		p.addf("%s.window must be > 0 when max_requests is set", field)
	}
}

func (s *StorageConfig) validate(p *problems) {
	switch s.Type {
	case "memory":
	case "postgres":
		if s.Postgres.DSN == "" && s.Postgres.DSNFile == "" {
			p.addf("storage.postgres.dsn or storage.postgres.dsn_file is required for postgres storage")
		}
	default:
		p.addf("storage.type must be \"memory\" or \"postgres\", got %q", s.Type)
	}
}

func (a *AuthConfig) validate(p *problems) {
	switch a.Type {
	case "none":
	case "apikey":
		if len(a.APIKeys) == 0 {
			p.addf("auth.api_keys must list at least one key for apikey auth")
		}
	case "jwt":
		if a.JWT.Secret == "" {
			p.addf("auth.jwt.secret or auth.jwt.secret_file is required for jwt auth")
		}
	default:
		p.addf("auth.type must be \"none\", \"apikey\" or \"jwt\", got %q", a.Type)
	}
}

func checkRoute(p *problems, field, path string) {
	if !strings.HasPrefix(path, "/") {
		p.addf("%s must start with \"/\", got %q", field, path)
	}
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return fmt.Errorf("invalid url %q: %w", raw, err)
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("url %q must use http or https", raw)
	case u.Host == "":
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}
