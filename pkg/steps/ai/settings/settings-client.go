package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultIdleTimeout = 60 * time.Second
)

type ClientSettings struct {
	// Timeout bounds a whole request.
	Timeout *time.Duration `yaml:"timeout,omitempty"`
	// IdleTimeout bounds the gap between two streamed deltas.
	IdleTimeout *time.Duration `yaml:"idle_timeout,omitempty"`
	UserAgent   *string        `yaml:"user_agent,omitempty"`
	HTTPClient  *http.Client   `yaml:"-" json:"-"`
}

// UnmarshalYAML accepts timeouts either as duration strings ("90s") or as a
// number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		Timeout     *yaml.Node `yaml:"timeout"`
		IdleTimeout *yaml.Node `yaml:"idle_timeout"`
		UserAgent   *string    `yaml:"user_agent"`
	}{}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.UserAgent != nil {
		cs.UserAgent = aux.UserAgent
	}
	var err error
	if cs.Timeout, err = decodeDuration(aux.Timeout, cs.Timeout); err != nil {
		return err
	}
	if cs.IdleTimeout, err = decodeDuration(aux.IdleTimeout, cs.IdleTimeout); err != nil {
		return err
	}
	return nil
}

func decodeDuration(n *yaml.Node, def *time.Duration) (*time.Duration, error) {
	if n == nil {
		return def, nil
	}
	var seconds int
	if err := n.Decode(&seconds); err == nil {
		d := time.Duration(seconds) * time.Second
		return &d, nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, &yaml.TypeError{Errors: []string{err.Error()}}
	}
	return &d, nil
}

// MarshalYAML writes timeouts as duration strings.
func (cs ClientSettings) MarshalYAML() (interface{}, error) {
	ret := map[string]interface{}{}
	if cs.Timeout != nil {
		ret["timeout"] = cs.Timeout.String()
	}
	if cs.IdleTimeout != nil {
		ret["idle_timeout"] = cs.IdleTimeout.String()
	}
	if cs.UserAgent != nil {
		ret["user_agent"] = *cs.UserAgent
	}
	return ret, nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	// http clients carry connection pools and are shared, not copied
	tmp := *cs
	tmp.HTTPClient = nil
	ret := clone.Clone(&tmp).(*ClientSettings)
	ret.HTTPClient = cs.HTTPClient
	return ret
}

func (cs *ClientSettings) GetTimeout() time.Duration {
	if cs == nil || cs.Timeout == nil {
		return DefaultTimeout
	}
	return *cs.Timeout
}

func (cs *ClientSettings) GetIdleTimeout() time.Duration {
	if cs == nil || cs.IdleTimeout == nil {
		return DefaultIdleTimeout
	}
	return *cs.IdleTimeout
}

// GetHTTPClient returns the configured client or http.DefaultClient. Request
// deadlines are driven by contexts, so the client itself has no timeout.
func (cs *ClientSettings) GetHTTPClient() *http.Client {
	if cs == nil || cs.HTTPClient == nil {
		return http.DefaultClient
	}
	return cs.HTTPClient
}

func NewClientSettings() *ClientSettings {
	timeout := DefaultTimeout
	idle := DefaultIdleTimeout
	return &ClientSettings{
		Timeout:     &timeout,
		IdleTimeout: &idle,
	}
}
