package theme

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FallbackPolicy names the theme to load when the requested one cannot be
// loaded. An empty Path disables fallback.
type FallbackPolicy struct {
	Path string
}

// LoadWithFallback loads path, or the policy's theme if that fails. The
// returned error mentions both failures when neither theme loads.
func LoadWithFallback(path string, policy FallbackPolicy, logger *zap.Logger) (*Geometry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	g, err := Load(path)
	if err == nil {
		return g, nil
	}

	fallback := strings.TrimSpace(policy.Path)
	if fallback == "" || fallback == path {
		return nil, err
	}

	logger.Warn("theme load failed, using fallback",
		zap.String("theme", path),
		zap.String("fallback", fallback),
		zap.Error(err),
	)

	g, ferr := Load(fallback)
	if ferr != nil {
		return nil, fmt.Errorf("%w (fallback: %v)", err, ferr)
	}
	return g, nil
}
