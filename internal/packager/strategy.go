package packager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samcharles93/chanpack/pkg/channel"
	"github.com/samcharles93/chanpack/pkg/payload"
)

// ErrNoStrategy reports that no strategy is usable on this host.
var ErrNoStrategy = errors.New("packager: no usable patch strategy")

// Strategy produces a channel package from base bytes.
type Strategy interface {
	Name() string
	// Available reports why the strategy cannot run, or nil.
	Available() error
	Patch(base []byte, m *payload.Metadata) ([]byte, channel.Source, error)
}

// NativeStrategy patches packages in-process.
type NativeStrategy struct{}

func (NativeStrategy) Name() string { return "native" }

func (NativeStrategy) Available() error { return nil }

func (NativeStrategy) Patch(base []byte, m *payload.Metadata) ([]byte, channel.Source, error) {
	return channel.Patch(base, m)
}

// Select returns the first available strategy in order.
func Select(strategies ...Strategy) (Strategy, error) {
	var reasons []string
	for _, s := range strategies {
		err := s.Available()
		if err == nil {
			return s, nil
		}
		reasons = append(reasons, s.Name()+": "+err.Error())
	}
	if len(reasons) == 0 {
		return nil, ErrNoStrategy
	}
	return nil, fmt.Errorf("%w (%s)", ErrNoStrategy, strings.Join(reasons, "; "))
}
