// Package packager writes one channel package per request from a shared base.
package packager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/chanpack/internal/atomicfile"
	"github.com/samcharles93/chanpack/internal/logger"
	"github.com/samcharles93/chanpack/internal/retry"
	"github.com/samcharles93/chanpack/pkg/channel"
	"github.com/samcharles93/chanpack/pkg/payload"
	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// Defaults applied by New.
const (
	DefaultRetries = 3
	DefaultBackoff = 200 * time.Millisecond
	DefaultPerm    = fs.FileMode(0o644)
)

var (
	// ErrDuplicateOutput reports a request whose output path an earlier
	// request in the same batch already claimed.
	ErrDuplicateOutput = errors.New("packager: output path used by another channel")

	// ErrInvalidRequest reports a request missing its metadata or output.
	ErrInvalidRequest = errors.New("packager: invalid request")
)

// Request asks for one channel package.
type Request struct {
	// Channel labels the request in logs and outcomes. Empty means the
	// metadata's channel ID.
	Channel  string
	Metadata *payload.Metadata
	Output   string
}

// Outcome is the result of one request.
type Outcome struct {
	Channel  string         `json:"channel"`
	Output   string         `json:"output"`
	Source   channel.Source `json:"source"`
	Digest   channel.Digest `json:"digest"`
	Size     int64          `json:"size"`
	Attempts int            `json:"attempts"`
	Duration time.Duration  `json:"duration"`
	Err      error          `json:"-"`
}

// OK reports whether the package was written.
func (o Outcome) OK() bool { return o.Err == nil }

// Options configure a Packager.
type Options struct {
	// Workers bounds concurrent channels. Zero or less means one.
	Workers int
	// Overwrite allows replacing existing outputs.
	Overwrite bool
	// Retries is the number of write attempts. Zero means DefaultRetries.
	Retries int
	// Backoff is the wait before the second write attempt.
	Backoff  time.Duration
	Perm     fs.FileMode
	Logger   logger.Logger
	Strategy Strategy
}

// Packager runs batches of channel requests.
type Packager struct {
	opts Options
}

// New returns a Packager with defaults filled in.
func New(opts Options) *Packager {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Perm == 0 {
		opts.Perm = DefaultPerm
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Strategy == nil {
		opts.Strategy = NativeStrategy{}
	}
	return &Packager{opts: opts}
}

// GenerateFile maps the base package read-only and runs Generate over it.
func (p *Packager) GenerateFile(ctx context.Context, basePath string, reqs []Request) ([]Outcome, error) {
	f, err := zipindex.Open(basePath)
	if err != nil {
		return nil, fmt.Errorf("open base %s: %w", basePath, err)
	}
	defer func() { _ = f.Close() }()
	return p.Generate(ctx, f.Data, reqs), nil
}

// Generate writes one package per request and returns outcomes in request
// order. A failed channel never stops the others. Once ctx is done no new
// channel starts and the remaining ones report the context error; channels
// already running finish.
func (p *Packager) Generate(ctx context.Context, base []byte, reqs []Request) []Outcome {
	log := p.opts.Logger.With("run", uuid.NewString())
	outcomes := make([]Outcome, len(reqs))
	for i, r := range reqs {
		outcomes[i] = Outcome{Channel: label(r), Output: r.Output}
	}

	if err := p.opts.Strategy.Available(); err != nil {
		for i := range outcomes {
			outcomes[i].Err = fmt.Errorf("strategy %s: %w", p.opts.Strategy.Name(), err)
		}
		return outcomes
	}

	claimed := claimOutputs(reqs, outcomes)
	log.Info("generating channels", "channels", len(reqs), "workers", p.opts.Workers, "strategy", p.opts.Strategy.Name())

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i := range reqs {
		if !claimed[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			p.run(context.WithoutCancel(ctx), log, base, reqs[i], &outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	log.Info("channels done", "ok", len(outcomes)-failed, "failed", failed)
	return outcomes
}

func (p *Packager) run(ctx context.Context, log logger.Logger, base []byte, r Request, out *Outcome) {
	start := time.Now()
	log = log.With(logger.ChannelKey, out.Channel, "output", r.Output)
	defer func() { out.Duration = time.Since(start) }()

	data, src, err := p.opts.Strategy.Patch(base, r.Metadata)
	if err != nil {
		out.Err = err
		log.Error("patch failed", "err", err)
		return
	}
	out.Source = src

	attempts, err := retry.Do(ctx, retry.Policy{
		Attempts: p.opts.Retries,
		Backoff:  p.opts.Backoff,
		Retryable: func(err error) bool {
			return !errors.Is(err, atomicfile.ErrOutputExists)
		},
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn("write failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		},
	}, func(int) error {
		return atomicfile.Write(r.Output, data, p.opts.Perm, p.opts.Overwrite)
	})
	out.Attempts = attempts
	if err != nil {
		out.Err = err
		log.Error("write failed", "attempts", attempts, "err", err)
		return
	}

	out.Digest = channel.Sum(data)
	out.Size = int64(len(data))
	log.Info("channel written", "source", src.String(), "size", out.Size, "digest", out.Digest.String()[:16])
}

// claimOutputs validates requests and gives each output path to its first
// request. It reports which requests may run.
func claimOutputs(reqs []Request, outcomes []Outcome) []bool {
	ok := make([]bool, len(reqs))
	seen := make(map[string]string, len(reqs))
	for i, r := range reqs {
		switch {
		case r.Metadata == nil:
			outcomes[i].Err = fmt.Errorf("%w: no metadata", ErrInvalidRequest)
			continue
		case r.Output == "":
			outcomes[i].Err = fmt.Errorf("%w: no output path", ErrInvalidRequest)
			continue
		}
		key := filepath.Clean(r.Output)
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if first, dup := seen[key]; dup {
			outcomes[i].Err = fmt.Errorf("%w: %s (claimed by %s)", ErrDuplicateOutput, r.Output, first)
			continue
		}
		seen[key] = outcomes[i].Channel
		ok[i] = true
	}
	return ok
}

func label(r Request) string {
	if r.Channel != "" {
		return r.Channel
	}
	return r.Metadata.ChannelID()
}
