package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/chanpack/internal/packager"
	"github.com/samcharles93/chanpack/pkg/channel"
	"github.com/samcharles93/chanpack/pkg/payload"
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

type outcomeView struct {
	Channel  string `json:"channel"`
	Output   string `json:"output"`
	OK       bool   `json:"ok"`
	Source   string `json:"source,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Attempts int    `json:"attempts"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

func viewOutcome(o packager.Outcome) outcomeView {
	v := outcomeView{
		Channel:  o.Channel,
		Output:   o.Output,
		OK:       o.OK(),
		Attempts: o.Attempts,
		Duration: o.Duration.Round(time.Millisecond).String(),
	}
	if o.OK() {
		v.Source = o.Source.String()
		v.Digest = o.Digest.String()
		v.Size = o.Size
	} else {
		v.Error = o.Err.Error()
	}
	return v
}

// printOutcomes renders a batch and returns an error when any channel failed.
func printOutcomes(w io.Writer, outcomes []packager.Outcome, asJSON bool) error {
	failed := 0
	views := make([]outcomeView, len(outcomes))
	for i, o := range outcomes {
		views[i] = viewOutcome(o)
		if !o.OK() {
			failed++
		}
	}

	if asJSON {
		if err := printJSON(w, views); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "CHANNEL\tSTATUS\tSOURCE\tOUTPUT")
		for _, v := range views {
			status, detail := "ok", v.Source
			if !v.OK {
				status, detail = "FAILED", v.Error
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Channel, status, detail, v.Output)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d channels failed", failed, len(outcomes))
	}
	return nil
}

type channelView struct {
	Path     string            `json:"path"`
	Found    bool              `json:"found"`
	Source   string            `json:"source,omitempty"`
	Entry    string            `json:"entry,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func printChannel(w io.Writer, v channelView) {
	if !v.Found {
		_, _ = fmt.Fprintf(w, "%s: no channel (%s)\n", v.Path, v.Error)
		return
	}
	_, _ = fmt.Fprintf(w, "%s: %s via %s\n", v.Path, v.Metadata[payload.KeyChannelID], v.Source)
	for _, k := range slices.Sorted(maps.Keys(v.Metadata)) {
		_, _ = fmt.Fprintf(w, "  %s=%s\n", k, v.Metadata[k])
	}
}

func printLayout(w io.Writer, path string, l *channel.Layout) {
	_, _ = fmt.Fprintf(w, "package:            %s\n", path)
	_, _ = fmt.Fprintf(w, "size:               %d\n", l.Size)
	_, _ = fmt.Fprintf(w, "blake3:             %s\n", l.Digest)
	_, _ = fmt.Fprintf(w, "entries:            %d\n", l.Entries)
	_, _ = fmt.Fprintf(w, "central directory:  offset %d, size %d\n", l.CentralDirectoryOffset, l.CentralDirectorySize)
	_, _ = fmt.Fprintf(w, "end record:         offset %d, comment %d bytes\n", l.EndRecordOffset, l.CommentLength)
	if l.SigningBlock == nil {
		_, _ = fmt.Fprintln(w, "signing block:      none")
	} else {
		_, _ = fmt.Fprintf(w, "signing block:      offset %d, size %d\n", l.SigningBlock.Offset, l.SigningBlock.Size)
		for _, r := range l.SigningBlock.Records {
			_, _ = fmt.Fprintf(w, "  record %-28s %d bytes\n", r.ID, r.Size)
		}
	}
	if l.Channel == nil {
		_, _ = fmt.Fprintf(w, "channel:            none (%s)\n", l.ChannelError)
		return
	}
	pairs := make([]string, 0, len(l.ChannelMetadata))
	for _, k := range slices.Sorted(maps.Keys(l.ChannelMetadata)) {
		pairs = append(pairs, k+"="+l.ChannelMetadata[k])
	}
	_, _ = fmt.Fprintf(w, "channel:            %s via %s\n", strings.Join(pairs, " "), l.Source)
}
