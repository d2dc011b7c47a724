package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vultisig/transfer-tracker/tracker"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type printer struct {
	mu     sync.Mutex
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case formatText, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("invalid output format %q, must be %q, %q or %q", format, formatText, formatJSON, formatYAML)
	}
	return &printer{w: w, format: format}, nil
}

// Print writes v as one json line or one yaml document. Text output
// of a snapshot is a single summary line.
func (p *printer) Print(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b []byte
	var err error
	switch p.format {
	case formatJSON:
		b, err = json.Marshal(v)
		b = append(b, '\n')
	case formatYAML:
		b, err = yaml.Marshal(v)
		b = append([]byte("---\n"), b...)
	default:
		b, err = textLine(v)
	}
	if err != nil {
		return fmt.Errorf("marshal %s: %w", p.format, err)
	}
	_, err = p.w.Write(b)
	return err
}

func textLine(v interface{}) ([]byte, error) {
	view, ok := v.(tracker.View)
	if !ok {
		b, err := yaml.Marshal(v)
		return b, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s v%d state=%s outcome=%s", view.PacketHash, view.Version, view.State, view.Outcome)
	if rec, ok := view.Data.Get(); ok {
		observed := 0
		for _, tr := range rec.Traces {
			if tr.Observed() {
				observed++
			}
		}
		fmt.Fprintf(&sb, " %s->%s traces=%d/%d",
			rec.SourceChain.UniversalChainID, rec.DestinationChain.UniversalChainID, observed, len(rec.Traces))
	}
	if view.Error != nil {
		fmt.Fprintf(&sb, " error=%s(%q)", view.Error.Tag, view.Error.Message)
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

// observer prints every store write. Failures are reported on errc once.
func (p *printer) observer(errc chan<- error) tracker.Observer {
	var once sync.Once
	return func(snap tracker.Snapshot) {
		if err := p.Print(snap.View()); err != nil {
			once.Do(func() { errc <- err })
		}
	}
}
