package repicker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/FMassin/scdlpicker/internal/spool"
)

// publishResults writes the accepted derived picks to the event's output
// area and deposits a link in the outgoing mailbox for the downstream
// consumer. The originating spool link is acknowledged by the caller
// after this hand-off succeeds.
func (r *Repicker) publishResults(item *spool.Item, picks []spool.PickRecord) error {
	outDir := filepath.Join(r.settings.EventRootDir(), item.EventID, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	outPath := filepath.Join(outDir, item.Name)
	if err := spool.WritePicks(picks, outPath); err != nil {
		return err
	}

	// The outgoing link is relative so the whole working directory stays
	// relocatable.
	target, err := filepath.Rel(r.settings.OutgoingDir(), outPath)
	if err != nil {
		return fmt.Errorf("resolving outgoing link target for %s: %w", outPath, err)
	}
	existed, err := r.outgoing.Deposit(item.Name, target)
	if err != nil {
		return err
	}
	if existed {
		r.log.Warn("outgoing link already exists", "name", item.Name, "target", target)
	} else {
		r.log.Debug("created outgoing link", "name", item.Name, "target", target)
	}
	return nil
}
