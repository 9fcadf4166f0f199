// Package spool implements the filesystem mailbox between the pick
// producer and the repicker: a spool directory of symlinks, each pointing
// at a pick payload file inside an event directory. A link is owned by
// the queue until acknowledged and is acknowledged exactly once.
package spool

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FMassin/scdlpicker/internal/errors"
)

// Item is one ready unit of work: a resolved spool link.
type Item struct {
	Link    string // path of the symlink in the spool directory
	Target  string // resolved payload path
	Name    string // link file name, the ordering and identity key
	EventID string // recovered from the payload path
}

// Queue watches a spool directory for payload links.
type Queue struct {
	Dir string
	log *slog.Logger
}

// NewQueue returns a queue over the given spool directory.
func NewQueue(dir string, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{Dir: dir, log: log}
}

// Items lists the ready work items in ascending name order. Links whose
// target does not exist yet are logged and left in place; they are
// retried on the next pass. The spool directory is created on demand.
func (q *Queue) Items() ([]Item, error) {
	if err := os.MkdirAll(q.Dir, 0o755); err != nil {
		return nil, errors.New(fmt.Errorf("creating spool directory: %w", err)).
			Component("spool").
			Category(errors.CategorySpool).
			Context("dir", q.Dir).
			Build()
	}

	entries, err := os.ReadDir(q.Dir)
	if err != nil {
		return nil, errors.New(fmt.Errorf("listing spool directory: %w", err)).
			Component("spool").
			Category(errors.CategorySpool).
			Context("dir", q.Dir).
			Build()
	}

	var items []Item
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}
		link := filepath.Join(q.Dir, name)
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(link)
		if err != nil {
			q.log.Warn("unreadable spool link", "link", link, "error", err)
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(q.Dir, target)
		}
		if _, err := os.Stat(target); err != nil {
			q.log.Warn("missing spool target", "link", link, "target", target)
			continue
		}
		items = append(items, Item{
			Link:    link,
			Target:  target,
			Name:    name,
			EventID: eventIDFromPayloadPath(target),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// Ack removes the item's link, permanently completing it. Removing an
// already-removed link is an error; completion happens exactly once.
func (q *Queue) Ack(item *Item) error {
	if err := os.Remove(item.Link); err != nil {
		return errors.New(fmt.Errorf("acknowledging spool item: %w", err)).
			Component("spool").
			Category(errors.CategorySpool).
			Context("name", item.Name).
			Build()
	}
	return nil
}

// Deposit creates a new link in the spool directory pointing at the given
// payload path. A pre-existing link of the same name is tolerated; the
// caller is notified through the returned flag.
func (q *Queue) Deposit(name, target string) (existed bool, err error) {
	if err := os.MkdirAll(q.Dir, 0o755); err != nil {
		return false, errors.New(fmt.Errorf("creating spool directory: %w", err)).
			Component("spool").
			Category(errors.CategorySpool).
			Context("dir", q.Dir).
			Build()
	}
	link := filepath.Join(q.Dir, name)
	if err := os.Symlink(target, link); err != nil {
		if os.IsExist(err) {
			return true, nil
		}
		return false, errors.New(fmt.Errorf("creating spool link: %w", err)).
			Component("spool").
			Category(errors.CategorySpool).
			Context("link", link).
			Build()
	}
	return false, nil
}

// eventIDFromPayloadPath recovers the event identifier from a payload
// path of the form <eventRoot>/<eventID>/in/<name>.yaml. The eventID sits
// at a fixed position from the end.
func eventIDFromPayloadPath(target string) string {
	return filepath.Base(filepath.Dir(filepath.Dir(target)))
}
