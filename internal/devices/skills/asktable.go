// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package skills

import (
	"time"

	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/puzpuzpuz/xsync/v4"
)

// AnswerFunc receives the text a peer heard in response to an ask.
type AnswerFunc func(text string, ctx *core.Context)

type askEntry struct {
	callback AnswerFunc
	deadline time.Time
}

// AskTable holds at most one pending ask per peer URL: the next
// collect arriving from that URL before the deadline is routed to the
// stored callback instead of the intent matcher. Keying by URL keeps
// concurrent asks to different rooms from crossing. The table outlives
// the requests that fill it, so it is shared state rather than a
// handler closure.
type AskTable struct {
	entries *xsync.Map[string, askEntry]
}

// NewAskTable creates an empty table.
func NewAskTable() *AskTable {
	return &AskTable{
		entries: xsync.NewMap[string, askEntry](),
	}
}

// Put stores the callback for a peer URL, replacing any prior entry.
func (t *AskTable) Put(url string, callback AnswerFunc, timeout time.Duration) {
	t.entries.Store(url, askEntry{
		callback: callback,
		deadline: time.Now().Add(timeout),
	})
}

// Pop removes and returns the pending callback for a peer URL. Expired
// entries are discarded.
func (t *AskTable) Pop(url string) (AnswerFunc, bool) {
	entry, ok := t.entries.LoadAndDelete(url)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.deadline) {
		return nil, false
	}
	return entry.callback, true
}

// Len returns the number of pending asks, expired entries included.
func (t *AskTable) Len() int {
	return t.entries.Size()
}
