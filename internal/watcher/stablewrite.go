package watcher

import (
	"os"
	"time"
)

// stablePollInterval and stableWindow implement spec 4.E's stable-write
// gate: an editor save can emit several Write events as it truncates and
// rewrites a file, so we wait until the file's size stops moving before
// treating it as settled.
const (
	stablePollInterval = 20 * time.Millisecond
	stableWindow       = 100 * time.Millisecond
)

// waitForStable blocks until path's size has been unchanged for
// stableWindow, or returns the stat error if the file disappears while
// waiting (a legitimate outcome — the caller treats it as "nothing to
// sync").
func waitForStable(path string) error {
	var lastSize int64 = -1
	var unchangedSince time.Time

	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		size := info.Size()
		if size != lastSize {
			lastSize = size
			unchangedSince = time.Now()
		} else if time.Since(unchangedSince) >= stableWindow {
			return nil
		}
		time.Sleep(stablePollInterval)
	}
}
