// Package watcher triggers reindexing when the research projects database
// changes on disk.
//
// A SourceWatcher watches the directory holding a SQLite source file with
// fsnotify and reacts to writes on the database and its journal files. Bursts
// of writes are coalesced by a Debouncer, and each batch calls the change
// handler once. Handlers never run concurrently.
//
// Usage:
//
//	w, err := watcher.New(dbPath, watcher.Options{Debounce: 2 * time.Second})
//	if err != nil {
//	    return err
//	}
//	err = w.Run(ctx, func(ctx context.Context, batch []watcher.Event) error {
//	    _, err := driver.Run(ctx, finder.RunOptions{Prune: true})
//	    return err
//	})
package watcher
