// Package storage materializes remote media into local files.
//
// Each download gets a fresh uuid filename inside the configured temp
// directory, so concurrent writers never collide. The extension comes from
// the last URL path segment and is dropped unless it is purely alphanumeric.
// Data is written to a ".part" file and renamed into place once complete.
//
//	m := storage.NewMaterializer(cfg.Storage, cfg.Twitter.UserAgent, log)
//	path, err := m.Materialize(ctx, "https://pbs.twimg.com/media/abc.jpg")
package storage
