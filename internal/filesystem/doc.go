/*
Package filesystem wraps the stat calls the catalog makes against device
storage.

Media libraries frequently live on NFS mounts, where a file that exists can
still fail with ESTALE while the server revalidates handles. StatWithRetry
retries only that error, with capped exponential backoff; every other error
(including "no such file") is returned on the first attempt.

Exists is the existence check the catalog scanner uses to drop index rows
whose file has been deleted:

	scanner := catalog.NewScanner(db, filesystem.Exists)
*/
package filesystem
