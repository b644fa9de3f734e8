// Package manifest manages versioned table manifests.
//
// Each table version is one immutable manifest blob:
//
//	<table>/manifest/00000000000000000007.manifest
//
// The current version is the highest one present. A new version is published
// with blobstore.ConditionalStore.PutIfAbsent, so two writers racing for the
// same version cannot both succeed. The loser gets ErrVersionConflict and
// retries on top of the winner. Manifests are never rewritten, which keeps
// every old version readable for time travel.
package manifest
