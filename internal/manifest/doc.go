// Package manifest emits and checks the release manifest.
//
// A build produces two redundant records of the same hashes:
//
//	release-manifest.json  {checkpoint_id, commit_sha, timestamp_utc, artifacts[{name, sha256}]}
//	checksums.txt          "<sha256>  <name>" per artifact
//
// Emit derives both from one hashing pass so they cannot drift. Verify
// recomputes every hash from disk and cross-checks the ledger. Manifests are
// validated against an embedded CUE schema (schema.cue) before use.
package manifest
