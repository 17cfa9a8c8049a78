// Package checkpoint derives release identities.
//
// A checkpoint identity names a release by build date and source revision:
//
//	cp-<YYYYMMDD>-<7 hex>
//
// For a fixed calendar day (UTC) and revision the identity is byte-identical
// across builds. The identity also names the artifact file,
// hyena-<identity>-<arch>-<os>, which uniquely determines identity and
// platform.
//
// Revisions come from a RevisionSource: GitRevisionSource for a checkout,
// StaticRevisionSource when CI supplies the commit. Failing to determine a
// revision is fatal for the whole pipeline.
package checkpoint
