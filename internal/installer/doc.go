// Package installer fetches, verifies and places the artifact a descriptor
// resolves to, then smoke-tests the placed binary.
//
// # Security Model
//
// Nothing reaches the bin directory before it has been verified:
//   - Artifacts are staged under the cache directory, never the bin directory
//   - The SHA-256 of the fetched bytes is compared in constant time against
//     the checksum the descriptor declares; a mismatch is never retried
//   - An OpenPGP detached signature and a sigstore bundle may additionally be
//     required per variant
//
// # States
//
// An install moves one way through
//
//	Pending → Fetched → Verified → Placed → Checked
//
// and stops at the first failing step. Result.FailedAt names that step. A
// failing post-install check is advisory: the binary stays placed and the
// install reports StatePlaced with Checked=false alongside a
// *PostInstallCheckError.
//
// # Usage
//
//	inst, err := installer.New(installer.Config{
//	    BinDir:   "/usr/local/bin",
//	    CacheDir: "/var/cache/keg",
//	})
//	if err != nil {
//	    return err
//	}
//
//	result, err := inst.Install(ctx, desc, variant)
//
// # Architecture
//
//   - Installer: orchestration, state tracking and receipts
//   - Downloader: HTTP fetch with retries, resume and progress
//   - Verifier: SHA-256, OpenPGP and sigstore checks
//   - Extractor: pulls the executable out of gz, tar.gz, tar.xz, tar.zst and zip
//   - Placer: atomic placement under a destination lock
//   - Checker: runs the post-install smoke test
package installer
