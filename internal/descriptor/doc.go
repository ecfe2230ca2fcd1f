// Package descriptor loads and validates package-install descriptors.
//
// A descriptor names a package, its version and one or more artifact
// variants, each a download URL and SHA-256 checksum guarded by a platform
// constraint. Descriptors are written either in Lua, evaluated in a sandboxed
// VM with a read-only `hardware` helper table:
//
//	keg = {
//	  name    = "unseal",
//	  version = "v0.3-beta",
//	  artifacts = {
//	    {
//	      when   = hardware.is_64_bit(),
//	      url    = "https://github.com/jaxxstorm/unseal/releases/download/v0.3-beta/unseal-v0.3-beta_darwin_amd64",
//	      sha256 = "f25061683b741ad394efd4277bb076a7a1c095b98a53c76470da70aa37f08d8e",
//	    },
//	  },
//	}
//
// or in YAML/JSON, validated against an embedded JSON Schema before decoding.
//
// # Validation
//
// Every descriptor must name the package and its version and carry at least
// one artifact variant. An enabled variant must declare a 64 character hex
// SHA-256; a variant kept for reference but not usable is written with
// `enabled = false` and may leave the checksum empty. Violations are reported
// as *InvalidDescriptorError, which matches ErrInvalidDescriptor.
package descriptor
