package descriptor

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/keg/internal/platform"
)

// DefaultEvalTimeout bounds how long a Lua descriptor may run.
const DefaultEvalTimeout = 5 * time.Second

// ParseLua evaluates a Lua descriptor and returns the validated result.
// The script must assign a global `keg` table. source names the file in
// error messages and may be empty.
func ParseLua(ctx context.Context, source, luaCode string) (*PackageDescriptor, error) {
	L := newSandboxedVM()
	defer L.Close()

	ctx, cancel := context.WithTimeout(ctx, DefaultEvalTimeout)
	defer cancel()
	L.SetContext(ctx)

	if err := platform.InjectHardwareTable(L); err != nil {
		return nil, fmt.Errorf("inject hardware table: %w", err)
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Source:  source,
			Message: "Lua evaluation failed",
			Detail:  err.Error(),
		}
	}

	desc, err := extractDescriptor(L)
	if err != nil {
		return nil, withSource(err, source)
	}

	if err := desc.Validate(); err != nil {
		return nil, withSource(err, source)
	}

	return desc, nil
}

// extractDescriptor reads the global `keg` table.
func extractDescriptor(L *lua.LState) (*PackageDescriptor, error) {
	kegValue := L.GetGlobal("keg")
	if kegValue.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'keg' table",
			Detail:  fmt.Sprintf("expected table, got %s", kegValue.Type()),
		}
	}
	table := kegValue.(*lua.LTable)

	desc := &PackageDescriptor{}
	var err error

	if desc.Name, err = optionalString(table, "name"); err != nil {
		return nil, err
	}
	if desc.Description, err = optionalString(table, "description"); err != nil {
		return nil, err
	}
	if desc.Description == "" {
		if desc.Description, err = optionalString(table, "desc"); err != nil {
			return nil, err
		}
	}
	if desc.Homepage, err = optionalString(table, "homepage"); err != nil {
		return nil, err
	}
	if desc.Version, err = optionalString(table, "version"); err != nil {
		return nil, err
	}

	switch artifacts := table.RawGetString("artifacts"); artifacts.Type() {
	case lua.LTTable:
		desc.Artifacts, err = extractArtifacts(artifacts.(*lua.LTable))
		if err != nil {
			return nil, err
		}
	case lua.LTNil:
		// Single-artifact shorthand: url/sha256 at the top level.
		if table.RawGetString("url").Type() != lua.LTNil {
			variant, err := extractVariant(table, "")
			if err != nil {
				return nil, err
			}
			desc.Artifacts = []ArtifactVariant{variant}
		}
	default:
		return nil, &InvalidDescriptorError{Field: "artifacts", Message: fmt.Sprintf("expected list, got %s", artifacts.Type())}
	}

	switch test := table.RawGetString("test"); test.Type() {
	case lua.LTNil:
	case lua.LTString:
		desc.Test = []string{test.String()}
	case lua.LTTable:
		args, ok := stringArray(test.(*lua.LTable))
		if !ok {
			return nil, &InvalidDescriptorError{Field: "test", Message: "expected a list of strings"}
		}
		desc.Test = args
	default:
		return nil, &InvalidDescriptorError{Field: "test", Message: fmt.Sprintf("expected string or list, got %s", test.Type())}
	}

	return desc, nil
}

// extractArtifacts reads the artifacts list in declaration order.
// nil holes (from `cond and {...} or nil`) are skipped.
func extractArtifacts(table *lua.LTable) ([]ArtifactVariant, error) {
	var variants []ArtifactVariant

	for i := 1; i <= table.MaxN(); i++ {
		item := table.RawGetInt(i)
		switch item.Type() {
		case lua.LTNil:
			continue
		case lua.LTTable:
			variant, err := extractVariant(item.(*lua.LTable), fmt.Sprintf("artifacts[%d].", len(variants)))
			if err != nil {
				return nil, err
			}
			variants = append(variants, variant)
		default:
			return nil, &InvalidDescriptorError{
				Field:   fmt.Sprintf("artifacts[%d]", len(variants)),
				Message: fmt.Sprintf("expected table, got %s", item.Type()),
			}
		}
	}

	return variants, nil
}

// extractVariant reads one artifact table. prefix is prepended to field
// names in errors.
func extractVariant(table *lua.LTable, prefix string) (ArtifactVariant, error) {
	variant := ArtifactVariant{Enabled: true}
	var err error

	switch when := table.RawGetString("when"); when.Type() {
	case lua.LTNil:
	case lua.LTString:
		c, ok := platform.NamedConstraint(when.String())
		if !ok {
			return variant, &InvalidDescriptorError{Field: prefix + "when", Message: fmt.Sprintf("unknown predicate %q", when.String())}
		}
		variant.When = c
	case lua.LTTable:
		variant.When, err = platform.ConstraintFromTable(when.(*lua.LTable))
		if err != nil {
			return variant, &InvalidDescriptorError{Field: prefix + "when", Message: err.Error()}
		}
	case lua.LTBool:
		// `when = false` reads as a disabled variant; `true` matches anything.
		variant.Enabled = bool(when.(lua.LBool))
	default:
		return variant, &InvalidDescriptorError{Field: prefix + "when", Message: fmt.Sprintf("expected table or predicate name, got %s", when.Type())}
	}

	switch enabled := table.RawGetString("enabled"); enabled.Type() {
	case lua.LTNil:
	case lua.LTBool:
		variant.Enabled = variant.Enabled && bool(enabled.(lua.LBool))
	default:
		return variant, &InvalidDescriptorError{Field: prefix + "enabled", Message: fmt.Sprintf("expected boolean, got %s", enabled.Type())}
	}

	if variant.URL, err = optionalString(table, "url"); err != nil {
		return variant, prefixField(err, prefix)
	}
	if variant.SHA256, err = optionalString(table, "sha256"); err != nil {
		return variant, prefixField(err, prefix)
	}
	if variant.SignatureURL, err = optionalString(table, "signature_url"); err != nil {
		return variant, prefixField(err, prefix)
	}
	archive, err := optionalString(table, "archive")
	if err != nil {
		return variant, prefixField(err, prefix)
	}
	variant.Archive = ArchiveFormat(archive)
	if variant.Binary, err = optionalString(table, "binary"); err != nil {
		return variant, prefixField(err, prefix)
	}

	switch sig := table.RawGetString("sigstore"); sig.Type() {
	case lua.LTNil:
	case lua.LTTable:
		bundle := &SigstoreBundle{}
		sigTable := sig.(*lua.LTable)
		if bundle.URL, err = optionalString(sigTable, "bundle_url"); err != nil {
			return variant, prefixField(err, prefix+"sigstore.")
		}
		if bundle.Issuer, err = optionalString(sigTable, "issuer"); err != nil {
			return variant, prefixField(err, prefix+"sigstore.")
		}
		if bundle.Identity, err = optionalString(sigTable, "identity"); err != nil {
			return variant, prefixField(err, prefix+"sigstore.")
		}
		variant.Sigstore = bundle
	default:
		return variant, &InvalidDescriptorError{Field: prefix + "sigstore", Message: fmt.Sprintf("expected table, got %s", sig.Type())}
	}

	return variant, nil
}

// optionalString returns the string field key, "" when absent.
func optionalString(table *lua.LTable, key string) (string, error) {
	v := table.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return "", nil
	case lua.LTString:
		return v.String(), nil
	default:
		return "", &InvalidDescriptorError{Field: key, Message: fmt.Sprintf("expected string, got %s", v.Type())}
	}
}

// stringArray reads a Lua sequence of strings.
func stringArray(table *lua.LTable) ([]string, bool) {
	out := make([]string, 0, table.Len())
	for i := 1; i <= table.Len(); i++ {
		v := table.RawGetInt(i)
		if v.Type() != lua.LTString {
			return nil, false
		}
		out = append(out, v.String())
	}
	return out, true
}

func prefixField(err error, prefix string) error {
	if invalid, ok := err.(*InvalidDescriptorError); ok {
		invalid.Field = prefix + invalid.Field
	}
	return err
}

func withSource(err error, source string) error {
	switch e := err.(type) {
	case *InvalidDescriptorError:
		e.Source = source
	case *ParseError:
		e.Source = source
	}
	return err
}
