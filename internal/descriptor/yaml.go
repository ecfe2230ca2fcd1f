package descriptor

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"

	"github.com/ZebulonRouseFrantzich/keg/internal/platform"
)

//go:embed schema/descriptor.schema.json
var descriptorSchema []byte

const schemaURL = "descriptor.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(schemaURL, bytes.NewReader(descriptorSchema)); err != nil {
		return nil, fmt.Errorf("add descriptor schema: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// fileDescriptor mirrors the YAML/JSON layout.
type fileDescriptor struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Desc        string        `json:"desc"`
	Homepage    string        `json:"homepage"`
	Version     string        `json:"version"`
	Artifacts   []fileVariant `json:"artifacts"`
	Test        stringList    `json:"test"`

	// Single-artifact shorthand: url, sha256 and friends at the top level.
	fileVariant
}

type fileVariant struct {
	When         *whenSpec       `json:"when,omitempty"`
	Enabled      *bool           `json:"enabled,omitempty"`
	URL          string          `json:"url,omitempty"`
	SHA256       string          `json:"sha256,omitempty"`
	SignatureURL string          `json:"signature_url,omitempty"`
	Sigstore     *SigstoreBundle `json:"sigstore,omitempty"`
	Archive      string          `json:"archive,omitempty"`
	Binary       string          `json:"binary,omitempty"`
}

// whenSpec accepts a predicate name, a boolean or an {os, arch, bits} object.
type whenSpec struct {
	constraint platform.Constraint
	disabled   bool
}

func (w *whenSpec) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		c, ok := platform.NamedConstraint(name)
		if !ok {
			return fmt.Errorf("unknown predicate %q (known: %s)", name, strings.Join(platform.ConstraintNames(), ", "))
		}
		w.constraint = c
		return nil
	}

	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		w.disabled = !flag
		return nil
	}

	var obj struct {
		OS   stringList `json:"os"`
		Arch stringList `json:"arch"`
		Bits int        `json:"bits"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("when: %w", err)
	}
	w.constraint = platform.Constraint{OS: obj.OS, Arch: obj.Arch, Bits: obj.Bits}.Normalize()
	return nil
}

// stringList accepts a single string or a list of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ParseYAML decodes a YAML or JSON descriptor, checks it against the embedded
// schema and returns the validated result.
func ParseYAML(source string, data []byte) (*PackageDescriptor, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, &ParseError{Source: source, Message: "YAML syntax error", Detail: err.Error()}
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile descriptor schema: %w", err)
	}

	var doc any
	decoder := json.NewDecoder(bytes.NewReader(jsonData))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, &ParseError{Source: source, Message: "descriptor is not a document", Detail: err.Error()}
	}

	if err := schema.Validate(doc); err != nil {
		return nil, &InvalidDescriptorError{Source: source, Message: err.Error()}
	}

	var file fileDescriptor
	if err := json.Unmarshal(jsonData, &file); err != nil {
		return nil, &ParseError{Source: source, Message: "descriptor decode failed", Detail: err.Error()}
	}

	desc := file.toDescriptor()
	if err := desc.Validate(); err != nil {
		return nil, withSource(err, source)
	}

	return desc, nil
}

func (f *fileDescriptor) toDescriptor() *PackageDescriptor {
	desc := &PackageDescriptor{
		Name:        f.Name,
		Description: f.Description,
		Homepage:    f.Homepage,
		Version:     f.Version,
		Test:        f.Test,
	}
	if desc.Description == "" {
		desc.Description = f.Desc
	}

	if len(f.Artifacts) > 0 {
		for _, v := range f.Artifacts {
			desc.Artifacts = append(desc.Artifacts, v.toVariant())
		}
	} else if f.URL != "" {
		desc.Artifacts = []ArtifactVariant{f.fileVariant.toVariant()}
	}

	return desc
}

func (v fileVariant) toVariant() ArtifactVariant {
	variant := ArtifactVariant{
		Enabled:      true,
		URL:          v.URL,
		SHA256:       v.SHA256,
		SignatureURL: v.SignatureURL,
		Sigstore:     v.Sigstore,
		Archive:      ArchiveFormat(v.Archive),
		Binary:       v.Binary,
	}
	if v.When != nil {
		variant.When = v.When.constraint
		variant.Enabled = !v.When.disabled
	}
	if v.Enabled != nil {
		variant.Enabled = variant.Enabled && *v.Enabled
	}
	return variant
}
