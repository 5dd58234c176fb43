package cfg

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/simplesurance/commitqueue/internal/tryjob"
)

// Names of the step policy types in the policy file.
const (
	PolicySteps             = "steps"
	PolicyTriggered         = "triggered"
	PolicyTriggeredOrNormal = "triggered_or_normal"
)

type policyFile struct {
	Steps []toml.Primitive `toml:"step"`
}

type policyType struct {
	Type string `toml:"type"`
}

type validator interface {
	Validate() error
}

// LoadPolicy reads the try job step policies from a TOML document.
// Every [[step]] table has a type key and the fields of the policy. Unknown
// keys are rejected.
func LoadPolicy(reader io.Reader) ([]tryjob.StepVerifier, error) {
	var f policyFile

	md, err := toml.NewDecoder(reader).Decode(&f)
	if err != nil {
		return nil, err
	}

	if len(f.Steps) == 0 {
		return nil, errors.New("no step policies defined")
	}

	result := make([]tryjob.StepVerifier, 0, len(f.Steps))

	for i, prim := range f.Steps {
		var t policyType
		if err := md.PrimitiveDecode(prim, &t); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		var v tryjob.StepVerifier

		switch t.Type {
		case PolicySteps:
			v = &tryjob.TryJobSteps{}
		case PolicyTriggered:
			v = &tryjob.TryJobTriggeredSteps{}
		case PolicyTriggeredOrNormal:
			v = &tryjob.TryJobTriggeredOrNormalSteps{}
		case "":
			return nil, fmt.Errorf("step %d: missing field: 'type'", i)
		default:
			return nil, fmt.Errorf("step %d: unsupported type: %q", i, t.Type)
		}

		if err := md.PrimitiveDecode(prim, v); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		if err := v.(validator).Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		result = append(result, v)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}

		return nil, fmt.Errorf("unsupported keys: %s", strings.Join(keys, ", "))
	}

	return result, nil
}
