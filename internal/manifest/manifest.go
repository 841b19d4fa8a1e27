package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/topo/schedule"
)

// Manifest is a loaded set of system declarations.
type Manifest struct {
	Systems   []schedule.Node
	FileCount int
}

// Nodes returns the declared systems in declaration order.
func (m *Manifest) Nodes() []schedule.Node {
	return slices.Clone(m.Systems)
}

// Plan resolves the declared systems.
func (m *Manifest) Plan() (*schedule.Plan, error) {
	return schedule.Resolve(m.Systems)
}

var systemFields = map[string]bool{
	"event":       true,
	"priority":    true,
	"after":       true,
	"description": true,
}

// Load reads the manifest in dir: either one CUE package whose "system"
// struct declares the systems, or a set of HCL files of system blocks.
func Load(dir string) (*Manifest, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing manifest directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, &Error{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	hclFiles, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, &Error{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}

	switch {
	case len(cueFiles) > 0 && len(hclFiles) > 0:
		return nil, &Error{Code: ErrCodeMixedFormat, Message: fmt.Sprintf("%s holds both CUE and HCL files", dir)}
	case len(hclFiles) > 0:
		return LoadHCL(hclFiles)
	case len(cueFiles) == 0:
		return nil, &Error{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE or HCL files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &Error{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fromCUE(ErrCodeLoadFailed, inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Validate(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}

	m, err := Compile(value)
	if err != nil {
		return nil, err
	}
	m.FileCount = len(cueFiles)
	return m, nil
}

// Compile extracts system declarations from a built CUE value.
func Compile(v cue.Value) (*Manifest, error) {
	if err := v.Validate(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}

	systems := v.LookupPath(cue.ParsePath("system"))
	if !systems.Exists() {
		return nil, &Error{Code: ErrCodeNoSystems, Message: "no system struct found", Pos: v.Pos()}
	}
	iter, err := systems.Fields()
	if err != nil {
		return nil, fromCUE(ErrCodeInvalidField, err)
	}

	m := &Manifest{}
	for iter.Next() {
		node, err := CompileSystem(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		m.Systems = append(m.Systems, node)
	}
	if len(m.Systems) == 0 {
		return nil, &Error{Code: ErrCodeNoSystems, Message: "manifest declares no systems", Pos: systems.Pos()}
	}
	return m, nil
}

// CompileSystem converts one system declaration into a schedule.Node.
func CompileSystem(name string, v cue.Value) (schedule.Node, error) {
	node := schedule.Node{Name: name}
	if err := v.Err(); err != nil {
		return node, fromCUE(ErrCodeInvalidField, err)
	}

	fields, err := v.Fields()
	if err != nil {
		return node, &Error{Code: ErrCodeInvalidField, Field: name, Message: "system must be a struct", Pos: v.Pos()}
	}
	for fields.Next() {
		label := fields.Selector().Unquoted()
		if !systemFields[label] {
			return node, &Error{
				Code:    ErrCodeUnknownField,
				Field:   name + "." + label,
				Message: "unknown field",
				Pos:     fields.Value().Pos(),
			}
		}
	}

	if ev := v.LookupPath(cue.ParsePath("event")); ev.Exists() {
		s, err := ev.String()
		if err != nil {
			return node, &Error{Code: ErrCodeInvalidField, Field: name + ".event", Message: "event must be a string", Pos: ev.Pos()}
		}
		node.Event = s
	}

	if pv := v.LookupPath(cue.ParsePath("priority")); pv.Exists() {
		p, err := pv.Int64()
		if err != nil {
			return node, &Error{Code: ErrCodeInvalidField, Field: name + ".priority", Message: "priority must be an integer", Pos: pv.Pos()}
		}
		node.Priority = int(p)
	}

	if av := v.LookupPath(cue.ParsePath("after")); av.Exists() {
		list, err := av.List()
		if err != nil {
			return node, &Error{Code: ErrCodeInvalidField, Field: name + ".after", Message: "after must be a list of system names", Pos: av.Pos()}
		}
		for list.Next() {
			dep, err := list.Value().String()
			if err != nil {
				return node, &Error{Code: ErrCodeInvalidField, Field: name + ".after", Message: "after must be a list of system names", Pos: list.Value().Pos()}
			}
			node.After = append(node.After, dep)
		}
	}

	return node, nil
}
