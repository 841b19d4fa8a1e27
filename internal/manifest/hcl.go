package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/roach88/topo/schedule"
)

// hclManifestFile is the top-level structure of an HCL manifest file.
type hclManifestFile struct {
	Systems []*hclSystem `hcl:"system,block"`
}

// hclSystem is one `system "<name>" { ... }` block. Attributes stay raw
// expressions until every block is known, so they can reference
// system.<name>.
type hclSystem struct {
	Name        string         `hcl:"name,label"`
	Event       hcl.Expression `hcl:"event,optional"`
	Priority    hcl.Expression `hcl:"priority,optional"`
	After       hcl.Expression `hcl:"after,optional"`
	Description hcl.Expression `hcl:"description,optional"`
}

// LoadHCL reads system blocks from files, in the order given and then in
// source order within each file.
func LoadHCL(files []string) (*Manifest, error) {
	parser := hclparse.NewParser()

	var blocks []*hclSystem
	for _, path := range files {
		f, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fromHCL(ErrCodeLoadFailed, "", diags)
		}

		var parsed hclManifestFile
		if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
			return nil, fromHCL(decodeCode(diags), "", diags)
		}
		blocks = append(blocks, parsed.Systems...)
	}
	if len(blocks) == 0 {
		return nil, &Error{Code: ErrCodeNoSystems, Message: "manifest declares no systems"}
	}

	ctx := evalContext(blocks)
	m := &Manifest{FileCount: len(files)}
	for _, b := range blocks {
		node, err := compileHCLSystem(b, ctx)
		if err != nil {
			return nil, err
		}
		m.Systems = append(m.Systems, node)
	}
	return m, nil
}

// evalContext exposes every declared name as system.<name>, so a typo in
// an after list is reported where it is written.
func evalContext(blocks []*hclSystem) *hcl.EvalContext {
	names := make(map[string]cty.Value, len(blocks))
	for _, b := range blocks {
		names[b.Name] = cty.StringVal(b.Name)
	}
	systems := cty.EmptyObjectVal
	if len(names) > 0 {
		systems = cty.ObjectVal(names)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"system": systems,
		},
	}
}

func compileHCLSystem(b *hclSystem, ctx *hcl.EvalContext) (schedule.Node, error) {
	node := schedule.Node{Name: b.Name}
	var description string

	attrs := []struct {
		field  string
		expr   hcl.Expression
		ty     cty.Type
		target any
	}{
		{"event", b.Event, cty.String, &node.Event},
		{"priority", b.Priority, cty.Number, &node.Priority},
		{"after", b.After, cty.List(cty.String), &node.After},
		{"description", b.Description, cty.String, &description},
	}
	for _, a := range attrs {
		if err := decodeAttr(a.expr, ctx, b.Name+"."+a.field, a.ty, a.target); err != nil {
			return node, err
		}
	}
	return node, nil
}

// decodeAttr evaluates expr and stores it in target. A missing attribute
// evaluates to null and leaves target untouched.
func decodeAttr(expr hcl.Expression, ctx *hcl.EvalContext, field string, ty cty.Type, target any) error {
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return fromHCL(ErrCodeInvalidField, field, diags)
	}
	if v.IsNull() {
		return nil
	}

	rng := expr.Range()
	v, err := convert.Convert(v, ty)
	if err != nil {
		return &Error{
			Code:    ErrCodeInvalidField,
			Field:   field,
			Message: fmt.Sprintf("must be %s", ty.FriendlyName()),
			Subject: &rng,
		}
	}
	if err := gocty.FromCtyValue(v, target); err != nil {
		return &Error{Code: ErrCodeInvalidField, Field: field, Message: err.Error(), Subject: &rng}
	}
	return nil
}

func decodeCode(diags hcl.Diagnostics) string {
	for _, d := range diags {
		if d.Severity == hcl.DiagError && (d.Summary == "Unsupported argument" || d.Summary == "Unsupported block type") {
			return ErrCodeUnknownField
		}
	}
	return ErrCodeInvalidField
}

// fromHCL converts the first error diagnostic.
func fromHCL(code, field string, diags hcl.Diagnostics) error {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		out := &Error{Code: code, Field: field, Message: msg}
		if d.Subject != nil {
			rng := *d.Subject
			out.Subject = &rng
		}
		return out
	}
	return &Error{Code: code, Field: field, Message: diags.Error()}
}
