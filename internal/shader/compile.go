package shader

import (
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// CompileStage compiles one WGSL stage and reflects the named entry point.
//
// Parse, lowering, and validation failures are returned as *CompileError.
// A missing entry point is not a compile error: it is reported through
// Module.HasEntry and surfaces as a *LinkError when the program is linked.
func CompileStage(stage Stage, label, code, entry string) (*Module, error) {
	ast, err := naga.Parse(code)
	if err != nil {
		return nil, &CompileError{Stage: stage, Label: label, Diagnostics: []string{err.Error()}}
	}

	mod, err := naga.LowerWithSource(ast, code)
	if err != nil {
		return nil, &CompileError{Stage: stage, Label: label, Diagnostics: []string{err.Error()}}
	}

	verrs, err := naga.Validate(mod)
	if err != nil {
		return nil, &CompileError{Stage: stage, Label: label, Diagnostics: []string{err.Error()}}
	}
	if len(verrs) > 0 {
		diags := make([]string, len(verrs))
		for i, ve := range verrs {
			diags[i] = ve.Error()
		}
		return nil, &CompileError{Stage: stage, Label: label, Diagnostics: diags}
	}

	m := &Module{Stage: stage, Entry: entry}
	reflectGlobals(mod, m)

	want := ir.StageVertex
	if stage == StageFragment {
		want = ir.StageFragment
	}
	for i := range mod.EntryPoints {
		ep := &mod.EntryPoints[i]
		if ep.Name != entry || ep.Stage != want {
			continue
		}
		m.HasEntry = true
		reflectEntry(mod, &ep.Function, m)
		break
	}

	slogger().Debug("shader: stage compiled",
		"label", label, "stage", stage.String(),
		"inputs", len(m.Inputs), "outputs", len(m.Outputs),
		"uniforms", len(m.Uniforms), "resources", len(m.Resources))

	return m, nil
}

// reflectGlobals collects uniform blocks and handle resources.
func reflectGlobals(mod *ir.Module, m *Module) {
	for _, g := range mod.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		inner := typeInner(mod, g.Type)
		switch g.Space {
		case ir.SpaceUniform:
			block := UniformBlock{
				Name:    g.Name,
				Group:   g.Binding.Group,
				Binding: g.Binding.Binding,
			}
			if st, ok := inner.(ir.StructType); ok {
				block.Size = st.Span
				for _, sm := range st.Members {
					block.Members = append(block.Members, Member{
						Name:   sm.Name,
						Offset: sm.Offset,
						Kind:   kindOf(mod, sm.Type),
					})
				}
			} else {
				// A bare scalar/vector uniform behaves like a one-member block.
				k := kindOf(mod, g.Type)
				block.Size = uint32(k.Components() * 4)
				block.Members = []Member{{Name: g.Name, Kind: k}}
			}
			m.Uniforms = append(m.Uniforms, block)
		case ir.SpaceHandle:
			k := kindOf(mod, g.Type)
			if k != KindTexture && k != KindSampler {
				continue
			}
			m.Resources = append(m.Resources, Resource{
				Name:    g.Name,
				Group:   g.Binding.Group,
				Binding: g.Binding.Binding,
				Kind:    k,
			})
		}
	}
}

// reflectEntry walks the entry point arguments and result, flattening
// struct-typed IO into located variables.
func reflectEntry(mod *ir.Module, fn *ir.Function, m *Module) {
	for _, arg := range fn.Arguments {
		collectIO(mod, arg.Name, arg.Type, arg.Binding, &m.Inputs, nil)
	}
	if fn.Result != nil {
		name := "out"
		if m.Stage == StageFragment {
			name = "color"
		}
		collectIO(mod, name, fn.Result.Type, fn.Result.Binding, &m.Outputs, &m.Position)
	}
}

func collectIO(mod *ir.Module, name string, th ir.TypeHandle, binding *ir.Binding, dst *[]Variable, position *bool) {
	if binding != nil {
		switch b := (*binding).(type) {
		case ir.LocationBinding:
			*dst = append(*dst, Variable{Name: name, Location: b.Location, Kind: kindOf(mod, th)})
		case ir.BuiltinBinding:
			if b.Builtin == ir.BuiltinPosition && position != nil {
				*position = true
			}
		}
		return
	}
	st, ok := typeInner(mod, th).(ir.StructType)
	if !ok {
		return
	}
	for _, sm := range st.Members {
		collectIO(mod, sm.Name, sm.Type, sm.Binding, dst, position)
	}
}

func typeInner(mod *ir.Module, th ir.TypeHandle) ir.TypeInner {
	if int(th) >= len(mod.Types) {
		return nil
	}
	return mod.Types[th].Inner
}

func kindOf(mod *ir.Module, th ir.TypeHandle) Kind {
	switch t := typeInner(mod, th).(type) {
	case ir.ScalarType:
		switch t.Kind {
		case ir.ScalarFloat:
			return KindFloat
		case ir.ScalarSint:
			return KindInt
		case ir.ScalarUint:
			return KindUint
		}
	case ir.VectorType:
		if t.Scalar.Kind != ir.ScalarFloat {
			return KindUnknown
		}
		switch t.Size {
		case ir.Vec2:
			return KindVec2
		case ir.Vec3:
			return KindVec3
		case ir.Vec4:
			return KindVec4
		}
	case ir.MatrixType:
		if t.Columns == ir.Vec4 && t.Rows == ir.Vec4 {
			return KindMat4
		}
	case ir.ImageType:
		return KindTexture
	case ir.SamplerType:
		return KindSampler
	}
	return KindUnknown
}
