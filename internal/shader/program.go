package shader

import (
	"fmt"
)

// Uniform is one addressable uniform of a linked program: a member of a
// uniform block, or a texture/sampler resource.
type Uniform struct {
	Name  string
	Stage Stage
	Kind  Kind

	// Block is the index into the stage's Uniforms for block members and -1
	// for resources.
	Block  int
	Offset uint32

	Group   uint32
	Binding uint32

	// Unit is the default texture unit of a texture resource: its position
	// among the stage's textures in declaration order. It is -1 for other
	// kinds.
	Unit int
}

// Program is a linked vertex/fragment pair.
type Program struct {
	Label    string
	Source   Source
	Vertex   *Module
	Fragment *Module

	// Uniforms is the flattened uniform table. Locations index into it.
	Uniforms []Uniform

	byName map[string]int
}

// Build compiles both stages of src and links them.
//
// Compile failures are reported as *CompileError (vertex stage first).
// Interface mismatches are reported as *LinkError.
func Build(src Source) (*Program, error) {
	vs, err := CompileStage(StageVertex, src.Label, src.Vertex, src.vertexEntry())
	if err != nil {
		return nil, err
	}
	fs, err := CompileStage(StageFragment, src.Label, src.Fragment, src.fragmentEntry())
	if err != nil {
		return nil, err
	}
	return Link(src, vs, fs)
}

// Link checks that vs and fs form a valid program and builds its uniform
// table.
func Link(src Source, vs, fs *Module) (*Program, error) {
	le := &LinkError{Label: src.Label}

	if !vs.HasEntry {
		le.VertexLog = fmt.Sprintf("vertex: entry point %q not found", vs.Entry)
	} else if !vs.Position {
		le.VertexLog = fmt.Sprintf("vertex: entry point %q does not write @builtin(position)", vs.Entry)
	}
	if !fs.HasEntry {
		le.FragmentLog = fmt.Sprintf("fragment: entry point %q not found", fs.Entry)
	}

	if vs.HasEntry && fs.HasEntry {
		for _, in := range fs.Inputs {
			out, ok := vs.Output(in.Location)
			switch {
			case !ok:
				le.Log = append(le.Log, fmt.Sprintf(
					"fragment input %q at location %d has no matching vertex output", in.Name, in.Location))
			case out.Kind != in.Kind:
				le.Log = append(le.Log, fmt.Sprintf(
					"fragment input %q at location %d is %s but vertex output %q is %s",
					in.Name, in.Location, in.Kind, out.Name, out.Kind))
			}
		}
	}

	le.Log = append(le.Log, checkGroups(vs)...)
	le.Log = append(le.Log, checkGroups(fs)...)

	p := &Program{
		Label:    src.Label,
		Source:   src,
		Vertex:   vs,
		Fragment: fs,
		byName:   make(map[string]int),
	}
	for _, m := range []*Module{vs, fs} {
		for bi, block := range m.Uniforms {
			for _, member := range block.Members {
				p.add(le, Uniform{
					Name: member.Name, Stage: m.Stage, Kind: member.Kind,
					Block: bi, Offset: member.Offset,
					Group: block.Group, Binding: block.Binding, Unit: -1,
				})
			}
		}
		unit := 0
		for _, r := range m.Resources {
			u := Uniform{
				Name: r.Name, Stage: m.Stage, Kind: r.Kind,
				Block: -1, Group: r.Group, Binding: r.Binding, Unit: -1,
			}
			if r.Kind == KindTexture {
				u.Unit = unit
				unit++
			}
			p.add(le, u)
		}
	}

	if !le.empty() {
		return nil, le
	}

	slogger().Debug("shader: program linked", "label", src.Label, "uniforms", len(p.Uniforms))
	return p, nil
}

func (p *Program) add(le *LinkError, u Uniform) {
	if prev, ok := p.byName[u.Name]; ok {
		le.Log = append(le.Log, fmt.Sprintf(
			"uniform %q is declared by both the %s and %s stages", u.Name, p.Uniforms[prev].Stage, u.Stage))
		return
	}
	p.byName[u.Name] = len(p.Uniforms)
	p.Uniforms = append(p.Uniforms, u)
}

func checkGroups(m *Module) []string {
	var log []string
	want := m.Stage.Group()
	for _, u := range m.Uniforms {
		if u.Group != want {
			log = append(log, fmt.Sprintf("%s: uniform %q uses @group(%d), want @group(%d)", m.Stage, u.Name, u.Group, want))
		}
	}
	for _, r := range m.Resources {
		if r.Group != want {
			log = append(log, fmt.Sprintf("%s: resource %q uses @group(%d), want @group(%d)", m.Stage, r.Name, r.Group, want))
		}
	}
	return log
}

// Location returns the location of the named uniform, or -1.
func (p *Program) Location(name string) int {
	if i, ok := p.byName[name]; ok {
		return i
	}
	return -1
}

// Attribute returns the vertex input with the given name.
func (p *Program) Attribute(name string) (Variable, bool) {
	return p.Vertex.Input(name)
}

// BindAttributes verifies that every name is a vertex input of the program.
// Unknown names are reported together as a *LinkError.
func (p *Program) BindAttributes(names []string) error {
	var log []string
	for _, n := range names {
		if _, ok := p.Vertex.Input(n); !ok {
			log = append(log, fmt.Sprintf("attribute %q is not declared by vertex entry point %q", n, p.Vertex.Entry))
		}
	}
	if len(log) == 0 {
		return nil
	}
	return &LinkError{Label: p.Label, Log: log}
}

// Textures returns the texture uniforms of the fragment stage in
// declaration order.
func (p *Program) Textures() []Uniform {
	var out []Uniform
	for _, u := range p.Uniforms {
		if u.Kind == KindTexture {
			out = append(out, u)
		}
	}
	return out
}
