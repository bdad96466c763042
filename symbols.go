package main

// varInfo describes one resolved variable, local or global: its storage
// slot plus enough type info for struct-field and array-shape decisions
// made purely at compile time, since there is no runtime type checking.
type varInfo struct {
	slot     int // global slot index, or frame-relative offset for locals
	structID int // -1 if not a struct-typed variable
	isArray  bool
}

// globalTable maps a mangled name to its slot and metadata. Globals never
// shrink: a new name is simply appended a fresh slot.
type globalTable struct {
	bySlot []string
	byName map[string]varInfo
}

func newGlobalTable() *globalTable {
	return &globalTable{byName: make(map[string]varInfo)}
}

func (g *globalTable) declare(name string, structID int, isArray bool) varInfo {
	if info, ok := g.byName[name]; ok {
		return info
	}
	info := varInfo{slot: len(g.bySlot), structID: structID, isArray: isArray}
	g.bySlot = append(g.bySlot, name)
	g.byName[name] = info
	return info
}

func (g *globalTable) lookup(name string) (varInfo, bool) {
	info, ok := g.byName[name]
	return info, ok
}

// localScope maps names to frame-relative offsets within one function
// body. Reset at the start of every function body.
type localScope struct {
	byName map[string]varInfo
	next   int
}

func newLocalScope() *localScope {
	return &localScope{byName: make(map[string]varInfo)}
}

func (l *localScope) declare(name string, structID int, isArray bool) varInfo {
	info := varInfo{slot: l.next, structID: structID, isArray: isArray}
	l.byName[name] = info
	l.next++
	return info
}

func (l *localScope) lookup(name string) (varInfo, bool) {
	info, ok := l.byName[name]
	return info, ok
}

// funcTable maps a mangled function name to its bytecode entry address.
// An entry is recorded as soon as its declaration is compiled; a CALL
// emitted before then is recorded as a pending call and backpatched once
// the whole program has been compiled (see resolvePendingCalls in
// compiler.go).
type funcTable struct {
	byName map[string]int
}

func newFuncTable() *funcTable {
	return &funcTable{byName: make(map[string]int)}
}

// structTable maps a struct id to its mangled name and ordered field
// names.
type structTable struct {
	layouts []StructLayout
	byName  map[string]int
}

func newStructTable() *structTable {
	return &structTable{byName: make(map[string]int)}
}

func (s *structTable) declare(name string, fields []string) int {
	id := len(s.layouts)
	s.layouts = append(s.layouts, StructLayout{Name: name, Fields: fields})
	s.byName[name] = id
	return id
}

func (s *structTable) lookup(name string) (int, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// findByFirstField implements struct-literal field inference: scanning for
// any declared struct containing the given field name.
func (s *structTable) findByFirstField(field string) (int, bool) {
	for id, layout := range s.layouts {
		for _, f := range layout.Fields {
			if f == field {
				return id, true
			}
		}
	}
	return 0, false
}

// enumTable maps a fully mangled member name (EnumName_Member) to its
// ordinal. Enum references compile to numeric constants, so this table is
// consulted purely at compile time.
type enumTable struct {
	ordinals map[string]float64
}

func newEnumTable() *enumTable {
	return &enumTable{ordinals: make(map[string]float64)}
}

func (e *enumTable) declare(mangled string, ordinal int) {
	e.ordinals[mangled] = float64(ordinal)
}

func (e *enumTable) lookup(mangled string) (float64, bool) {
	v, ok := e.ordinals[mangled]
	return v, ok
}

// namespaceStack tracks the current module-name prefix used to mangle new
// declarations; entering "mod Foo" appends "_Foo", leaving restores.
type namespaceStack struct {
	prefix string
}

func (ns *namespaceStack) mangle(name string) string {
	if ns.prefix == "" {
		return name
	}
	return ns.prefix + "_" + name
}

func (ns *namespaceStack) enter(name string) (restore func()) {
	prev := ns.prefix
	ns.prefix = ns.mangle(name)
	return func() { ns.prefix = prev }
}
