package internal

// Variable is created once at declaration and never changes.
type Variable struct {
	Name string
	Type VarType
	Slot int
}

// SymbolTable is the single flat scope of a program. Variables and compiler temporaries
// share one slot counter, so slots are never reused.
type SymbolTable struct {
	variables map[string]*Variable
	ordered   []*Variable
	nextSlot  int
}

func NewSymbolTable() *SymbolTable {
	table := &SymbolTable{}
	table.Reset()
	return table
}

// Reset empties the table and restarts slot numbering at 0.
func (table *SymbolTable) Reset() {
	table.variables = map[string]*Variable{}
	table.ordered = nil
	table.nextSlot = 0
}

// Declare assigns the next slot to name. typeName is the type as written in the source.
func (table *SymbolTable) Declare(name string, typeName string) (*Variable, error) {
	tp, ok := varTypeNames[typeName]
	if !ok {
		return nil, &UnsupportedTypeError{Name: name, Type: typeName}
	}
	if _, exist := table.variables[name]; exist {
		return nil, &DuplicateVariableError{Name: name}
	}
	variable := &Variable{Name: name, Type: tp, Slot: table.nextSlot}
	table.nextSlot++
	table.variables[name] = variable
	table.ordered = append(table.ordered, variable)
	return variable, nil
}

func (table *SymbolTable) Lookup(name string) (*Variable, error) {
	variable, ok := table.variables[name]
	if !ok {
		return nil, &UndeclaredVariableError{Name: name}
	}
	return variable, nil
}

// Temp allocates a compiler-managed slot that Lookup never returns.
func (table *SymbolTable) Temp() int {
	slot := table.nextSlot
	table.nextSlot++
	return slot
}

// Variables returns the declared variables in slot order.
func (table *SymbolTable) Variables() []*Variable {
	ret := make([]*Variable, len(table.ordered))
	copy(ret, table.ordered)
	return ret
}

// MaxLocals is the size of the local variable area, at least one for the args parameter.
func (table *SymbolTable) MaxLocals() int {
	if table.nextSlot < 1 {
		return 1
	}
	return table.nextSlot
}
